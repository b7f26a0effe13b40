package board

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const DefaultBaseURL = "https://api.trello.com/1"

// Action types the digest understands.
const (
	ActionCreateCard     = "createCard"
	ActionCommentCard    = "commentCard"
	ActionUpdateCard     = "updateCard"
	ActionCheckItemState = "updateCheckItemStateOnCard"
)

type Member struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	FullName string `json:"fullName"`
}

type CardRef struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	IDShort   int    `json:"idShort"`
	ShortLink string `json:"shortLink"`
}

func (c CardRef) URL() string {
	if c.ShortLink == "" {
		return ""
	}
	return "https://trello.com/c/" + c.ShortLink
}

type ListRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type CheckItem struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	State string `json:"state"`
}

type ActionData struct {
	Card       *CardRef   `json:"card"`
	List       *ListRef   `json:"list"`
	ListBefore *ListRef   `json:"listBefore"`
	ListAfter  *ListRef   `json:"listAfter"`
	CheckItem  *CheckItem `json:"checkItem"`
	Text       string     `json:"text"`
	Old        OldValues  `json:"old"`
}

// OldValues holds the fields an updateCard action changed.
type OldValues struct {
	Name   string `json:"name"`
	Closed *bool  `json:"closed"`
}

type Action struct {
	ID            string     `json:"id"`
	Type          string     `json:"type"`
	Date          time.Time  `json:"date"`
	MemberCreator Member     `json:"memberCreator"`
	Data          ActionData `json:"data"`
}

type Card struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	IDList           string    `json:"idList"`
	ShortURL         string    `json:"shortUrl"`
	Closed           bool      `json:"closed"`
	DateLastActivity time.Time `json:"dateLastActivity"`
}

type List struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Closed bool   `json:"closed"`
}

type Options struct {
	BaseURL string
	BoardID string
	Key     string
	Token   string
}

// Client reads one board through the Trello REST API.
type Client struct {
	opts Options
	http *http.Client
}

func NewClient(opts Options, httpClient *http.Client) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{opts: opts, http: httpClient}
}

func (c *Client) BoardID() string {
	return c.opts.BoardID
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	if params == nil {
		params = url.Values{}
	}
	params.Set("key", c.opts.Key)
	params.Set("token", c.opts.Token)

	endpoint := fmt.Sprintf("%s/boards/%s/%s?%s", c.opts.BaseURL, url.PathEscape(c.opts.BoardID), path, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("board api %s: unexpected status %s", path, resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("error decoding %s response: %w", path, err)
	}
	return nil
}

// Actions returns board actions of the given types newer than since,
// newest first as the API orders them.
func (c *Client) Actions(ctx context.Context, since time.Time, types ...string) ([]Action, error) {
	params := url.Values{}
	params.Set("filter", strings.Join(types, ","))
	params.Set("limit", "1000")
	params.Set("memberCreator_fields", "username,fullName")
	if !since.IsZero() {
		params.Set("since", since.UTC().Format(time.RFC3339Nano))
	}

	var actions []Action
	if err := c.get(ctx, "actions", params, &actions); err != nil {
		return nil, err
	}
	return actions, nil
}

func (c *Client) Cards(ctx context.Context) ([]Card, error) {
	params := url.Values{}
	params.Set("filter", "open")
	params.Set("fields", "name,idList,shortUrl,closed,dateLastActivity")

	var cards []Card
	if err := c.get(ctx, "cards", params, &cards); err != nil {
		return nil, err
	}
	return cards, nil
}

func (c *Client) Lists(ctx context.Context) ([]List, error) {
	params := url.Values{}
	params.Set("filter", "open")
	params.Set("fields", "name,closed")

	var lists []List
	if err := c.get(ctx, "lists", params, &lists); err != nil {
		return nil, err
	}
	return lists, nil
}
