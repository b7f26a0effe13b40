package board

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const actionsJSON = `[
  {
    "id": "a2",
    "type": "updateCard",
    "date": "2026-10-12T15:04:05.000Z",
    "memberCreator": {"id": "m1", "username": "alice", "fullName": "Alice A"},
    "data": {
      "card": {"id": "c1", "name": "Fix build", "idShort": 7, "shortLink": "AbCd"},
      "listBefore": {"id": "l1", "name": "Doing"},
      "listAfter": {"id": "l2", "name": "Done"}
    }
  },
  {
    "id": "a1",
    "type": "commentCard",
    "date": "2026-10-12T14:00:00.000Z",
    "memberCreator": {"id": "m2", "username": "bob", "fullName": "Bob B"},
    "data": {"card": {"id": "c1", "name": "Fix build"}, "text": "on it"}
  }
]`

func TestActions(t *testing.T) {
	var got *http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(actionsJSON))
	}))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL + "/", BoardID: "board1", Key: "k", Token: "t"}, srv.Client())
	since := time.Date(2026, time.October, 12, 0, 0, 0, 0, time.UTC)

	actions, err := c.Actions(context.Background(), since, ActionUpdateCard, ActionCommentCard)
	require.NoError(t, err)
	require.Len(t, actions, 2)

	assert.Equal(t, "/boards/board1/actions", got.URL.Path)
	q := got.URL.Query()
	assert.Equal(t, "k", q.Get("key"))
	assert.Equal(t, "t", q.Get("token"))
	assert.Equal(t, "updateCard,commentCard", q.Get("filter"))
	assert.Equal(t, "2026-10-12T00:00:00Z", q.Get("since"))

	first := actions[0]
	assert.Equal(t, ActionUpdateCard, first.Type)
	assert.Equal(t, "alice", first.MemberCreator.Username)
	require.NotNil(t, first.Data.ListAfter)
	assert.Equal(t, "Done", first.Data.ListAfter.Name)
	assert.Equal(t, "https://trello.com/c/AbCd", first.Data.Card.URL())
	assert.Equal(t, "on it", actions[1].Data.Text)
	assert.Empty(t, actions[1].Data.Card.URL())
}

func TestCardsAndLists(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/boards/b/cards":
			w.Write([]byte(`[{"id":"c1","name":"Old card","idList":"l1","shortUrl":"https://trello.com/c/x","dateLastActivity":"2026-09-01T00:00:00.000Z"}]`))
		case "/boards/b/lists":
			w.Write([]byte(`[{"id":"l1","name":"Backlog"}]`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL, BoardID: "b"}, srv.Client())

	cards, err := c.Cards(context.Background())
	require.NoError(t, err)
	require.Len(t, cards, 1)
	assert.Equal(t, "l1", cards[0].IDList)
	assert.Equal(t, 2026, cards[0].DateLastActivity.Year())

	lists, err := c.Lists(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []List{{ID: "l1", Name: "Backlog"}}, lists)
}

func TestErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid token", http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := NewClient(Options{BaseURL: srv.URL, BoardID: "b"}, srv.Client()).Lists(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}
