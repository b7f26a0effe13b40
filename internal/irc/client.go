// Package irc keeps the bot connected to one channel on a plain IRC server.
package irc

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gempir/go-twitch-irc/v4"
)

const maxNickSuffix = 3

var ErrNotConnected = errors.New("not connected")

// Handler receives channel events. Calls arrive on the connection's
// goroutine.
type Handler interface {
	OnJoined(channel string)
	OnMessage(nick, text string)
	OnAction(nick, text string)
}

type Options struct {
	Server     string
	Port       int
	TLS        bool
	Nick       string
	Password   string
	Channel    string
	RetryDelay time.Duration
}

// conn is the subset of the library client the supervisor drives.
type conn interface {
	OnPrivateMessage(func(twitch.PrivateMessage))
	OnSelfJoinMessage(func(twitch.UserJoinMessage))
	OnUserJoinMessage(func(twitch.UserJoinMessage))
	OnSelfPartMessage(func(twitch.UserPartMessage))
	OnUserPartMessage(func(twitch.UserPartMessage))
	OnNamesMessage(func(twitch.NamesMessage))
	OnUnsetMessage(func(twitch.RawMessage))
	Join(channels ...string)
	Say(channel, text string)
	Connect() error
	Disconnect() error
}

type Client struct {
	opts    Options
	handler Handler
	dial    func(nick string) conn

	mu      sync.Mutex
	current conn
	nick    string
	members map[string]string
}

func NewClient(opts Options, handler Handler) *Client {
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 600 * time.Second
	}
	c := &Client{opts: opts, handler: handler, nick: opts.Nick, members: make(map[string]string)}
	c.dial = c.newConn
	return c
}

// newConn points the library at a plain server: no capability requests,
// and USER goes out with PASS and NICK so registration can complete.
func (c *Client) newConn(nick string) conn {
	tc := twitch.NewClient(nick, c.opts.Password)
	tc.IrcAddress = net.JoinHostPort(c.opts.Server, strconv.Itoa(c.opts.Port))
	tc.TLS = c.opts.TLS
	tc.Capabilities = nil
	tc.SetupCmd = fmt.Sprintf("USER %s 0 * :%s", nick, nick)
	return tc
}

// channel is the name without its leading '#', as the library expects.
func (c *Client) channel() string {
	return strings.TrimPrefix(c.opts.Channel, "#")
}

func (c *Client) ours(channel string) bool {
	return strings.EqualFold(strings.TrimPrefix(channel, "#"), c.channel())
}

func (c *Client) Nick() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nick
}

type attempt struct {
	nick string

	mu          sync.Mutex
	established bool
	collided    bool
}

func (a *attempt) set(fn func(a *attempt)) {
	a.mu.Lock()
	fn(a)
	a.mu.Unlock()
}

func (a *attempt) state() (established, collided bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.established, a.collided
}

// wire installs the callbacks for one attempt. Nicks always come from the
// raw line's prefix; the library's user fields carry the ident part.
func (c *Client) wire(cn conn, at *attempt) {
	onJoin := func(m twitch.UserJoinMessage) {
		if !c.ours(m.Channel) {
			return
		}
		nick := parseLine(m.Raw).nick
		if !strings.EqualFold(nick, at.nick) {
			c.addMember(nick)
			return
		}
		at.set(func(a *attempt) { a.established = true })
		c.resetMembers(nick)
		log.Printf("irc: joined #%s as %s", c.channel(), nick)
		c.handler.OnJoined("#" + c.channel())
	}
	cn.OnSelfJoinMessage(onJoin)
	cn.OnUserJoinMessage(onJoin)

	onPart := func(m twitch.UserPartMessage) {
		if !c.ours(m.Channel) {
			return
		}
		nick := parseLine(m.Raw).nick
		if strings.EqualFold(nick, at.nick) {
			c.resetMembers()
			return
		}
		c.removeMember(nick)
	}
	cn.OnSelfPartMessage(onPart)
	cn.OnUserPartMessage(onPart)

	cn.OnNamesMessage(func(m twitch.NamesMessage) {
		if !c.ours(m.Channel) {
			return
		}
		for _, name := range m.Users {
			c.addMember(name)
		}
	})

	cn.OnPrivateMessage(func(m twitch.PrivateMessage) {
		if !c.ours(m.Channel) {
			return
		}
		nick := parseLine(m.Raw).nick
		if m.Action {
			c.handler.OnAction(nick, m.Message)
			return
		}
		c.handler.OnMessage(nick, m.Message)
	})

	cn.OnUnsetMessage(func(m twitch.RawMessage) {
		l := parseLine(m.Raw)
		switch m.RawType {
		case "001":
			cn.Join(c.channel())
		case "433":
			at.set(func(a *attempt) { a.collided = true })
			go cn.Disconnect()
		case "QUIT":
			c.removeMember(l.nick)
		case "NICK":
			if len(l.params) > 0 {
				c.removeMember(l.nick)
				c.addMember(l.params[0])
			}
		case "KICK":
			if len(l.params) > 1 && c.ours(l.params[0]) {
				c.removeMember(l.params[1])
			}
		}
	})
}

// Run keeps a connection open until ctx is cancelled. A lost connection is
// re-dialled at once. A failed dial waits RetryDelay before the next try.
func (c *Client) Run(ctx context.Context) error {
	for {
		nick := c.Nick()
		cn := c.dial(nick)
		at := &attempt{nick: nick}
		c.wire(cn, at)

		c.mu.Lock()
		c.current = cn
		c.members = make(map[string]string)
		c.mu.Unlock()

		log.Printf("irc: connecting to %s:%d as %s", c.opts.Server, c.opts.Port, nick)
		errCh := make(chan error, 1)
		go func() { errCh <- cn.Connect() }()

		var err error
		select {
		case <-ctx.Done():
			cn.Disconnect()
			c.clear(cn)
			return ctx.Err()
		case err = <-errCh:
		}
		c.clear(cn)

		established, collided := at.state()
		switch {
		case collided:
			next, ok := nextNick(c.opts.Nick, nick)
			if ok {
				log.Printf("irc: nickname %s is taken, retrying as %s", nick, next)
				c.mu.Lock()
				c.nick = next
				c.mu.Unlock()
				continue
			}
			log.Printf("irc: nickname %s is taken, retrying in %s", nick, c.opts.RetryDelay)
		case established:
			log.Printf("irc: connection lost: %v, reconnecting", err)
			continue
		default:
			log.Printf("irc: could not connect: %v, retrying in %s", err, c.opts.RetryDelay)
		}

		timer := time.NewTimer(c.opts.RetryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (c *Client) clear(cn conn) {
	c.mu.Lock()
	if c.current == cn {
		c.current = nil
	}
	c.mu.Unlock()
}

// nextNick appends one underscore to current, up to maxNickSuffix past base.
func nextNick(base, current string) (string, bool) {
	if len(current)-len(base) >= maxNickSuffix {
		return current, false
	}
	return current + "_", true
}

func (c *Client) say(text string) error {
	c.mu.Lock()
	cn := c.current
	c.mu.Unlock()

	if cn == nil {
		return ErrNotConnected
	}
	cn.Say(c.channel(), text)
	return nil
}

func (c *Client) send(kind, text string) {
	if err := c.say(text); err != nil {
		log.Printf("irc: dropped %s %q: %v", kind, text, err)
	}
}

// Notice goes out as a channel message; the library has no NOTICE command.
func (c *Client) Notice(text string) {
	c.send("notice", text)
}

func (c *Client) Say(text string) {
	c.send("message", text)
}

// Describe sends a CTCP ACTION, shown by clients as "* nick text".
func (c *Client) Describe(text string) {
	c.send("action", fmt.Sprintf("\x01ACTION %s\x01", text))
}
