package mail

import (
	"context"
	"errors"
	"io"
	"net"
	"net/smtp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captured struct {
	mu   sync.Mutex
	addr string
	from string
	to   []string
	msg  string
	auth smtp.Auth
}

func (c *captured) send(_ context.Context, addr string, a smtp.Auth, from string, to []string, msg []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.addr, c.auth, c.from, c.to, c.msg = addr, a, from, to, string(msg)
	return nil
}

func testOptions() Options {
	return Options{
		Host:     "smtp.example.org",
		Port:     587,
		Username: "bot@example.org",
		Password: "secret",
		From:     "Status Bot <bot@example.org>",
		To:       []string{"team@lists.example.org"},
	}
}

func TestCompose(t *testing.T) {
	s := NewSender(testOptions())

	msg := string(s.Compose("Minutes", "Updates:\n  * a status: done\n"))
	assert.Equal(t,
		"To: team@lists.example.org\r\n"+
			"From: Status Bot <bot@example.org>\r\n"+
			"Subject: Minutes\r\n"+
			"\r\n"+
			"Updates:\r\n  * a status: done\r\n",
		msg)
}

func TestDeliverUsesEnvelopeAddresses(t *testing.T) {
	c := &captured{}
	s := NewSender(testOptions()).WithSendFunc(c.send)

	require.NoError(t, s.Deliver(context.Background(), "Minutes", "body"))
	assert.Equal(t, "smtp.example.org:587", c.addr)
	assert.Equal(t, "bot@example.org", c.from)
	assert.Equal(t, []string{"team@lists.example.org"}, c.to)
	assert.NotNil(t, c.auth)
	assert.Contains(t, c.msg, "Subject: Minutes\r\n")
}

func TestDeliverWithoutCredentialsSkipsAuth(t *testing.T) {
	opts := testOptions()
	opts.Username = ""
	c := &captured{}

	require.NoError(t, NewSender(opts).WithSendFunc(c.send).Deliver(context.Background(), "s", "b"))
	assert.Nil(t, c.auth)
}

func TestDeliverHonoursContext(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	s := NewSender(testOptions()).WithSendFunc(func(context.Context, string, smtp.Auth, string, []string, []byte) error {
		<-block
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.Deliver(ctx, "s", "b"), context.DeadlineExceeded)
}

func TestSendFailureIsNotFatal(t *testing.T) {
	calls := 0
	s := NewSender(testOptions()).WithSendFunc(func(context.Context, string, smtp.Auth, string, []string, []byte) error {
		calls++
		return errors.New("relay down")
	})

	s.Send("s", "b")
	s.Wait()
	assert.Equal(t, 1, calls)
}

func TestDeliverRejectsBadAddress(t *testing.T) {
	opts := testOptions()
	opts.To = []string{"not an address"}

	err := NewSender(opts).WithSendFunc((&captured{}).send).Deliver(context.Background(), "s", "b")
	assert.Error(t, err)
}

func TestSendMailStopsAtDeadline(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	// A relay that accepts and never greets.
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		io.Copy(io.Discard, conn)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	err = sendMail(ctx, ln.Addr().String(), nil, "bot@example.org", []string{"team@example.org"}, []byte("x"))
	assert.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
}
