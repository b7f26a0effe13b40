// Package mail delivers meeting minutes through an authenticated SMTP
// relay without blocking the bot.
package mail

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log"
	"net"
	netmail "net/mail"
	"net/smtp"
	"strconv"
	"strings"
	"sync"
	"time"
)

const sendTimeout = 2 * time.Minute

type Options struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       []string
}

// SendFunc is smtp.SendMail bounded by ctx. Tests swap it to capture the
// wire message.
type SendFunc func(ctx context.Context, addr string, a smtp.Auth, from string, to []string, msg []byte) error

type Sender struct {
	opts Options
	send SendFunc
	wg   sync.WaitGroup
}

func NewSender(opts Options) *Sender {
	return &Sender{opts: opts, send: sendMail}
}

// WithSendFunc replaces the SMTP transport.
func (s *Sender) WithSendFunc(fn SendFunc) *Sender {
	s.send = fn
	return s
}

// Compose renders the message with literal To, From and Subject headers,
// a blank line and the body, using CRLF line endings.
func (s *Sender) Compose(subject, body string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(s.opts.To, ", "))
	fmt.Fprintf(&b, "From: %s\r\n", s.opts.From)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(strings.ReplaceAll(body, "\r\n", "\n"), "\n", "\r\n"))
	return []byte(b.String())
}

// Deliver sends one message and blocks until the relay answers or ctx ends.
func (s *Sender) Deliver(ctx context.Context, subject, body string) error {
	from, err := envelopeAddress(s.opts.From)
	if err != nil {
		return fmt.Errorf("error parsing sender address: %w", err)
	}
	to := make([]string, 0, len(s.opts.To))
	for _, rcpt := range s.opts.To {
		addr, err := envelopeAddress(rcpt)
		if err != nil {
			return fmt.Errorf("error parsing recipient address: %w", err)
		}
		to = append(to, addr)
	}

	var auth smtp.Auth
	if s.opts.Username != "" {
		auth = smtp.PlainAuth("", s.opts.Username, s.opts.Password, s.opts.Host)
	}
	addr := net.JoinHostPort(s.opts.Host, strconv.Itoa(s.opts.Port))
	msg := s.Compose(subject, body)

	done := make(chan error, 1)
	go func() { done <- s.send(ctx, addr, auth, from, to, msg) }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// sendMail follows smtp.SendMail, with the dial and every later exchange
// cut off when ctx ends.
func sendMail(ctx context.Context, addr string, a smtp.Auth, from string, to []string, msg []byte) error {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return err
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			conn.Close()
			return err
		}
	}
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	c, err := smtp.NewClient(conn, host)
	if err != nil {
		conn.Close()
		return err
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: host}); err != nil {
			return err
		}
	}
	if a != nil {
		if ok, _ := c.Extension("AUTH"); !ok {
			return errors.New("smtp: server doesn't support AUTH")
		}
		if err := c.Auth(a); err != nil {
			return err
		}
	}
	if err := c.Mail(from); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err := c.Rcpt(rcpt); err != nil {
			return err
		}
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}

// Send delivers in the background. Failures are logged only.
func (s *Sender) Send(subject, body string) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()

		log.Print("mail: sending email")
		if err := s.Deliver(ctx, subject, body); err != nil {
			log.Printf("mail: failed to send %q: %v", subject, err)
			return
		}
		log.Print("mail: email sent")
	}()
}

// Wait blocks until in-flight sends have finished.
func (s *Sender) Wait() {
	s.wg.Wait()
}

// envelopeAddress strips a display name: "Bot <bot@example.org>" becomes
// "bot@example.org".
func envelopeAddress(s string) (string, error) {
	a, err := netmail.ParseAddress(s)
	if err != nil {
		return "", err
	}
	return a.Address, nil
}
