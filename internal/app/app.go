package app

import (
	"context"
	"errors"
	"fmt"
	"log"

	"golang.org/x/sync/errgroup"

	"github.com/antlu/statusbot/internal/board"
	"github.com/antlu/statusbot/internal/config"
	"github.com/antlu/statusbot/internal/digest"
	"github.com/antlu/statusbot/internal/irc"
	"github.com/antlu/statusbot/internal/loop"
	"github.com/antlu/statusbot/internal/mail"
	"github.com/antlu/statusbot/internal/meeting"
	"github.com/antlu/statusbot/internal/store"
)

type App struct {
	cfg         *config.Config
	loop        *loop.Loop
	ircClient   *irc.Client
	coordinator *meeting.Coordinator
	mailer      *mail.Sender
	db          *store.DB
	digest      *digest.Worker
}

func New(cfg *config.Config) (*App, error) {
	db, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	a := &App{cfg: cfg, loop: loop.New(), db: db}
	ev := &events{loop: a.loop}

	a.ircClient = irc.NewClient(irc.Options{
		Server:     cfg.Server,
		Port:       cfg.Port,
		TLS:        cfg.TLS,
		Nick:       cfg.Nick,
		Password:   cfg.Password,
		Channel:    cfg.Channel,
		RetryDelay: cfg.RetryDelay,
	}, ev)

	opts := meeting.Options{
		Channel:   cfg.Channel,
		Team:      cfg.Team,
		Network:   cfg.Network,
		Roster:    cfg.Roster,
		Schedule:  cfg.Schedule,
		Out:       a.ircClient,
		Scheduler: a.loop,
		Store:     store.NewReportsFile(cfg.ReportsFile),
		Archive:   db,
	}
	if cfg.MailEnabled() {
		a.mailer = mail.NewSender(mail.Options{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUser,
			Password: cfg.SMTPPass,
			From:     cfg.MailFrom,
			To:       cfg.MailTo,
		})
		opts.Mailer = a.mailer
	}
	a.coordinator = meeting.New(opts)
	ev.meeting = a.coordinator

	if cfg.DigestEnabled() {
		a.digest = digest.NewWorker(digest.Options{
			Source: board.NewClient(board.Options{
				BaseURL: cfg.BoardURL,
				BoardID: cfg.BoardID,
				Key:     cfg.BoardKey,
				Token:   cfg.BoardToken,
			}, nil),
			Watermarks:       db,
			Out:              a.ircClient,
			Presence:         a.ircClient,
			Members:          cfg.BoardMembers,
			PresenceInterval: cfg.PresenceInterval,
			PollInterval:     cfg.BoardPoll,
			ReportInterval:   cfg.BoardReport,
		})
	}

	return a, nil
}

// Run blocks until ctx is cancelled, then drains pending mail.
func (a *App) Run(ctx context.Context) error {
	defer a.db.Close()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.loop.Run(ctx) })

	a.loop.Post(a.coordinator.Start)
	log.Printf("meeting: %s opens %s, reminds %s, closes %s (%s)",
		a.cfg.Channel, a.cfg.Schedule.Open, a.cfg.Schedule.Remind, a.cfg.Schedule.Close, a.cfg.Schedule.Location)

	if a.digest != nil {
		a.digest.Start(ctx)
		defer a.digest.Stop()
	}

	g.Go(func() error { return a.ircClient.Run(ctx) })

	err := g.Wait()
	if a.mailer != nil {
		a.mailer.Wait()
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
