// Package digest relays task-board activity into the channel and posts a
// periodic summary of stale and progressed work.
package digest

import (
	"context"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/antlu/statusbot/internal/board"
)

const requestTimeout = 30 * time.Second

var pollTypes = []string{
	board.ActionCreateCard,
	board.ActionCommentCard,
	board.ActionUpdateCard,
	board.ActionCheckItemState,
}

// Source is the part of the board client the worker reads from.
type Source interface {
	BoardID() string
	Actions(ctx context.Context, since time.Time, types ...string) ([]board.Action, error)
	Cards(ctx context.Context) ([]board.Card, error)
	Lists(ctx context.Context) ([]board.List, error)
}

type Watermarks interface {
	Watermark(ctx context.Context, boardID string) (time.Time, bool, error)
	SetWatermark(ctx context.Context, boardID string, t time.Time) error
}

// Poster writes a line to the channel.
type Poster interface {
	Say(text string)
}

type Presence interface {
	Userlist() ([]string, error)
}

type Options struct {
	Source     Source
	Watermarks Watermarks
	Out        Poster
	Presence   Presence

	// Members maps lowercased board usernames to channel nicks.
	Members map[string]string

	PresenceInterval time.Duration
	PollInterval     time.Duration
	ReportInterval   time.Duration

	Now func() time.Time
}

type Worker struct {
	opts      Options
	watermark time.Time
	present   map[string]string

	stopChan chan struct{}
	done     chan struct{}
}

func NewWorker(opts Options) *Worker {
	if opts.PresenceInterval <= 0 {
		opts.PresenceInterval = 5 * time.Minute
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Minute
	}
	if opts.ReportInterval <= 0 {
		opts.ReportInterval = 7 * 24 * time.Hour
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Worker{
		opts:     opts,
		present:  make(map[string]string),
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start loads the watermark and begins polling in the background.
func (w *Worker) Start(ctx context.Context) {
	if w == nil {
		return
	}
	w.loadWatermark(ctx)
	go w.loop(ctx)
}

// Stop ends the loop and waits for the current tick to finish.
func (w *Worker) Stop() {
	if w == nil {
		return
	}
	close(w.stopChan)
	<-w.done
}

func (w *Worker) loop(ctx context.Context) {
	defer close(w.done)

	presence := time.NewTicker(w.opts.PresenceInterval)
	poll := time.NewTicker(w.opts.PollInterval)
	report := time.NewTicker(w.opts.ReportInterval)
	defer presence.Stop()
	defer poll.Stop()
	defer report.Stop()

	w.refreshPresence()
	for {
		select {
		case <-presence.C:
			w.refreshPresence()
		case <-poll.C:
			w.Poll(ctx)
		case <-report.C:
			w.Report(ctx)
		case <-w.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (w *Worker) loadWatermark(ctx context.Context) {
	boardID := w.opts.Source.BoardID()
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	t, ok, err := w.opts.Watermarks.Watermark(ctx, boardID)
	if err != nil {
		log.Printf("digest: failed to load watermark for board %s: %v", boardID, err)
	}
	if ok {
		w.watermark = t
		return
	}

	w.watermark = w.opts.Now()
	if err := w.opts.Watermarks.SetWatermark(ctx, boardID, w.watermark); err != nil {
		log.Printf("digest: failed to save watermark for board %s: %v", boardID, err)
	}
}

func (w *Worker) refreshPresence() {
	if w.opts.Presence == nil {
		return
	}
	nicks, err := w.opts.Presence.Userlist()
	if err != nil {
		log.Printf("digest: failed to refresh presence: %v", err)
		return
	}
	present := make(map[string]string, len(nicks))
	for _, nick := range nicks {
		present[strings.ToLower(nick)] = nick
	}
	w.present = present
}

// who prefers a nick that is in the channel right now, falling back to
// the board's full name.
func (w *Worker) who(m board.Member) string {
	user := strings.ToLower(m.Username)
	if alias, ok := w.opts.Members[user]; ok {
		if nick, ok := w.present[strings.ToLower(alias)]; ok {
			return nick
		}
	}
	if nick, ok := w.present[user]; ok {
		return nick
	}
	if m.FullName != "" {
		return m.FullName
	}
	return m.Username
}

// Poll relays actions newer than the watermark, oldest first.
func (w *Worker) Poll(ctx context.Context) {
	boardID := w.opts.Source.BoardID()
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	actions, err := w.opts.Source.Actions(ctx, w.watermark, pollTypes...)
	if err != nil {
		log.Printf("digest: failed to fetch actions for board %s: %v", boardID, err)
		return
	}
	sort.SliceStable(actions, func(i, j int) bool { return actions[i].Date.Before(actions[j].Date) })

	newest := w.watermark
	for _, a := range actions {
		if !a.Date.After(w.watermark) {
			continue
		}
		if a.Date.After(newest) {
			newest = a.Date
		}

		line, ok, reason := Describe(a, w.who)
		if !ok {
			if reason != "" {
				log.Printf("digest: skipping action %s: %s", a.ID, reason)
			}
			continue
		}
		w.opts.Out.Say(line)
	}

	if !newest.After(w.watermark) {
		return
	}
	w.watermark = newest
	if err := w.opts.Watermarks.SetWatermark(ctx, boardID, newest); err != nil {
		log.Printf("digest: failed to save watermark for board %s: %v", boardID, err)
	}
}

// Report posts the weekly summary.
func (w *Worker) Report(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	now := w.opts.Now()
	cards, err := w.opts.Source.Cards(ctx)
	if err != nil {
		log.Printf("digest: failed to fetch cards: %v", err)
		return
	}
	lists, err := w.opts.Source.Lists(ctx)
	if err != nil {
		log.Printf("digest: failed to fetch lists: %v", err)
		return
	}
	actions, err := w.opts.Source.Actions(ctx, now.Add(-progressWindow), board.ActionUpdateCard, board.ActionCheckItemState)
	if err != nil {
		log.Printf("digest: failed to fetch recent actions: %v", err)
		return
	}

	for _, line := range WeeklyReport(now, cards, lists, actions) {
		w.opts.Out.Say(line)
	}
}
