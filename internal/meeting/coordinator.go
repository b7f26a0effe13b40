package meeting

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"
)

const archiveTimeout = 5 * time.Second

type Options struct {
	Channel  string
	Team     string
	Network  string
	Roster   Roster
	Schedule Schedule

	Out       Broadcaster
	Mailer    Mailer
	Scheduler Scheduler
	Store     ReportStore
	Archive   Archive

	Now func() time.Time
}

// Coordinator tracks one status meeting cycle: open, collect, remind,
// close. All methods must run on the event loop.
type Coordinator struct {
	channel  string
	team     string
	network  string
	roster   Roster
	schedule Schedule

	out       Broadcaster
	mailer    Mailer
	scheduler Scheduler
	store     ReportStore
	archive   Archive
	now       func() time.Time

	state    State
	openedAt time.Time
}

func New(opts Options) *Coordinator {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	team := opts.Team
	if team == "" {
		team = "the team"
	}

	return &Coordinator{
		channel:   opts.Channel,
		team:      team,
		network:   opts.Network,
		roster:    opts.Roster,
		schedule:  opts.Schedule,
		out:       opts.Out,
		mailer:    opts.Mailer,
		scheduler: opts.Scheduler,
		store:     opts.Store,
		archive:   opts.Archive,
		now:       now,
		state:     newState(),
	}
}

// State returns the current meeting state. Callers must not mutate it.
func (c *Coordinator) State() State {
	return c.state
}

// Start hydrates persisted reports, resumes a meeting whose window is
// already open, and schedules the next opening.
func (c *Coordinator) Start() {
	now := c.now()

	if c.store != nil {
		reports, err := c.store.Load()
		if err != nil {
			log.Printf("meeting: ignoring unreadable reports file: %v", err)
		}
		for nick, r := range reports {
			c.state.Reports[nick] = r
		}
	}

	c.state.CycleStart = c.schedule.CycleStart(now)

	if open, close, inside := c.schedule.Window(now); inside {
		log.Printf("meeting: resuming meeting opened at %s, closing at %s", open.Format(time.Kitchen), close.Format(time.Kitchen))
		c.state.Open = true
		c.openedAt = open
		c.resetPending()
		c.scheduleWindow(now)
	}

	c.scheduleNextOpen(now)
}

func (c *Coordinator) scheduleAt(at time.Time, fn func()) {
	c.scheduler.Schedule(at.Sub(c.now()), fn)
}

func (c *Coordinator) scheduleNextOpen(after time.Time) {
	at := c.schedule.NextOpen(after)
	log.Printf("meeting: next meeting opens at %s", at.Format(time.RFC1123))
	c.scheduleAt(at, func() {
		c.OpenMeeting()
		c.scheduleNextOpen(at.Add(time.Second))
	})
}

// scheduleWindow arms remind and close for the meeting that is open now.
func (c *Coordinator) scheduleWindow(now time.Time) {
	closeAt := c.schedule.Close.Next(c.schedule.in(now))
	remindAt := c.schedule.Remind.Next(c.schedule.in(now))

	if remindAt.Before(closeAt) {
		c.scheduleAt(remindAt, c.RemindPending)
	}
	c.scheduleAt(closeAt, c.CloseMeeting)
}

func (c *Coordinator) pendingList() string {
	return strings.Join(c.state.PendingSorted(), ", ")
}

func (c *Coordinator) announceOngoing() {
	c.out.Notice("Ongoing meeting!")
	if len(c.state.Pending) > 0 {
		c.out.Notice("Missing updates from: " + c.pendingList())
	}
}

// OpenMeeting starts a cycle. On an already open meeting it only repeats
// who is still missing.
func (c *Coordinator) OpenMeeting() {
	if c.state.Open {
		c.announceOngoing()
		return
	}

	now := c.now()
	log.Print("meeting: status time")

	c.state.Open = true
	c.openedAt = now
	c.resetPending()

	c.out.Notice(fmt.Sprintf("Status time for %s!", c.team))
	c.out.Notice("Please type: /me status: <message>")
	if len(c.state.Pending) > 0 {
		c.out.Describe("*pokes* " + c.pendingList())
	} else {
		c.out.Notice("Everyone has already checked in, thanks!")
	}

	c.scheduleWindow(now)
}

// resetPending sets pending to the roster minus everyone who already
// reported in this cycle.
func (c *Coordinator) resetPending() {
	clear(c.state.Pending)
	reported := c.state.CycleReports()

	for _, nick := range c.roster {
		done := false
		for _, r := range reported {
			if sameParticipant(r.Nick, nick) {
				done = true
				break
			}
		}
		if !done {
			c.state.Pending[nick] = struct{}{}
		}
	}
}

// sameParticipant reports whether a reporting nick stands for the roster
// entry. One trailing underscore marks the alternate nick taken on a
// collision.
func sameParticipant(reporter, rosterNick string) bool {
	if strings.EqualFold(reporter, rosterNick) {
		return true
	}
	base, ok := strings.CutSuffix(reporter, "_")
	return ok && strings.EqualFold(base, rosterNick)
}

// RecordReport stores a participant's status. Reports are accepted at any
// time; outside a meeting they count toward the next one.
func (c *Coordinator) RecordReport(nick, text string) {
	log.Printf("meeting: status from %q: %s", nick, text)

	c.state.Reports[nick] = Report{Nick: nick, Text: text, At: c.now()}
	for pending := range c.state.Pending {
		if sameParticipant(nick, pending) {
			delete(c.state.Pending, pending)
		}
	}

	c.persist()

	if !c.state.Open {
		c.out.Notice(fmt.Sprintf("%s: thanks, your status is noted for the next meeting.", nick))
	}
}

func (c *Coordinator) RemindPending() {
	if !c.state.Open || len(c.state.Pending) == 0 {
		return
	}

	log.Print("meeting: reminding missing participants")
	c.out.Notice("Status reminder!")
	c.out.Describe("*prods* " + c.pendingList())
}

// CloseMeeting ends the open meeting and sends the minutes. A second call,
// or a stale timer, is a no-op.
func (c *Coordinator) CloseMeeting() {
	if !c.state.Open {
		return
	}

	now := c.now()
	log.Print("meeting: ending meeting")

	if c.mailer != nil {
		c.out.Notice("Status meeting over! Thanks all. Sending minutes to the mailing list :-)")
	} else {
		c.out.Notice("Status meeting over! Thanks all.")
	}

	if reports := c.state.CycleReports(); len(reports) > 0 {
		c.publish(Minutes{
			Channel:  c.channel,
			OpenedAt: c.openedAt,
			ClosedAt: now,
			Reports:  reports,
			Missing:  c.state.PendingSorted(),
		})
	}

	c.state.Open = false
	clear(c.state.Pending)
	c.state.CycleStart = now
	c.persist()
}

func (c *Coordinator) publish(m Minutes) {
	body := FormatMinutes(m)

	if c.archive != nil {
		ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
		id, err := c.archive.SaveMinutes(ctx, m)
		cancel()
		if err != nil {
			log.Printf("meeting: failed to archive minutes: %v", err)
		} else {
			log.Printf("meeting: archived minutes #%d", id)
		}
	}

	if c.mailer == nil {
		log.Printf("meeting: mail disabled, minutes follow\n%s", body)
		return
	}
	c.mailer.Send(Subject(c.channel, c.network), body)
}

// Status answers the @status command.
func (c *Coordinator) Status() {
	if c.state.Open {
		c.announceOngoing()
		return
	}

	next := c.schedule.NextOpen(c.now())
	c.out.Notice(fmt.Sprintf("No meeting right now. Next one opens %s.", next.Format("Mon Jan 2 15:04 MST")))
}

func (c *Coordinator) persist() {
	if c.store == nil {
		return
	}
	if err := c.store.Save(c.state.Reports); err != nil {
		log.Printf("meeting: failed to persist reports: %v", err)
	}
}
