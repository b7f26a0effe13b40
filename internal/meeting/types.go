package meeting

import (
	"context"
	"slices"
	"sort"
	"strings"
	"time"
)

// Roster is the fixed set of expected participants, kept sorted.
type Roster []string

func NewRoster(nicks []string) Roster {
	r := make(Roster, 0, len(nicks))
	for _, nick := range nicks {
		nick = strings.TrimSpace(nick)
		if nick == "" || slices.Contains(r, nick) {
			continue
		}
		r = append(r, nick)
	}
	sort.Strings(r)
	return r
}

// Report is the latest status a participant posted.
type Report struct {
	Nick string
	Text string
	At   time.Time
}

// State is the mutable meeting state. It is only touched on the event loop.
type State struct {
	Open       bool
	Pending    map[string]struct{}
	Reports    map[string]Report
	CycleStart time.Time
}

func newState() State {
	return State{
		Pending: make(map[string]struct{}),
		Reports: make(map[string]Report),
	}
}

func (s State) PendingSorted() []string {
	out := make([]string, 0, len(s.Pending))
	for nick := range s.Pending {
		out = append(out, nick)
	}
	sort.Strings(out)
	return out
}

// CycleReports returns the reports received since the cycle began, sorted
// by nick.
func (s State) CycleReports() []Report {
	var out []Report
	for _, r := range s.Reports {
		if !r.At.Before(s.CycleStart) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Nick < out[j].Nick })
	return out
}

// Minutes is the summary of one closed meeting.
type Minutes struct {
	Channel  string
	OpenedAt time.Time
	ClosedAt time.Time
	Reports  []Report
	Missing  []string
}

type Broadcaster interface {
	Notice(text string)
	Describe(text string)
}

// Mailer delivers best-effort. Send must not block on the network.
type Mailer interface {
	Send(subject, body string)
}

type Scheduler interface {
	Schedule(delay time.Duration, fn func()) (cancel func())
}

type ReportStore interface {
	Load() (map[string]Report, error)
	Save(reports map[string]Report) error
}

type Archive interface {
	SaveMinutes(ctx context.Context, m Minutes) (int64, error)
}
