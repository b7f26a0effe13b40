package digest

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/antlu/statusbot/internal/board"
)

const (
	staleAfter     = 14 * 24 * time.Hour
	progressWindow = 7 * 24 * time.Hour
)

// Who resolves a board member to the name shown in the channel.
type Who func(m board.Member) string

func quoted(s string) string {
	return `"` + s + `"`
}

func withURL(line string, card *board.CardRef) string {
	if u := card.URL(); u != "" {
		return line + " " + u
	}
	return line
}

// Describe renders one board action as a channel line. ok is false for
// actions that are malformed or not worth relaying.
func Describe(a board.Action, who Who) (line string, ok bool, reason string) {
	card := a.Data.Card
	if card == nil || card.Name == "" {
		return "", false, "action has no card"
	}
	actor := who(a.MemberCreator)

	switch a.Type {
	case board.ActionCreateCard:
		line = fmt.Sprintf("%s created %s", actor, quoted(card.Name))
		if a.Data.List != nil && a.Data.List.Name != "" {
			line += " in " + a.Data.List.Name
		}
	case board.ActionCommentCard:
		line = fmt.Sprintf("%s commented on %s: %s", actor, quoted(card.Name), strings.Join(strings.Fields(a.Data.Text), " "))
	case board.ActionUpdateCard:
		switch {
		case a.Data.ListBefore != nil && a.Data.ListAfter != nil:
			line = fmt.Sprintf("%s moved %s from %s to %s", actor, quoted(card.Name), a.Data.ListBefore.Name, a.Data.ListAfter.Name)
		case a.Data.Old.Closed != nil && !*a.Data.Old.Closed:
			line = fmt.Sprintf("%s archived %s", actor, quoted(card.Name))
		case a.Data.Old.Closed != nil:
			line = fmt.Sprintf("%s reopened %s", actor, quoted(card.Name))
		case a.Data.Old.Name != "":
			line = fmt.Sprintf("%s renamed %s to %s", actor, quoted(a.Data.Old.Name), quoted(card.Name))
		default:
			line = fmt.Sprintf("%s updated %s", actor, quoted(card.Name))
		}
	case board.ActionCheckItemState:
		item := a.Data.CheckItem
		if item == nil {
			return "", false, "checklist action has no item"
		}
		if item.State != "complete" {
			return "", false, ""
		}
		line = fmt.Sprintf("%s completed %s on %s", actor, quoted(item.Name), quoted(card.Name))
	default:
		return "", false, "unknown action type " + a.Type
	}

	return withURL(line, card), true, ""
}

// WeeklyReport lists cards idle for two weeks and the work that moved in
// the last week, keeping only the latest action per card or checklist item.
func WeeklyReport(now time.Time, cards []board.Card, lists []board.List, actions []board.Action) []string {
	listName := make(map[string]string, len(lists))
	for _, l := range lists {
		listName[l.ID] = l.Name
	}

	lines := []string{"Weekly board report"}

	var stale []board.Card
	for _, c := range cards {
		if !c.Closed && now.Sub(c.DateLastActivity) >= staleAfter {
			stale = append(stale, c)
		}
	}
	sort.Slice(stale, func(i, j int) bool { return stale[i].DateLastActivity.Before(stale[j].DateLastActivity) })

	if len(stale) == 0 {
		lines = append(lines, "No stale cards.")
	} else {
		lines = append(lines, "Unmoved for two weeks:")
		for _, c := range stale {
			line := "  " + quoted(c.Name)
			if name := listName[c.IDList]; name != "" {
				line += " in " + name
			}
			if c.ShortURL != "" {
				line += " " + c.ShortURL
			}
			lines = append(lines, line)
		}
	}

	progressed := latestProgress(now, actions)
	if len(progressed) == 0 {
		lines = append(lines, "Nothing progressed this week.")
		return lines
	}

	lines = append(lines, "Progressed this week:")
	for _, a := range progressed {
		card := a.Data.Card
		switch a.Type {
		case board.ActionUpdateCard:
			lines = append(lines, withURL(fmt.Sprintf("  %s moved to %s", quoted(card.Name), a.Data.ListAfter.Name), card))
		case board.ActionCheckItemState:
			lines = append(lines, fmt.Sprintf("  %s completed on %s", quoted(a.Data.CheckItem.Name), quoted(card.Name)))
		}
	}
	return lines
}

func latestProgress(now time.Time, actions []board.Action) []board.Action {
	latest := make(map[string]board.Action)

	for _, a := range actions {
		if a.Data.Card == nil || now.Sub(a.Date) > progressWindow {
			continue
		}

		var key string
		switch {
		case a.Type == board.ActionUpdateCard && a.Data.ListAfter != nil:
			key = "card:" + a.Data.Card.ID
		case a.Type == board.ActionCheckItemState && a.Data.CheckItem != nil:
			key = "item:" + a.Data.CheckItem.ID
		default:
			continue
		}

		if prev, ok := latest[key]; !ok || a.Date.After(prev.Date) {
			latest[key] = a
		}
	}

	out := make([]board.Action, 0, len(latest))
	for _, a := range latest {
		if a.Type == board.ActionCheckItemState && a.Data.CheckItem.State != "complete" {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}
