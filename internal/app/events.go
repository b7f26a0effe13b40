package app

import (
	"log"
	"strings"
)

const (
	statusCommand = "@status"
	reportPrefix  = "status"
)

type commands interface {
	Status()
	RecordReport(nick, text string)
}

type poster interface {
	Post(fn func())
}

// events moves channel traffic from the IRC goroutine onto the loop.
type events struct {
	loop    poster
	meeting commands
}

func (e *events) OnJoined(channel string) {
	log.Printf("irc: ready in %s", channel)
}

func (e *events) OnMessage(nick, text string) {
	if text != statusCommand {
		return
	}
	e.loop.Post(e.meeting.Status)
}

// OnAction records "/me status: ..." lines. The whole action text is the
// report, so minutes read "nick status: ...".
func (e *events) OnAction(nick, text string) {
	text = strings.TrimSpace(text)
	if !isReport(text) {
		return
	}
	e.loop.Post(func() { e.meeting.RecordReport(nick, text) })
}

func isReport(text string) bool {
	return len(text) >= len(reportPrefix) && strings.EqualFold(text[:len(reportPrefix)], reportPrefix)
}
