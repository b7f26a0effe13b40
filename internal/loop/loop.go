// Package loop runs every handler and delayed callback of the bot on a
// single goroutine, so bot state never needs a lock.
package loop

import (
	"context"
	"sync"
	"time"
)

type Loop struct {
	tasks chan func()
	done  chan struct{}
	once  sync.Once
}

func New() *Loop {
	return &Loop{
		tasks: make(chan func(), 64),
		done:  make(chan struct{}),
	}
}

// Run executes posted tasks in order until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	defer l.once.Do(func() { close(l.done) })

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-l.tasks:
			fn()
		}
	}
}

// Post enqueues fn. Tasks posted after Run has returned are dropped.
func (l *Loop) Post(fn func()) {
	select {
	case l.tasks <- fn:
	case <-l.done:
	}
}

// Schedule posts fn once, no earlier than delay from now. The returned
// func stops the timer if it has not fired yet.
func (l *Loop) Schedule(delay time.Duration, fn func()) (cancel func()) {
	if delay < 0 {
		delay = 0
	}
	timer := time.AfterFunc(delay, func() { l.Post(fn) })
	return func() { timer.Stop() }
}

// Call runs fn on the loop and waits for it to finish.
func (l *Loop) Call(fn func()) {
	finished := make(chan struct{})
	l.Post(func() {
		defer close(finished)
		fn()
	})
	select {
	case <-finished:
	case <-l.done:
	}
}
