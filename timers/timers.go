/* Copyright 2018-2019 Comcast Cable Communications Management, LLC

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package timers settles Futures at requested times.
//
// A timer holds a Future's Resolver and spends it when the clock says
// to.  This is an example producer: the futures machinery neither
// knows nor cares that a timer is on the other end of a Resolver.
package timers

// ToDo: Timers.Suspend, Timers.Resume

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/Comcast/laters/core"
	"github.com/Comcast/laters/util/testutil"

	"github.com/gorhill/cronexpr"
)

var (
	Exists   = errors.New("id exists")
	NotFound = errors.New("not found")
)

// Entry is one scheduled settlement.
type Entry struct {
	Id    string      `json:"id"`
	Value interface{} `json:"value,omitempty"`
	Fails bool        `json:"fails,omitempty"`
	Cron  string      `json:"cron,omitempty"`
	At    time.Time   `json:"at"`

	ctl chan bool
}

// Timers tracks pending timers by id.
type Timers struct {
	// Verbose turns on logging.
	Verbose bool `json:"-" yaml:"-"`

	// Errors, when non-nil, receives what goes wrong inside timer
	// goroutines.  Otherwise problems go to the standard logger.
	Errors chan interface{} `json:"-" yaml:"-"`

	sync.Mutex

	timers map[string]*Entry
	ctl    chan bool
}

func NewTimers() *Timers {
	return &Timers{
		timers: make(map[string]*Entry, 32),
		ctl:    make(chan bool),
	}
}

func (ts *Timers) MarshalJSON() ([]byte, error) {
	ts.Lock()
	m := map[string]interface{}{
		"map": ts.timers,
	}
	bs, err := json.Marshal(&m)
	ts.Unlock()
	return bs, err
}

func (ts *Timers) MarshalYAML() (interface{}, error) {
	ts.Lock()
	cp := testutil.Copy(map[string]interface{}{
		"map": ts.timers,
	})
	ts.Unlock()
	return cp, nil
}

// After returns a Future that fulfills with v after the given
// duration.
func (ts *Timers) After(ctx context.Context, s core.Scheduler, id string, v interface{}, in time.Duration) (*core.Future, error) {
	f, r := core.New(s)
	e := &Entry{
		Id:    id,
		Value: v,
		At:    time.Now().UTC().Add(in),
	}
	if err := ts.add(ctx, e, func() {
		r.Fulfill(v)
	}); err != nil {
		return nil, err
	}
	return f, nil
}

// Fail returns a Future that rejects with the given error after the
// given duration.
func (ts *Timers) Fail(ctx context.Context, s core.Scheduler, id string, reason error, in time.Duration) (*core.Future, error) {
	f, r := core.New(s)
	e := &Entry{
		Id:    id,
		Value: reason.Error(),
		Fails: true,
		At:    time.Now().UTC().Add(in),
	}
	if err := ts.add(ctx, e, func() {
		r.Reject(reason)
	}); err != nil {
		return nil, err
	}
	return f, nil
}

// AfterCron returns a Future that fulfills with v at the next
// occurrence of the given crontab expression (as parsed by
// github.com/gorhill/cronexpr).
func (ts *Timers) AfterCron(ctx context.Context, s core.Scheduler, id string, v interface{}, schedule string) (*core.Future, error) {
	c, err := cronexpr.Parse(schedule)
	if err != nil {
		return nil, err
	}
	at := c.Next(time.Now())
	if at.IsZero() {
		return nil, fmt.Errorf("no next time for '%s'", schedule)
	}

	f, r := core.New(s)
	e := &Entry{
		Id:    id,
		Value: v,
		Cron:  schedule,
		At:    at.UTC(),
	}
	if err := ts.add(ctx, e, func() {
		r.Fulfill(v)
	}); err != nil {
		return nil, err
	}
	return f, nil
}

func (ts *Timers) add(ctx context.Context, e *Entry, settle func()) error {
	ts.Lock()
	defer ts.Unlock()

	if _, have := ts.timers[e.Id]; have {
		return Exists
	}

	e.ctl = make(chan bool)
	ts.timers[e.Id] = e

	stop := func() {
		if err := ts.Rem(ctx, e.Id); err != nil {
			ts.err(fmt.Errorf("timers rem error %v id=%s", err, e.Id))
		}
	}

	go func() {
		timer := time.NewTimer(e.At.Sub(time.Now()))
		select {
		case <-ctx.Done():
			stop()
		case <-e.ctl:
			// We only get here via a Rem() call.
		case <-ts.ctl:
			stop()
		case <-timer.C:
			ts.Logf("Timers firing %s", e.Id)
			settle()
			ts.Lock()
			delete(ts.timers, e.Id)
			ts.Unlock()
		}
	}()

	return nil
}

// Rem cancels the timer with the given id.  The timer's Future stays
// Pending forever, since nothing else holds its Resolver.
func (ts *Timers) Rem(ctx context.Context, id string) error {
	ts.Lock()
	defer ts.Unlock()

	e, have := ts.timers[id]
	if !have {
		return NotFound
	}

	delete(ts.timers, id)

	close(e.ctl)

	return nil
}

// Shutdown cancels all pending timers.
func (ts *Timers) Shutdown() error {
	close(ts.ctl)
	return nil
}

func (ts *Timers) err(err error) {
	if ts.Errors != nil {
		ts.Errors <- err
	} else {
		log.Println(err)
	}
}

// Logf logs if ts.Verbose.
func (ts *Timers) Logf(format string, args ...interface{}) {
	if !ts.Verbose {
		return
	}
	log.Printf(format, args...)
}
