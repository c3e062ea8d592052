/* Copyright 2019 Comcast Cable Communications Management, LLC
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 * http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package main is a command-line futures debugger in the spirit of
// gdb.  Settle futures by hand, drain the queue when you feel like
// it, and watch what the reactions do.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/Comcast/laters/core"
	"github.com/Comcast/laters/gather"
	"github.com/Comcast/laters/journal"
	"github.com/Comcast/laters/run"
	"github.com/Comcast/laters/timers"
	"github.com/Comcast/laters/tools"
	. "github.com/Comcast/laters/util/testutil"

	"gopkg.in/yaml.v2"
)

type Opts struct {
	journalFile string
	echo        bool
	verbose     bool
}

func main() {

	opts := &Opts{}
	flag.StringVar(&opts.journalFile, "j", "", "optional journal filename")
	flag.BoolVar(&opts.echo, "e", false, "echo input")
	flag.BoolVar(&opts.verbose, "v", false, "queue verbosity")
	flag.Parse()

	if err := opts.run(); err != nil {
		panic(err)
	}
}

var combinators = map[string]func(core.Scheduler, []*core.Future) *core.Future{
	"all":        gather.All,
	"race":       gather.Race,
	"any":        gather.Any,
	"allsettled": gather.AllSettled,
}

func (opts *Opts) run() error {

	in := os.Stdin
	w := os.Stdout

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := NewHost()
	h.queue.Verbose = opts.verbose
	defer h.timers.Shutdown()

	if opts.journalFile != "" {
		j, err := journal.NewJournal(opts.journalFile)
		if err != nil {
			return err
		}
		if err = j.Open(ctx); err != nil {
			return err
		}
		defer j.Close(ctx)
		h.journal = j
	}

	var (
		makeF = regexp.MustCompile("^make +([-a-zA-Z0-9_]+)")

		fulfill = regexp.MustCompile("^fulfill +([-a-zA-Z0-9_]+) +(.*)")

		adopt = regexp.MustCompile("^adopt +([-a-zA-Z0-9_]+) +([-a-zA-Z0-9_]+)")

		reject = regexp.MustCompile("^reject +([-a-zA-Z0-9_]+) +(.*)")

		chain = regexp.MustCompile("^(then|catch|finally) +([-a-zA-Z0-9_]+) +([-a-zA-Z0-9_]+)( +(.*))?$")

		combine = regexp.MustCompile("^(all|race|any|allsettled) +([-a-zA-Z0-9_]+) +(.*)$")

		timer = regexp.MustCompile("^timer +([-a-zA-Z0-9_]+) +([^ ]+) +(.*)$")

		failtimer = regexp.MustCompile("^failtimer +([-a-zA-Z0-9_]+) +([^ ]+) +(.*)$")

		cron = regexp.MustCompile("^cron +([-a-zA-Z0-9_]+) +(.*)$")

		cancelTimer = regexp.MustCompile("^cancel +([-a-zA-Z0-9_]+)")

		drain = regexp.MustCompile("^drain")

		printqueue = regexp.MustCompile("^printqueue")

		print = regexp.MustCompile("^print( +([-a-zA-Z0-9_]+))?")

		journalCmd = regexp.MustCompile("^journal")

		dump = regexp.MustCompile("^dump( +(.*))?$")

		save = regexp.MustCompile("^save +(.*)")

		debug = regexp.MustCompile("^debug(ging)? (on|off)")

		help = regexp.MustCompile("^(help|h|\\?)")

		outputPrefix = "# "

		say = func(format string, args ...interface{}) {
			fmt.Fprintf(w, outputPrefix+format+"\n", args...)
		}

		protest = func(format string, args ...interface{}) {
			say("error: "+format, args...)
		}
	)

	h.queue.Unhandled = func(f *core.Future, err error) {
		if f == nil {
			say("%s", err)
		} else {
			say("unhandled rejection from '%s': %s", h.names[f], err)
		}
		h.journal.LogUnhandled(f, err)
	}

	r := bufio.NewReader(in)
	for {
		line, err := r.ReadString('\n')
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		line = strings.TrimSpace(line)

		if opts.echo {
			fmt.Println(line)
		}

		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "#") {
			continue
		}

		var ss []string

		if ss = help.FindStringSubmatch(line); 0 < len(ss) {
			for _, s := range strings.Split(doc(), "\n") {
				say("%s", s)
			}
			continue
		}
		if ss = makeF.FindStringSubmatch(line); 0 < len(ss) {
			if err := h.Make(ss[1]); err != nil {
				protest("%s", err)
				continue
			}
			say("%d futures now", len(h.futures))
			continue
		}
		if ss = fulfill.FindStringSubmatch(line); 0 < len(ss) {
			var v interface{}
			if err := json.Unmarshal([]byte(ss[2]), &v); err != nil {
				protest("couldn't parse value %s", ss[2])
				continue
			}
			if err := h.Fulfill(ss[1], v); err != nil {
				protest("%s", err)
			}
			continue
		}
		if ss = adopt.FindStringSubmatch(line); 0 < len(ss) {
			if err := h.Adopt(ss[1], ss[2]); err != nil {
				protest("%s", err)
			}
			continue
		}
		if ss = reject.FindStringSubmatch(line); 0 < len(ss) {
			if err := h.Reject(ss[1], ss[2]); err != nil {
				protest("%s", err)
			}
			continue
		}
		if ss = chain.FindStringSubmatch(line); 0 < len(ss) {
			if err := h.Chain(ctx, ss[1], ss[2], ss[3], ss[5]); err != nil {
				protest("%s", err)
			}
			continue
		}
		if ss = combine.FindStringSubmatch(line); 0 < len(ss) {
			if err := h.Gather(ss[1], ss[2], strings.Fields(ss[3])); err != nil {
				protest("%s", err)
			}
			continue
		}
		if ss = timer.FindStringSubmatch(line); 0 < len(ss) {
			var v interface{}
			if err := json.Unmarshal([]byte(ss[3]), &v); err != nil {
				protest("couldn't parse value %s", ss[3])
				continue
			}
			if err := h.Timer(ctx, ss[1], ss[2], v, ""); err != nil {
				protest("%s", err)
			}
			continue
		}
		if ss = failtimer.FindStringSubmatch(line); 0 < len(ss) {
			if err := h.Timer(ctx, ss[1], ss[2], nil, ss[3]); err != nil {
				protest("%s", err)
			}
			continue
		}
		if ss = cron.FindStringSubmatch(line); 0 < len(ss) {
			if err := h.Cron(ctx, ss[1], ss[2]); err != nil {
				protest("%s", err)
			}
			continue
		}
		if ss = cancelTimer.FindStringSubmatch(line); 0 < len(ss) {
			if err := h.timers.Rem(ctx, ss[1]); err != nil {
				protest("%s", err)
				continue
			}
			say("canceled '%s', which stays pending forever", ss[1])
			continue
		}
		if ss = drain.FindStringSubmatch(line); 0 < len(ss) {
			say("ran %d jobs", h.queue.Drain())
			continue
		}
		if ss = printqueue.FindStringSubmatch(line); 0 < len(ss) {
			say("queue has %d jobs", h.queue.Pending())
			continue
		}
		if ss = journalCmd.FindStringSubmatch(line); 0 < len(ss) {
			if h.journal == nil {
				protest("no journal (use -j)")
				continue
			}
			entries, err := h.journal.Entries(ctx)
			if err != nil {
				protest("%s", err)
				continue
			}
			for i, e := range entries {
				say("%d. %s", i, JS(e))
			}
			continue
		}
		if ss = dump.FindStringSubmatch(line); 0 < len(ss) {
			if h.journal == nil {
				protest("no journal (use -j)")
				continue
			}
			entries, err := h.journal.Entries(ctx)
			if err != nil {
				protest("%s", err)
				continue
			}
			canonical, err := core.Canonicalize(entries)
			if err != nil {
				return err // Internal error
			}
			bs, err := yaml.Marshal(canonical)
			if err != nil {
				return err // Internal error
			}
			if ss[2] != "" {
				if err = ioutil.WriteFile(ss[2], bs, 0644); err != nil {
					protest("writing file: %s", err)
				}
				continue
			}
			for _, s := range strings.Split(strings.TrimRight(string(bs), "\n"), "\n") {
				say("%s", s)
			}
			continue
		}
		if ss = debug.FindStringSubmatch(line); 0 < len(ss) {
			switch ss[2] {
			case "on":
				h.queue.Verbose = true
				say("debugging")
			case "off":
				h.queue.Verbose = false
				say("not debugging")
			}
			continue
		}
		if ss = print.FindStringSubmatch(line); 0 < len(ss) {
			id := ss[2]
			if id == "" {
				for id, f := range h.futures {
					say("future %s: %s", id, f)
				}
				continue
			}
			f, have := h.futures[id]
			if !have {
				protest("future '%s' not found", id)
				continue
			}
			say("future %s: %s", id, f)
			continue
		}
		if ss = save.FindStringSubmatch(line); 0 < len(ss) {
			js, err := json.MarshalIndent(&h.futures, "  ", "  ")
			if err != nil {
				return err // Internal error
			}
			if err = ioutil.WriteFile(ss[1], js, 0644); err != nil {
				protest("writing file: %s", err)
			}
			continue
		}

		protest("unsupported command: %s", line)
	}
}

// Host owns the queue, the timers, and the futures under scrutiny.
type Host struct {
	queue   *run.Queue
	timers  *timers.Timers
	journal *journal.Journal

	futures   map[string]*core.Future
	resolvers map[string]*core.Resolver
	names     map[*core.Future]string
}

func NewHost() *Host {
	return &Host{
		queue:     run.NewQueue(),
		timers:    timers.NewTimers(),
		futures:   make(map[string]*core.Future, 32),
		resolvers: make(map[string]*core.Resolver, 32),
		names:     make(map[*core.Future]string, 32),
	}
}

func (h *Host) Register(id string, f *core.Future, r *core.Resolver) error {
	if _, have := h.futures[id]; have {
		return fmt.Errorf("id '%s' exists", id)
	}
	h.futures[id] = f
	h.names[f] = id
	if r != nil {
		h.resolvers[id] = r
	}
	h.journal.Watch(id, f)
	return nil
}

func (h *Host) Make(id string) error {
	f, r := core.New(h.queue)
	return h.Register(id, f, r)
}

func (h *Host) resolver(id string) (*core.Resolver, error) {
	r, have := h.resolvers[id]
	if !have {
		if _, also := h.futures[id]; also {
			return nil, fmt.Errorf("future '%s' has no resolver", id)
		}
		return nil, fmt.Errorf("future '%s' not found", id)
	}
	return r, nil
}

func (h *Host) Fulfill(id string, v interface{}) error {
	r, err := h.resolver(id)
	if err != nil {
		return err
	}
	r.Fulfill(v)
	return nil
}

func (h *Host) Adopt(id, other string) error {
	r, err := h.resolver(id)
	if err != nil {
		return err
	}
	f, have := h.futures[other]
	if !have {
		return fmt.Errorf("future '%s' not found", other)
	}
	r.Fulfill(f)
	return nil
}

func (h *Host) Reject(id string, reason string) error {
	r, err := h.resolver(id)
	if err != nil {
		return err
	}
	r.Reject(errors.New(reason))
	return nil
}

func (h *Host) Chain(ctx context.Context, kind, on, as, src string) error {
	f, have := h.futures[on]
	if !have {
		return fmt.Errorf("future '%s' not found", on)
	}

	var guard *tools.Guard
	if src != "" {
		var err error
		if guard, err = tools.CompileGuard(src); err != nil {
			return err
		}
	}

	var d *core.Future
	switch kind {
	case "then":
		var handler core.FulfilledFunc
		if guard != nil {
			handler = func(v interface{}) (interface{}, error) {
				return guard.Exec(ctx, map[string]interface{}{
					"value": v,
				})
			}
		}
		d = f.Then(handler, nil)
	case "catch":
		handler := func(err error) (interface{}, error) {
			return nil, nil
		}
		if guard != nil {
			handler = func(err error) (interface{}, error) {
				return guard.Exec(ctx, map[string]interface{}{
					"reason": err.Error(),
				})
			}
		}
		d = f.Catch(handler)
	case "finally":
		handler := func() error { return nil }
		if guard != nil {
			handler = func() error {
				_, err := guard.Exec(ctx, nil)
				return err
			}
		}
		d = f.Finally(handler)
	}

	return h.Register(as, d, nil)
}

func (h *Host) Gather(kind, as string, ids []string) error {
	combinator, have := combinators[kind]
	if !have {
		return fmt.Errorf("unknown combinator '%s'", kind)
	}
	fs := make([]*core.Future, 0, len(ids))
	for _, id := range ids {
		f, have := h.futures[id]
		if !have {
			return fmt.Errorf("future '%s' not found", id)
		}
		fs = append(fs, f)
	}
	return h.Register(as, combinator(h.queue, fs), nil)
}

func (h *Host) Timer(ctx context.Context, id, in string, v interface{}, reason string) error {
	if _, have := h.futures[id]; have {
		return fmt.Errorf("id '%s' exists", id)
	}
	d, err := time.ParseDuration(in)
	if err != nil {
		return err
	}
	var f *core.Future
	if reason == "" {
		f, err = h.timers.After(ctx, h.queue, id, v, d)
	} else {
		f, err = h.timers.Fail(ctx, h.queue, id, errors.New(reason), d)
	}
	if err != nil {
		return err
	}
	return h.Register(id, f, nil)
}

func (h *Host) Cron(ctx context.Context, id, schedule string) error {
	if _, have := h.futures[id]; have {
		return fmt.Errorf("id '%s' exists", id)
	}
	f, err := h.timers.AfterCron(ctx, h.queue, id, nil, schedule)
	if err != nil {
		return err
	}
	return h.Register(id, f, nil)
}

func doc() string {
	return `
  make ID                     Create a future (and its resolver) with that ID
  fulfill ID VALUE            Fulfill: VALUE is JSON
  reject ID REASON            Reject with an error message
  adopt ID OTHERID            Fulfill ID with the future OTHERID, which it adopts
  then ON AS [CODE]           Derive AS from ON with an optional fulfillment guard
  catch ON AS [CODE]          Derive AS from ON with an optional rejection guard
  finally ON AS               Derive AS from ON, just observing
  all AS ID...                AS gets every ID's value (or the first rejection)
  race AS ID...               AS gets the first settlement
  any AS ID...                AS gets the first fulfillment
  allsettled AS ID...         AS gets every ID's outcome
  timer ID DURATION VALUE     Fulfill a new future ID with VALUE after DURATION
  failtimer ID DURATION MSG   Reject a new future ID after DURATION
  cron ID SCHEDULE            Fulfill a new future ID per the cron SCHEDULE
  cancel ID                   Cancel a timer (its future stays pending)
  drain                       Run queued reactions until the queue is empty
  print [ID]                  Print the state of the future with that ID
  printqueue                  Show the number of queued jobs
  journal                     Show the journal (requires -j)
  dump [FILENAME]             Dump the journal as YAML, to a file if given (requires -j)
  save FILENAME               Save a snapshot of the futures to this file
  debug on/off                When debugging, the queue logs its work
  help                        Show this documentation
`
}
