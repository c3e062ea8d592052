// A simple, single-process host that reads JSON messages from stdin
// and writes settlements to stdout.
//
// Each plain message becomes a fulfilled Future with an observer that
// prints the settlement.  A few message shapes get special treatment:
//
//   {"fail":"reason"}                             reject with nothing attached
//   {"catch":"reason"}                            reject into a catch
//   {"makeTimer":{"id":"t","in":"2s","value":1}}  settle a Future later
//   {"cancelTimer":"t"}                           never mind
//
// Everything runs on the Loop's goroutine.  Stdin lines and timer
// firings both just schedule work, which is the whole point of the
// demo.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/Comcast/laters/core"
	"github.com/Comcast/laters/run"
	"github.com/Comcast/laters/timers"
)

func main() {

	var (
		diag = flag.Bool("d", false, "print diagnostics")
		echo = flag.Bool("e", false, "echo input messages")
	)

	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	queue := run.NewQueue()
	queue.Verbose = *diag

	queue.Unhandled = func(f *core.Future, err error) {
		if f == nil {
			fmt.Printf("%s\n", JS(map[string]interface{}{"panic": err.Error()}))
			return
		}
		fmt.Printf("%s\n", JS(map[string]interface{}{"unhandled": err.Error()}))
	}

	ts := timers.NewTimers()
	ts.Verbose = *diag
	defer ts.Shutdown()

	loop := run.NewLoop(queue)
	loop.Verbose = *diag

	// observe prints f's settlement under the given id.  The Catch
	// swallows the derivative so that observing a rejection doesn't
	// also mark it handled.
	observe := func(id string, f *core.Future) {
		f.Finally(func() error {
			settlement := map[string]interface{}{
				"id":     id,
				"status": f.Status().String(),
			}
			switch f.Status() {
			case core.Fulfilled:
				settlement["value"] = f.Value()
			case core.Rejected:
				settlement["reason"] = f.Err().Error()
			}
			fmt.Printf("%s\n", JS(settlement))
			return nil
		}).Catch(func(err error) (interface{}, error) {
			return nil, nil
		})
	}

	n := 0
	gensym := func() string {
		id := fmt.Sprintf("m%d", n)
		n++
		return id
	}

	process := func(message interface{}) error {
		if claimed, err := handle(ctx, queue, ts, message, observe); claimed {
			return err
		}

		if m, ok := message.(map[string]interface{}); ok {
			if reason, ok := m["fail"].(string); ok {
				observe(gensym(), core.Reject(queue, errors.New(reason)))
				return nil
			}
			if reason, ok := m["catch"].(string); ok {
				f := core.Reject(queue, errors.New(reason))
				recovered := f.Catch(func(err error) (interface{}, error) {
					return map[string]interface{}{"recovered": err.Error()}, nil
				})
				observe(gensym(), recovered)
				return nil
			}
		}

		observe(gensym(), core.Resolve(queue, message))
		return nil
	}

	// Feed stdin through the Queue so that all of the machinery
	// runs on the Loop's goroutine.
	go func() {
		in := bufio.NewReader(os.Stdin)
		for {
			line, err := in.ReadBytes('\n')
			if err == io.EOF {
				cancel()
				return
			}
			if err != nil {
				panic(err)
			}
			var message interface{}
			if err = json.Unmarshal(line, &message); err != nil {
				fmt.Printf("error: %s\n", err)
				continue
			}

			if *echo {
				fmt.Printf("in: %s\n", JS(message))
			}

			queue.Schedule(func() {
				if err := process(message); err != nil {
					warn(err)
				}
			})
		}
	}()

	loop.Run(ctx)
}
