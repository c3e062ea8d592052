package main

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/Comcast/laters/core"
	"github.com/Comcast/laters/run"
	"github.com/Comcast/laters/timers"
)

// handle considers messages for special treatment.
//
// This handler deals with requests to make a timer and to cancel a
// timer.  It reports whether it claimed the message.
func handle(ctx context.Context, queue *run.Queue, ts *timers.Timers, message interface{}, observe func(string, *core.Future)) (bool, error) {

	type MakeTimerRequest struct {
		MakeTimer *struct {
			Id     string      `json:"id"`
			In     string      `json:"in"`
			Value  interface{} `json:"value"`
			Reason string      `json:"reason"`
		} `json:"makeTimer"`
	}

	type CancelTimerRequest struct {
		Id string `json:"cancelTimer"`
	}

	// Parse the message as a MakeTimerRequest or a
	// CancelTimerRequest.  Sorry!
	js := []byte(JS(message))

	var makeRequest MakeTimerRequest
	if err := json.Unmarshal(js, &makeRequest); err == nil && makeRequest.MakeTimer != nil {
		r := makeRequest.MakeTimer
		in, err := time.ParseDuration(r.In)
		if err != nil {
			return true, err
		}
		var f *core.Future
		if r.Reason != "" {
			f, err = ts.Fail(ctx, queue, r.Id, errors.New(r.Reason), in)
		} else {
			f, err = ts.After(ctx, queue, r.Id, r.Value, in)
		}
		if err != nil {
			return true, err
		}
		observe(r.Id, f)
		return true, nil
	}

	var cancelRequest CancelTimerRequest
	if err := json.Unmarshal(js, &cancelRequest); err == nil && cancelRequest.Id != "" {
		return true, ts.Rem(ctx, cancelRequest.Id)
	}

	return false, nil
}
