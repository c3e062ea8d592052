/* Copyright 2018 Comcast Cable Communications Management, LLC
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

// Package journal persists settlement records.
//
// A Journal is an append-only log in a Bolt file.  A nil *Journal is
// a no-op journal, so callers don't have to guard every write.
package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/Comcast/laters/core"

	bolt "go.etcd.io/bbolt"
)

var bucketName = []byte("settlements")

// Entry is one record: a settlement, an unhandled rejection, or a
// job panic.
type Entry struct {
	At        string      `json:"at"`
	Id        string      `json:"id,omitempty"`
	Status    core.Status `json:"status"`
	Value     interface{} `json:"value,omitempty"`
	Reason    string      `json:"reason,omitempty"`
	Unhandled bool        `json:"unhandled,omitempty"`
}

// Journal is a type of persistence.
type Journal struct {
	Debug    bool
	filename string
	db       *bolt.DB
}

func NewJournal(filename string) (*Journal, error) {
	return &Journal{
		filename: filename,
	}, nil
}

func (j *Journal) Open(ctx context.Context) error {
	opts := &bolt.Options{
		Timeout: time.Second,
	}

	db, err := bolt.Open(j.filename, 0644, opts)
	if err != nil {
		return err
	}
	j.db = db
	return nil
}

func (j *Journal) Close(ctx context.Context) error {
	if j == nil {
		return nil
	}
	return j.db.Close()
}

func (j *Journal) logf(format string, args ...interface{}) {
	if j == nil {
		return
	}
	if j.Debug {
		log.Printf("Journal "+format, args...)
	}
}

// Record appends an Entry.  An empty At is filled in.
func (j *Journal) Record(ctx context.Context, e *Entry) error {
	if j == nil {
		return nil
	}

	if e.At == "" {
		e.At = core.Timestamp()
	}

	js, err := json.Marshal(e)
	if err != nil {
		return err
	}

	return j.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucketName)
		if err != nil {
			return err
		}
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		j.logf("Record %016d %s", seq, js)
		return b.Put([]byte(fmt.Sprintf("%016d", seq)), js)
	})
}

// Entries returns every record, oldest first.
func (j *Journal) Entries(ctx context.Context) ([]*Entry, error) {
	if j == nil {
		return nil, nil
	}

	es := make([]*Entry, 0, 32)
	err := j.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var e Entry
			if err := json.Unmarshal(v, &e); err != nil {
				return err
			}
			es = append(es, &e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	j.logf("Entries found %d", len(es))

	return es, nil
}

// Watch records the Future's settlement, when it comes, under the
// given id.
//
// Watching doesn't count as handling: a watched rejection will still
// report as unhandled.
func (j *Journal) Watch(id string, f *core.Future) {
	if j == nil {
		return
	}

	f.Finally(func() error {
		e := &Entry{
			Id:     id,
			Status: f.Status(),
		}
		switch f.Status() {
		case core.Fulfilled:
			e.Value = f.Value()
		case core.Rejected:
			e.Reason = f.Err().Error()
		}
		if err := j.Record(context.Background(), e); err != nil {
			j.logf("Watch record error %v id=%s", err, id)
		}
		return nil
	}).Catch(func(error) (interface{}, error) {
		// Swallow the derivative so watching a rejection
		// doesn't manufacture a second unhandled report.
		return nil, nil
	})
}

// LogUnhandled records unhandled rejections and job panics.  Assign
// it to a Queue's Unhandled hook.
func (j *Journal) LogUnhandled(f *core.Future, err error) {
	e := &Entry{
		Status:    core.Rejected,
		Unhandled: true,
	}
	if err != nil {
		e.Reason = err.Error()
	}
	if rerr := j.Record(context.Background(), e); rerr != nil {
		j.logf("LogUnhandled record error %v", rerr)
	}
}
