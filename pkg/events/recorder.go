/*
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

// Package events publishes scheduler diagnostics with dedupe, so a machine
// stuck flapping between invariant-violation states doesn't flood the log
// with one line per tick.
package events

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/go-logr/logr"
)

// Event is one diagnostic occurrence. DedupeValues, when non-empty, causes
// repeats of the same Reason+DedupeValues within DedupeTimeout to be
// suppressed.
type Event struct {
	Reason        string
	Message       string
	KeysAndValues []interface{}
	DedupeValues  []string
	DedupeTimeout time.Duration
}

func (e Event) dedupeKey() string {
	return fmt.Sprintf("%s-%s", strings.ToLower(e.Reason), strings.Join(e.DedupeValues, "-"))
}

// Recorder publishes Events to the scheduler's logger.
type Recorder interface {
	Publish(ctx context.Context, evts ...Event)
}

const defaultDedupeTimeout = 2 * time.Minute

type recorder struct {
	log   logr.Logger
	cache *cache.Cache
}

// NewRecorder builds a Recorder that logs through log, deduping repeated
// events via an in-memory cache keyed on reason and dedupe values.
func NewRecorder(log logr.Logger) Recorder {
	return &recorder{
		log:   log,
		cache: cache.New(defaultDedupeTimeout, 10*time.Second),
	}
}

func (r *recorder) Publish(ctx context.Context, evts ...Event) {
	for _, evt := range evts {
		r.publish(ctx, evt)
	}
}

func (r *recorder) publish(ctx context.Context, evt Event) {
	timeout := defaultDedupeTimeout
	if evt.DedupeTimeout != 0 {
		timeout = evt.DedupeTimeout
	}
	if len(evt.DedupeValues) > 0 && !r.shouldLog(evt.dedupeKey(), timeout) {
		return
	}
	r.log.WithValues(evt.KeysAndValues...).Info(evt.Message, "reason", evt.Reason)
}

func (r *recorder) shouldLog(key string, timeout time.Duration) bool {
	if _, ok := r.cache.Get(key); ok {
		return false
	}
	r.cache.Set(key, struct{}{}, timeout)
	return true
}
