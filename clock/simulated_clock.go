// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package clock

import (
	"sync"
	"time"
)

type afterRequest struct {
	targetTime time.Time
	ch         chan time.Time
}

// SimulatedClock is a Clock whose notion of time only moves when AdvanceTime
// or SetTime is called, so time-dependent code can be driven
// deterministically.
type SimulatedClock struct {
	mu      sync.Mutex
	t       time.Time
	pending []*afterRequest
}

func NewSimulatedClock(startTime time.Time) *SimulatedClock {
	return &SimulatedClock{t: startTime}
}

func (c *SimulatedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *SimulatedClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	req := &afterRequest{
		targetTime: c.t.Add(d),
		ch:         make(chan time.Time, 1),
	}

	if !req.targetTime.After(c.t) {
		req.ch <- c.t
		return req.ch
	}

	c.pending = append(c.pending, req)
	return req.ch
}

// SetTime sets the clock to t, firing any pending After channels whose
// target time has passed.
func (c *SimulatedClock) SetTime(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t

	remaining := c.pending[:0]
	for _, req := range c.pending {
		if !req.targetTime.After(t) {
			req.ch <- t
		} else {
			remaining = append(remaining, req)
		}
	}
	c.pending = remaining
}

// AdvanceTime moves the clock forward by d.
func (c *SimulatedClock) AdvanceTime(d time.Duration) {
	c.mu.Lock()
	t := c.t.Add(d)
	c.mu.Unlock()
	c.SetTime(t)
}
