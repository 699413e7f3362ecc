/*
 * DECtape - Event scheduler
 *
 * Copyright 2024, Richard Cornwell
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in
 * all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

// Package event implements a single-threaded, cooperative discrete-event
// scheduler: a delta-ordered queue of pending callbacks plus an absolute
// simulated clock. Drives need the absolute clock because the position
// integrator computes distance travelled as now-minus-last-update-time,
// and that difference has to survive a snapshot/restore where "time until
// the next event" alone would not.
package event

import (
	D "github.com/rcornwell/dectape/emu/device"
)

// Callback is invoked when a scheduled event fires.
type Callback = func(iarg int)

type entry struct {
	time int      // Ticks remaining relative to the previous entry.
	dev  D.Device // Device the event is registered to.
	cb   Callback
	iarg int
	prev *entry
	next *entry
}

// Scheduler is one independent simulated clock with its own pending
// event list. The teacher's event package kept this as package-level
// state; a controller instance owns its own Scheduler instead so tests
// (and, eventually, multiple controllers) never share a clock.
type Scheduler struct {
	head *entry
	tail *entry
	now  int // Absolute simulated time, in ticks, since the scheduler was created.
}

// NewScheduler returns a scheduler with its clock at zero.
func NewScheduler() *Scheduler {
	return &Scheduler{}
}

// Now returns the absolute simulated time in ticks.
func (s *Scheduler) Now() int {
	return s.now
}

// AddEvent schedules cb to run iarg after delay ticks from now. A delay
// of 0 runs the callback immediately, synchronously.
func (s *Scheduler) AddEvent(dev D.Device, cb Callback, delay int, iarg int) {
	if delay == 0 {
		cb(iarg)
		return
	}

	ev := &entry{dev: dev, cb: cb, time: delay, iarg: iarg}

	ptr := s.head
	if ptr == nil {
		s.head = ev
		s.tail = ev
		return
	}

	for ptr != nil {
		if ev.time <= ptr.time {
			ptr.time -= ev.time
			ev.prev = ptr.prev
			ev.next = ptr
			ptr.prev = ev
			if ev.prev != nil {
				ev.prev.next = ev
			} else {
				s.head = ev
			}
			return
		}
		ev.time -= ptr.time
		ptr = ptr.next
	}

	ev.prev = s.tail
	s.tail.next = ev
	s.tail = ev
}

// CancelEvent removes the first pending event matching dev and iarg, if any.
func (s *Scheduler) CancelEvent(dev D.Device, iarg int) {
	ptr := s.head
	for ptr != nil {
		if ptr.dev == dev && ptr.iarg == iarg {
			if ptr.next != nil {
				ptr.next.time += ptr.time
				ptr.next.prev = ptr.prev
			} else {
				s.tail = ptr.prev
			}
			if ptr.prev != nil {
				ptr.prev.next = ptr.next
			} else {
				s.head = ptr.next
			}
			return
		}
		ptr = ptr.next
	}
}

// Advance moves the simulated clock forward by t ticks, firing every
// event whose relative delay has elapsed.
func (s *Scheduler) Advance(t int) {
	s.now += t
	if s.head == nil {
		return
	}
	s.head.time -= t
	for s.head != nil && s.head.time <= 0 {
		// Unlink before the callback runs, so a callback that cancels or
		// reschedules its own event sees a consistent list, and carry any
		// overshoot into the next entry so it fires too once elapsed.
		ptr := s.head
		s.head = ptr.next
		if s.head != nil {
			s.head.prev = nil
			s.head.time += ptr.time
		} else {
			s.tail = nil
		}
		ptr.cb(ptr.iarg)
	}
}
