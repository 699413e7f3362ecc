/*
 * DECtape - Per-drive state machine test cases.
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

package tc02

import (
	"testing"

	"github.com/rcornwell/dectape/emu/event"
	"github.com/rcornwell/dectape/emu/tc02/tcimage"
)

func newTestDrive(t *testing.T) (*Drive, *event.Scheduler) {
	t.Helper()
	sched := event.NewScheduler()
	c := NewController(sched)
	d := c.drives[0]
	d.attached = true
	d.image = tcimage.NewImage(tcimage.StandardGeometry)
	return d, sched
}

func TestAdvancePromotesQueuedSteps(t *testing.T) {
	d, _ := newTestDrive(t)
	d.current = MotionStep{MotionAccelFwd, 0}
	d.pushNext(MotionStep{MotionAtSpeedFwd, FuncRead})
	d.pushNextNext(MotionStep{MotionDecelFwd, 0})

	step := d.advance()
	if step.Motion != MotionAtSpeedFwd || step.Function != FuncRead {
		t.Fatalf("got %+v, want at-speed/read", step)
	}
	if d.pendingLen != 1 || d.pending[0].Motion != MotionDecelFwd {
		t.Fatalf("next-next should have been promoted to next, got pendingLen=%d pending[0]=%+v",
			d.pendingLen, d.pending[0])
	}

	step = d.advance()
	if step.Motion != MotionDecelFwd {
		t.Fatalf("got %+v, want decel", step)
	}
	if d.pendingLen != 0 {
		t.Fatalf("queue should be empty, got pendingLen=%d", d.pendingLen)
	}
}

func TestAdvanceWithNothingQueuedGoesToStop(t *testing.T) {
	d, _ := newTestDrive(t)
	d.current = MotionStep{MotionDecelFwd, 0}
	step := d.advance()
	if step.Motion != MotionStop {
		t.Fatalf("got %+v, want stop", step)
	}
}

func TestUpdatePositionAtSpeedIsLinear(t *testing.T) {
	d, sched := newTestDrive(t)
	d.current = MotionStep{MotionAtSpeedFwd, FuncRead}
	d.position = tcimage.EndZoneLines
	d.lastUpdate = 0

	sched.Advance(d.ctrl.lineTime * 10)
	d.updatePosition()

	want := tcimage.EndZoneLines + 10
	if d.position != want {
		t.Fatalf("got %d want %d", d.position, want)
	}
}

func TestUpdatePositionReverseSubtracts(t *testing.T) {
	d, sched := newTestDrive(t)
	d.current = MotionStep{MotionAtSpeedRev, FuncRead}
	d.position = tcimage.EndZoneLines + 1000
	d.lastUpdate = 0

	sched.Advance(d.ctrl.lineTime * 10)
	d.updatePosition()

	want := tcimage.EndZoneLines + 990
	if d.position != want {
		t.Fatalf("got %d want %d", d.position, want)
	}
}

func TestUpdatePositionRunsOffReelAtNegativePosition(t *testing.T) {
	d, sched := newTestDrive(t)
	d.current = MotionStep{MotionAtSpeedRev, FuncRead}
	d.position = 5
	d.lastUpdate = 0

	sched.Advance(d.ctrl.lineTime * 100)
	detached := d.updatePosition()

	if !detached {
		t.Fatalf("expected the drive to detach after running past the start of the reel")
	}
	if d.attached {
		t.Fatalf("drive should no longer be attached")
	}
}

func TestUpdatePositionZeroElapsedIsNoop(t *testing.T) {
	d, _ := newTestDrive(t)
	d.current = MotionStep{MotionAtSpeedFwd, FuncRead}
	d.position = tcimage.EndZoneLines
	d.lastUpdate = 0

	if d.updatePosition() {
		t.Fatalf("zero-elapsed update should never detach")
	}
	if d.position != tcimage.EndZoneLines {
		t.Fatalf("position should be unchanged, got %d", d.position)
	}
}

func TestServiceReadAppliesComplementObverseInReverse(t *testing.T) {
	d, sched := newTestDrive(t)
	d.image.WriteWord(0, 0, 0123456)

	geo := d.geometry()
	dataStart := geo.BlockToLine(0) + tcimage.HeaderTrailerLines
	d.position = dataStart
	d.lastUpdate = sched.Now()
	d.current = MotionStep{MotionAtSpeedRev, FuncRead}

	d.service()

	want := tcimage.ComplementObverse(0123456)
	if d.ctrl.dataBuffer != want {
		t.Fatalf("got %#o want %#o", d.ctrl.dataBuffer, want)
	}
}

func TestServiceWriteStoresDataWord(t *testing.T) {
	d, sched := newTestDrive(t)
	geo := d.geometry()
	dataStart := geo.BlockToLine(2) + tcimage.HeaderTrailerLines
	d.position = dataStart
	d.lastUpdate = sched.Now()
	d.current = MotionStep{MotionAtSpeedFwd, FuncWrite}
	d.ctrl.dataBuffer = 0654321

	d.service()

	if got := d.image.ReadWord(2, 0); got != 0654321 {
		t.Fatalf("got %#o want %#o", got, 0654321)
	}
}

func TestNewFunctionRejectsWrongEndZone(t *testing.T) {
	d, sched := newTestDrive(t)
	d.lastUpdate = sched.Now()

	// A reverse search when already deep in the reverse end zone should
	// report end-of-tape instead of targeting a bogus block.
	d.position = 10
	d.newFunction(MotionStep{MotionAtSpeedRev, FuncSearch})

	if d.ctrl.statusB&statusBEndOfTape == 0 {
		t.Fatalf("expected END error, got statusB=%#o", d.ctrl.statusB)
	}
}
