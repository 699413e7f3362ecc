/*
 * DECtape - Controller behavior test cases.
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
	"path/filepath"
	"testing"

	"github.com/rcornwell/dectape/emu/event"
	"github.com/rcornwell/dectape/emu/tc02/tcformat"
	"github.com/rcornwell/dectape/emu/tc02/tcimage"
)

// runUntilIdle advances the scheduler in line-time-sized steps until the
// controller raises an interrupt or a budget of steps is exhausted,
// mirroring how a host would poll between command pulses.
func runUntilIdle(t *testing.T, sched *event.Scheduler, c *Controller, budget int) {
	t.Helper()
	for range budget {
		if c.InterruptPending() {
			return
		}
		sched.Advance(1)
	}
	t.Fatalf("controller never raised an interrupt within %d ticks", budget)
}

func newTestController(t *testing.T) (*Controller, *event.Scheduler) {
	t.Helper()
	sched := event.NewScheduler()
	c := NewController(sched)
	return c, sched
}

func attachScratch(t *testing.T, c *Controller, idx int) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "unit.tap")
	if err := c.Attach(idx, path, tcformat.Format18, true, false); err != nil {
		t.Fatalf("Attach: %v", err)
	}
}

func TestSelectInvalidFieldRejectsCommand(t *testing.T) {
	c, _ := newTestController(t)
	c.Select(0) // field 0 is illegal: no drive selected.
	c.LoadCommand(statusAStartStop | FuncMove)

	if c.statusB&statusBSelectError == 0 {
		t.Fatalf("expected SEL error, got statusB=%#o", c.statusB)
	}
	if c.statusB&statusBErrorFlag == 0 {
		t.Fatalf("ERF invariant violated: SEL set without ERF, statusB=%#o", c.statusB)
	}
}

func TestWriteToLockedDriveIsRejected(t *testing.T) {
	c, _ := newTestController(t)
	path := filepath.Join(t.TempDir(), "unit.tap")
	if err := c.Attach(1, path, tcformat.Format18, true, true); err != nil {
		t.Fatalf("Attach: %v", err)
	}
	c.Select(1)
	c.LoadCommand(statusAStartStop | FuncWrite)

	if c.statusB&statusBSelectError == 0 {
		t.Fatalf("expected SEL error writing a locked drive, got statusB=%#o", c.statusB)
	}
}

func TestMoveForwardThenStopDecelerates(t *testing.T) {
	c, sched := newTestController(t)
	attachScratch(t, c, 2)
	c.Select(2)
	c.LoadCommand(statusAStartStop | FuncMove)

	d := c.drives[2]
	if d.current.Motion != MotionAccelFwd {
		t.Fatalf("expected drive to start accelerating, got motion %d", d.current.Motion)
	}

	sched.Advance(c.accelTime)
	if d.current.Motion != MotionAtSpeedFwd {
		t.Fatalf("expected drive at speed after accelTime, got motion %d", d.current.Motion)
	}

	c.LoadCommand(FuncMove) // start/stop bit clear: request stop.
	if d.current.Motion != MotionDecelFwd {
		t.Fatalf("expected drive decelerating after stop request, got motion %d", d.current.Motion)
	}

	sched.Advance(c.decelTime)
	if d.current.Motion != MotionStop {
		t.Fatalf("expected drive stopped after decelTime, got motion %d", d.current.Motion)
	}
}

// TestAttachThenSearchLandsOnFirstBlock drives a freshly attached unit
// through MSE and MLC(start, fwd, SEARCH) without touching d.position by
// hand, so it actually exercises where Attach leaves the drive: the
// first real block boundary, past the reverse end zone.
func TestAttachThenSearchLandsOnFirstBlock(t *testing.T) {
	c, sched := newTestController(t)
	attachScratch(t, c, 1)
	c.Select(1)
	c.LoadCommand(statusAStartStop | FuncSearch)

	d := c.drives[1]
	if d.position != tcimage.EndZoneLines {
		t.Fatalf("expected Attach to leave position at the first block boundary, got %d", d.position)
	}

	k := 3
	ticks := c.accelTime + k*d.geometry().LinesPerBlock()*c.lineTime
	runUntilIdle(t, sched, c, ticks+1000)

	if c.statusB&statusBDataFlag == 0 {
		t.Fatalf("expected data flag after search settled, statusB=%#o", c.statusB)
	}
	if got := c.ReadData(); got != uint32(k) {
		t.Fatalf("forward search from the first block should report block %d, got %d", k, got)
	}
}

// selectDirectly loads the unit select field without running the usual
// MSE deselect side effect, letting a test arm a drive's motion state
// directly instead of through the accelerate/decelerate ramp.
func selectDirectly(c *Controller, idx int) {
	c.statusA = (c.statusA &^ uint32(statusAUnitMask)) | (uint32(idx) << statusAUnitShift)
}

func TestSearchThenReadRoundTrips(t *testing.T) {
	c, sched := newTestController(t)
	attachScratch(t, c, 3)
	d := c.drives[3]
	for i := range 10 {
		d.image.WriteWord(0, i, uint32(100+i))
	}
	selectDirectly(c, 3)

	// Start at block 0's own first line, already at speed: a forward
	// search should land on block 1's header and report block number 1.
	d.position = d.geometry().BlockToLine(0)
	d.lastUpdate = sched.Now()
	d.newFunction(MotionStep{MotionAtSpeedFwd, FuncSearch})

	runUntilIdle(t, sched, c, d.geometry().LinesPerBlock()*c.lineTime+1000)
	if c.statusB&statusBDataFlag == 0 {
		t.Fatalf("expected data flag after search settled, statusB=%#o", c.statusB)
	}
	if got := c.ReadData(); got != 1 {
		t.Fatalf("forward search from block 0 should report block 1, got %d", got)
	}

	// Retarget directly at block 0's data start and read it through.
	d.position = d.geometry().BlockToLine(0) + tcimage.HeaderTrailerLines
	d.lastUpdate = sched.Now()
	d.current = MotionStep{MotionAtSpeedFwd, FuncRead}
	d.service()

	if c.statusB&statusBDataFlag == 0 {
		t.Fatalf("expected data flag after reading the first data word, statusB=%#o", c.statusB)
	}
	if got := c.ReadData(); got != 100 {
		t.Fatalf("got %d want 100", got)
	}
}

func TestWriteThenReadBack(t *testing.T) {
	c, sched := newTestController(t)
	attachScratch(t, c, 4)
	d := c.drives[4]
	selectDirectly(c, 4)

	d.position = d.geometry().BlockToLine(2) + tcimage.HeaderTrailerLines
	d.lastUpdate = sched.Now()
	d.current = MotionStep{MotionAtSpeedFwd, FuncWrite}
	c.dataBuffer = 0123456
	d.service()

	if c.statusB&statusBDataFlag == 0 {
		t.Fatalf("expected data flag after writing the first data word, statusB=%#o", c.statusB)
	}
	if got := d.image.ReadWord(2, 0); got != 0123456 {
		t.Fatalf("got %#o want %#o", got, 0123456)
	}
}

func TestDeselectMidMotionCoastsToOffReel(t *testing.T) {
	c, sched := newTestController(t)
	attachScratch(t, c, 5)
	d := c.drives[5]
	// Far enough out that the acceleration ramp (accelTime/lineTime/2
	// lines) still ends clear of the reverse end zone.
	d.position = tcimage.EndZoneLines + c.accelTime/c.lineTime

	c.Select(5)
	c.LoadCommand(statusAStartStop | statusAReverse | FuncMove) // reverse, toward the reel.
	sched.Advance(c.accelTime)

	c.Select(0) // deselect: field 0 is illegal, so this always deselects.

	// Off-reel coasts through the whole reverse end zone to past line 0:
	// about 39,000 lines from where the ramp ends.
	for range 50000 {
		if !d.attached {
			break
		}
		sched.Advance(c.lineTime)
	}
	if d.attached {
		t.Fatalf("drive never ran off the reel after being deselected mid-motion")
	}
}

func TestResetWarmDeceleratesColdZeroes(t *testing.T) {
	c, sched := newTestController(t)
	attachScratch(t, c, 6)
	d := c.drives[6]

	c.Select(6)
	c.LoadCommand(statusAStartStop | FuncMove)
	sched.Advance(c.accelTime)
	if d.current.Motion != MotionAtSpeedFwd {
		t.Fatalf("setup: expected at-speed before reset, got %d", d.current.Motion)
	}

	c.Reset(false)
	if d.current.Motion != MotionDecelFwd {
		t.Fatalf("warm reset should decelerate a moving drive, got motion %d", d.current.Motion)
	}

	c.Reset(true)
	if d.current.Motion != MotionStop {
		t.Fatalf("cold reset should zero motion outright, got %d", d.current.Motion)
	}
	if c.statusA != 0 || c.statusB != 0 {
		t.Fatalf("cold reset should zero both status registers, got A=%#o B=%#o", c.statusA, c.statusB)
	}
}

func TestInvalidFunctionCodeIsRejected(t *testing.T) {
	c, _ := newTestController(t)
	attachScratch(t, c, 7)
	c.Select(7)
	c.LoadCommand(statusAStartStop | FuncWriteMark)

	if c.statusB&statusBSelectError == 0 {
		t.Fatalf("write-mark should be rejected as a SEL error, got statusB=%#o", c.statusB)
	}
}
