/*
 * DECtape - Controller: command decoder, error handling, and reset
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

// Package tc02 implements the TC02/Type 550 DECtape controller: the
// command pulse decoder, the per-drive motion state machine, and the
// position integrator that together reproduce the original's timing
// and data behavior without needing a real wall clock.
package tc02

import (
	"fmt"
	"os"

	D "github.com/rcornwell/dectape/emu/device"
	"github.com/rcornwell/dectape/emu/event"
	"github.com/rcornwell/dectape/emu/tc02/tcformat"
	"github.com/rcornwell/dectape/emu/tc02/tcimage"
	"github.com/rcornwell/dectape/util/debug"
)

// fileSize returns path's size in bytes, used to autodetect which
// on-disk tape format a file already holds.
func fileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("tc02: stat %s: %w", path, err)
	}
	return info.Size(), nil
}

// Command pulses a TC02 answers, one per I/O instruction.
const (
	PulseSelect      = 3 // MSE: load the unit select field.
	PulseLoadCommand = 4 // MLC: load motion + function, launch or retarget.
	PulseReadData    = 5 // MRD: read the data buffer.
	PulseWriteData   = 6 // MWR: load the data buffer.
	PulseReadStatus  = 7 // MRS: read Status B.
)

// Controller is one TC02, addressing up to NumDrives drives.
type Controller struct {
	sched  *event.Scheduler
	drives [NumDrives]*Drive

	statusA uint32
	statusB uint32

	dataBuffer uint32
	substate   int

	lineTime  int
	accelTime int
	decelTime int

	debugMask int

	interruptPending bool
}

// NewController builds a controller with all drives unattached, wired
// to sched for scheduling and position integration.
func NewController(sched *event.Scheduler) *Controller {
	c := &Controller{
		sched:     sched,
		lineTime:  defaultLineTime,
		accelTime: defaultAccelTime,
		decelTime: defaultDecelTime,
	}
	for i := range c.drives {
		c.drives[i] = newDrive(i, c)
	}
	return c
}

var _ D.Device = (*Controller)(nil)

// StartIO, StartCmd, HaltIO, and InitDev are no-op stubs satisfying
// emu/device.Device.
func (c *Controller) StartIO() uint8         { return 0 }
func (c *Controller) StartCmd(_ uint8) uint8 { return 0 }
func (c *Controller) HaltIO() uint8          { return 0 }
func (c *Controller) InitDev() uint8         { return 0 }

// selectedIndex returns the drive index the unit select field currently
// names, or -1 if the field is illegal. The named drive need not be
// attached.
func (c *Controller) selectedIndex() int {
	field := int((c.statusA & statusAUnitMask) >> statusAUnitShift)
	idx, ok := unitIndex(field)
	if !ok {
		return -1
	}
	return idx
}

func (c *Controller) selectedDrive() *Drive {
	idx := c.selectedIndex()
	if idx < 0 {
		return nil
	}
	return c.drives[idx]
}

func (c *Controller) scheduleDrive(d *Drive, delay int) {
	c.sched.AddEvent(d, func(iarg int) { c.drives[iarg].service() }, delay, d.index)
}

func (c *Controller) cancelEvent(d *Drive) {
	c.sched.CancelEvent(d, d.index)
}

// updateInterrupt raises the pending-interrupt flag once any of the
// three request conditions (data ready, block end, error) is set. Like
// the original's DT_UPDINT macro, it only ever raises the flag — a host
// clears it explicitly after servicing, via ClearInterrupt.
func (c *Controller) updateInterrupt() {
	if c.statusB&(statusBDataFlag|statusBBlockEnd|statusBErrorFlag) != 0 {
		c.interruptPending = true
	}
}

// InterruptPending reports whether the controller is requesting
// attention. There is no skip-bus protocol modeled here: a host polls
// this and reads Status B to learn why.
func (c *Controller) InterruptPending() bool { return c.interruptPending }

// ClearInterrupt lowers the pending-interrupt flag. The original device
// has no such method of its own — its interrupt request lives on a
// host-wide bus that code outside pdp1_dt.c clears — but an embedder
// here needs a way to close the loop after servicing a request.
func (c *Controller) ClearInterrupt() { c.interruptPending = false }

// setError raises the error flag together with the specific cause
// bits, clears Status A's start/stop bit, and — if a drive was
// supplied and is accelerating or at speed — begins its deceleration.
func (c *Controller) setError(d *Drive, bits uint32) {
	c.statusA &^= statusAStartStop
	c.statusB |= statusBErrorFlag | bits

	if d != nil && d.current.Motion >= MotionAccelFwd {
		c.cancelEvent(d)
		if d.updatePosition() {
			c.updateInterrupt()
			return
		}
		c.scheduleDrive(d, c.decelTime)
		d.current = MotionStep{MotionDecelFwd | (d.current.Motion & dirReverse), 0}
		d.pendingLen = 0
	}
	c.updateInterrupt()
}

// deselect runs when the unit select field changes away from a drive
// that was moving: a drive in flight at the moment it loses selection
// keeps moving, but its eventual function becomes off-reel instead of
// whatever read/write/search it had queued, so it coasts clear of the
// head without disturbing tape data.
func (c *Controller) deselect(idx int) {
	d := c.drives[idx]
	mot := d.current.Motion
	switch {
	case mot >= MotionAtSpeedFwd:
		d.newFunction(MotionStep{mot, offReel})
	case mot >= MotionAccelFwd:
		d.pushNext(MotionStep{MotionAtSpeedFwd | (mot & dirReverse), offReel})
	}
}

// Select answers the MSE pulse: loads a new unit select field, running
// deselect against whichever drive was previously selected if the
// field actually changed.
func (c *Controller) Select(field int) {
	oldField := int((c.statusA & statusAUnitMask) >> statusAUnitShift)
	if oldField != field {
		if idx, ok := unitIndex(oldField); ok {
			c.deselect(idx)
		}
	}
	c.statusA = (c.statusA &^ uint32(statusAUnitMask)) | (uint32(field) << statusAUnitShift)
	c.statusB &^= statusBDataFlag | statusBBlockEnd | statusBErrorFlag | statusBAllErrors
	c.updateInterrupt()
}

// motionTransition answers the MLC pulse's effect on the selected
// drive's motion: the seven-case rule table deciding whether the drive
// needs to accelerate from stop, decelerate to stop, reverse (which
// always decelerates first), or simply retarget its queued function.
func (c *Controller) motionTransition(d *Drive, moving bool, dirBit int, fn int) {
	if !d.attached {
		c.setError(d, statusBSelectError)
		return
	}

	prevMot := d.current.Motion
	prevMoving := prevMot != MotionStop
	prevDir := prevMot & dirReverse
	newDir := dirBit & dirReverse

	switch {
	case !prevMoving && !moving:
		return

	case moving && !prevMoving:
		if d.updatePosition() {
			return
		}
		c.cancelEvent(d)
		c.scheduleDrive(d, c.accelTime)
		d.current = MotionStep{MotionAccelFwd | newDir, 0}
		d.pushNext(MotionStep{MotionAtSpeedFwd | newDir, fn})

	case prevMoving && !moving:
		if prevMot&^dirReverse != MotionDecelFwd {
			if d.updatePosition() {
				return
			}
			c.cancelEvent(d)
			c.scheduleDrive(d, c.decelTime)
		}
		d.current = MotionStep{MotionDecelFwd | prevDir, 0}
		d.pendingLen = 0

	case prevDir != newDir:
		if prevMot&^dirReverse != MotionDecelFwd {
			if d.updatePosition() {
				return
			}
			c.cancelEvent(d)
			c.scheduleDrive(d, c.decelTime)
		}
		d.current = MotionStep{MotionDecelFwd | prevDir, 0}
		d.pushNext(MotionStep{MotionAccelFwd | newDir, 0})
		d.pushNextNext(MotionStep{MotionAtSpeedFwd | newDir, fn})

	case prevMot < MotionAccelFwd:
		if d.updatePosition() {
			return
		}
		c.cancelEvent(d)
		c.scheduleDrive(d, c.accelTime)
		d.current = MotionStep{MotionAccelFwd | newDir, 0}
		d.pushNext(MotionStep{MotionAtSpeedFwd | newDir, fn})

	case prevMot < MotionAtSpeedFwd:
		d.pushNext(MotionStep{MotionAtSpeedFwd | newDir, fn})

	default:
		d.newFunction(MotionStep{MotionAtSpeedFwd | newDir, fn})
	}
}

// LoadCommand answers the MLC pulse: validates the requested unit and
// function, then drives the motion transition engine.
func (c *Controller) LoadCommand(value uint32) {
	c.statusA = (c.statusA &^ statusARW) | (value & statusARW)
	c.statusB &^= statusBDataFlag | statusBBlockEnd | statusBErrorFlag | statusBAllErrors

	fn := int(c.statusA & statusAFuncMask)
	idx := c.selectedIndex()

	var d *Drive
	if idx >= 0 {
		d = c.drives[idx]
	}

	rejected := d == nil || fn >= FuncWriteMark ||
		((fn == FuncWrite || fn == FuncWriteAll) && d.writeLocked)
	if rejected {
		c.setError(d, statusBSelectError)
		return
	}

	moving := c.statusA&statusAStartStop != 0
	dirBit := 0
	if c.statusA&statusAReverse != 0 {
		dirBit = 1
	}
	c.motionTransition(d, moving, dirBit, fn)
	c.updateInterrupt()
}

// ReadData answers the MRD pulse, clearing the data-ready and
// block-end flags once read.
func (c *Controller) ReadData() uint32 {
	value := c.dataBuffer
	c.statusB &^= statusBDataFlag | statusBBlockEnd
	c.updateInterrupt()
	return value
}

// WriteData answers the MWR pulse, loading the data buffer for the
// next write cycle and clearing the data-ready and block-end flags.
func (c *Controller) WriteData(value uint32) {
	c.dataBuffer = value & tcimage.WordMask
	c.statusB &^= statusBDataFlag | statusBBlockEnd
	c.updateInterrupt()
}

// ReadStatus answers the MRS pulse, refreshing the reverse and go bits
// from the selected drive before returning Status B.
func (c *Controller) ReadStatus() uint32 {
	c.statusB &^= statusBReverse | statusBGo
	if d := c.selectedDrive(); d != nil {
		if isReverse(d.current.Motion) {
			c.statusB |= statusBReverse
		}
		if d.current.Motion >= MotionAccelFwd || d.pendingLen > 0 {
			c.statusB |= statusBGo
		}
	}
	c.updateInterrupt()
	return c.statusB
}

// Pulse dispatches one command pulse by number, the Go equivalent of
// the original's single dt() entry point switching on PI/ADDR.
func (c *Controller) Pulse(pulse int, value uint32) (uint32, error) {
	switch pulse {
	case PulseSelect:
		c.Select(int(value) & 017)
		return 0, nil
	case PulseLoadCommand:
		c.LoadCommand(value)
		return 0, nil
	case PulseReadData:
		return c.ReadData(), nil
	case PulseWriteData:
		c.WriteData(value)
		return 0, nil
	case PulseReadStatus:
		return c.ReadStatus(), nil
	default:
		return 0, fmt.Errorf("tc02: unknown command pulse %d", pulse)
	}
}

// Reset answers a host reset. A cold reset (power-up, or the simulator
// not yet running) zeros every drive's motion state outright; a warm
// reset — the host was already running and is just reinitializing the
// controller — lets any accelerating or at-speed drive decelerate
// instead of snapping to a stop, the way a real transport would.
func (c *Controller) Reset(cold bool) {
	for _, d := range c.drives {
		if cold {
			c.cancelEvent(d)
			d.current = MotionStep{}
			d.pendingLen = 0
			d.lastUpdate = c.sched.Now()
			continue
		}
		if d.current.Motion&^dirReverse > MotionDecelFwd {
			if d.updatePosition() {
				continue
			}
			c.cancelEvent(d)
			c.scheduleDrive(d, c.decelTime)
			d.current = MotionStep{MotionDecelFwd | (d.current.Motion & dirReverse), 0}
			d.pendingLen = 0
		}
	}
	c.statusA = 0
	c.statusB = 0
	c.updateInterrupt()
}

// Attach loads path as drive idx's tape image, autodetecting the
// on-disk format unless forced is non-negative.
func (c *Controller) Attach(idx int, path string, forced tcformat.Format, forceFormat bool, readOnly bool) error {
	if idx < 0 || idx >= NumDrives {
		return fmt.Errorf("tc02: no such drive %d", idx)
	}
	d := c.drives[idx]

	format := forced
	if !forceFormat {
		info, err := fileSize(path)
		if err != nil {
			return err
		}
		format = tcformat.DetectFormat(info)
	}

	img, err := tcformat.Load(path, format)
	if err != nil {
		return err
	}
	img.ReadOnly = readOnly

	d.image = img
	d.format = format
	d.path = path
	d.attached = true
	d.writeLocked = readOnly
	d.current = MotionStep{}
	d.pendingLen = 0
	d.position = tcimage.EndZoneLines
	d.lastUpdate = c.sched.Now()

	debug.DebugDevf(uint16(idx), c.debugMask, debug.Block, "attached %s", path)
	return nil
}

// Detach flushes drive idx's image back to disk (unless it was attached
// read-only; a write lock set later with Set does not stop the flush)
// and disconnects it.
func (c *Controller) Detach(idx int) error {
	if idx < 0 || idx >= NumDrives {
		return fmt.Errorf("tc02: no such drive %d", idx)
	}
	d := c.drives[idx]
	if !d.attached {
		return nil
	}
	c.cancelEvent(d)

	var err error
	if !d.image.ReadOnly {
		err = tcformat.Save(d.path, d.image, d.format)
	}
	d.attached = false
	d.image = nil
	d.current = MotionStep{}
	d.pendingLen = 0
	return err
}
