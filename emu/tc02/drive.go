/*
 * DECtape - Per-drive motion, position, and function state
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
	"github.com/rcornwell/dectape/emu/tc02/tcformat"
	"github.com/rcornwell/dectape/emu/tc02/tcimage"
	"github.com/rcornwell/dectape/util/debug"
)

// MotionStep pairs a motion value with the function that will run once
// that motion is reached. A Drive keeps its current step plus up to two
// queued steps, the stacked current/next/next-next transition the
// controller's command decoder can leave pending.
type MotionStep struct {
	Motion   int
	Function int
}

// Drive is one TC02/Type 550 transport: its motion state machine,
// position, and attached tape image.
type Drive struct {
	index int
	ctrl  *Controller

	attached    bool
	writeLocked bool
	path        string
	format      tcformat.Format
	image       *tcimage.Image

	current    MotionStep
	pending    [2]MotionStep
	pendingLen int

	position   int
	lastUpdate int
}

func newDrive(index int, ctrl *Controller) *Drive {
	return &Drive{index: index, ctrl: ctrl}
}

// Device methods: a Drive registers itself as the event scheduler's
// device handle. The controller, not the drive, answers command pulses,
// so these are unused stubs satisfying emu/event's Device constraint.
func (d *Drive) StartIO() uint8         { return 0 }
func (d *Drive) StartCmd(_ uint8) uint8 { return 0 }
func (d *Drive) HaltIO() uint8          { return 0 }
func (d *Drive) InitDev() uint8         { return 0 }

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// geometry returns the attached image's geometry, or the standard
// geometry as a sane default for an unattached drive.
func (d *Drive) geometry() tcimage.Geometry {
	if d.image != nil {
		return d.image.Geometry
	}
	return tcimage.StandardGeometry
}

// pushNext replaces the queued "next" transition.
func (d *Drive) pushNext(step MotionStep) {
	d.pending[0] = step
	if d.pendingLen < 1 {
		d.pendingLen = 1
	}
}

// pushNextNext replaces the queued "next next" transition.
func (d *Drive) pushNextNext(step MotionStep) {
	d.pending[1] = step
	d.pendingLen = 2
}

// advance promotes the queued "next" transition (if any) to current,
// and "next next" (if any) to "next" — the same effect the teacher's
// original bit-packed STATE got for free by shifting right, reproduced
// here over the explicit 3-deep stack the design calls for.
func (d *Drive) advance() MotionStep {
	if d.pendingLen == 0 {
		d.current = MotionStep{}
		return d.current
	}
	d.current = d.pending[0]
	if d.pendingLen == 2 {
		d.pending[0] = d.pending[1]
		d.pendingLen = 1
	} else {
		d.pendingLen = 0
	}
	return d.current
}

// updatePosition lazily integrates position over the elapsed simulated
// time since the last update, using the motion equations for the
// current motion phase. Returns true if the drive ran physically off
// the reel and detached itself.
func (d *Drive) updatePosition() bool {
	now := d.ctrl.sched.Now()
	elapsed := now - d.lastUpdate
	if elapsed == 0 {
		return false
	}
	d.lastUpdate = now

	lineTime := d.ctrl.lineTime
	var delta int
	switch d.current.Motion &^ dirReverse {
	case MotionStop:
		delta = 0
	case MotionDecelFwd:
		ulin := elapsed / lineTime
		udelt := d.ctrl.decelTime / lineTime
		delta = (ulin*udelt*2 - ulin*ulin) / (2 * udelt)
	case MotionAccelFwd:
		ulin := elapsed / lineTime
		udelt := d.ctrl.accelTime / lineTime
		delta = (ulin * ulin) / (2 * udelt)
	case MotionAtSpeedFwd:
		delta = elapsed / lineTime
	}

	if isReverse(d.current.Motion) {
		d.position -= delta
	} else {
		d.position += delta
	}

	geo := d.geometry()
	if d.position < 0 || d.position > geo.ForwardEndZoneLine()+tcimage.EndZoneLines {
		selected := d.ctrl.selectedDrive() == d
		d.runOffReel()
		if selected {
			d.ctrl.setError(nil, statusBSelectError)
		}
		return true
	}
	return false
}

// runOffReel detaches the drive the way physically running past either
// end of the reel does: unconditionally, with no chance to flush.
func (d *Drive) runOffReel() {
	d.attached = false
	d.image = nil
	d.current = MotionStep{}
	d.pendingLen = 0
	d.position = 0
}

// newFunction launches fn once a drive reaches at-speed, updating
// position, validating the end zone, and scheduling the next service
// callback at the line time the function needs to reach its target.
func (d *Drive) newFunction(step MotionStep) {
	oldPos := d.position
	if d.updatePosition() {
		return
	}
	d.current = step
	d.pendingLen = 0

	dir := isReverse(step.Motion)
	if oldPos == d.position {
		if dir {
			d.position--
		} else {
			d.position++
		}
	}
	geo := d.geometry()
	blk := geo.LineToBlock(d.position)

	wrongZone := geo.InReverseEndZone(d.position)
	if !dir {
		wrongZone = geo.InForwardEndZone(d.position)
	}
	if wrongZone {
		d.ctrl.setError(d, statusBEndOfTape)
		return
	}

	d.ctrl.cancelEvent(d)
	d.ctrl.substate = substateStartOfBlock

	var newPos int
	switch step.Function {
	case offReel:
		if dir {
			newPos = -1000
		} else {
			newPos = geo.ForwardEndZoneLine() + tcimage.EndZoneLines + 1000
		}

	case FuncMove:
		d.scheduleEndZone(dir)
		debug.DebugDevf(uint16(d.index), d.ctrl.debugMask, debug.Move, "moving %s", directionName(dir))
		return

	case FuncSearch:
		if dir {
			target := blk
			if geo.InForwardEndZone(d.position) {
				target = geo.Blocks
			}
			newPos = geo.BlockToLine(target) - tcimage.BlockNumberLine - tcimage.WordSizeLines
		} else {
			target := blk + 1
			if geo.InReverseEndZone(d.position) {
				target = 0
			}
			newPos = geo.BlockToLine(target) + tcimage.BlockNumberLine + (tcimage.WordSizeLines - 1)
		}
		debug.DebugDevf(uint16(d.index), d.ctrl.debugMask, debug.Move, "searching %s", directionName(dir))

	case FuncRead, FuncWrite, FuncReadAll, FuncWriteAll:
		if geo.InEndZone(d.position) {
			if dir {
				newPos = geo.ForwardEndZoneLine() - tcimage.WordSizeLines
			} else {
				newPos = tcimage.EndZoneLines + (tcimage.WordSizeLines - 1)
			}
		} else {
			newPos = (d.position / tcimage.WordSizeLines) * tcimage.WordSizeLines
			if !dir {
				newPos += tcimage.WordSizeLines - 1
			}
		}

	default:
		d.ctrl.setError(d, statusBSelectError)
		return
	}

	if step.Function == FuncWrite || step.Function == FuncWriteAll {
		d.ctrl.statusB |= statusBDataFlag
		d.ctrl.updateInterrupt()
	}

	d.ctrl.scheduleDrive(d, abs(newPos-d.position)*d.ctrl.lineTime)
}

// scheduleEndZone arms the next service callback for when a MOVE in
// progress reaches the matching end zone.
func (d *Drive) scheduleEndZone(dir bool) {
	geo := d.geometry()
	var newPos int
	if dir {
		newPos = tcimage.EndZoneLines - tcimage.WordSizeLines
	} else {
		newPos = geo.ForwardEndZoneLine() + tcimage.WordSizeLines
	}
	d.ctrl.scheduleDrive(d, abs(newPos-d.position)*d.ctrl.lineTime)
}

func directionName(reverse bool) string {
	if reverse {
		return "backward"
	}
	return "forward"
}

// service runs when a drive's scheduled event fires: it advances the
// deceleration/acceleration phase, or, once at speed, performs one
// line's worth of the active function (search/read/write/off-reel).
func (d *Drive) service() {
	switch d.current.Motion {
	case MotionDecelFwd, MotionDecelRev:
		if d.updatePosition() {
			return
		}
		next := d.advance()
		if next.Motion != MotionStop {
			d.ctrl.scheduleDrive(d, d.ctrl.accelTime) // must be reversing
		}
		return

	case MotionAccelFwd, MotionAccelRev:
		// Peek the queued state rather than promoting it yet: newFunction
		// integrates position against the still-current (accelerating)
		// motion before swapping state, same order dt_newfnc relies on.
		next := d.pending[0]
		if d.pendingLen == 2 {
			d.pending[0] = d.pending[1]
			d.pendingLen = 1
		} else {
			d.pendingLen = 0
		}
		d.newFunction(next)
		return

	case MotionAtSpeedFwd, MotionAtSpeedRev:
		// functional processing below

	default:
		d.ctrl.setError(d, statusBSelectError)
		return
	}

	if d.updatePosition() {
		return
	}
	geo := d.geometry()
	if geo.InEndZone(d.position) {
		d.ctrl.setError(d, statusBEndOfTape)
		return
	}
	dir := isReverse(d.current.Motion)
	blk := geo.LineToBlock(d.position)

	switch d.current.Function {
	case FuncMove:
		d.ctrl.setError(d, statusBEndOfTape)
		return

	case offReel:
		d.runOffReel()

	case FuncSearch:
		if d.ctrl.statusB&statusBDataFlag != 0 {
			d.ctrl.setError(d, statusBTimingError)
			return
		}
		d.ctrl.scheduleDrive(d, geo.LinesPerBlock()*d.ctrl.lineTime)
		d.ctrl.dataBuffer = uint32(blk)
		d.ctrl.statusB |= statusBDataFlag

	case FuncRead, FuncReadAll:
		if d.ctrl.statusB&statusBDataFlag != 0 {
			d.ctrl.setError(d, statusBTimingError)
			return
		}
		d.ctrl.scheduleDrive(d, tcimage.WordSizeLines*d.ctrl.lineTime)
		d.serviceRead(geo, blk, dir)

	case FuncWrite, FuncWriteAll:
		if d.ctrl.statusB&statusBDataFlag != 0 {
			d.ctrl.setError(d, statusBTimingError)
			return
		}
		d.ctrl.scheduleDrive(d, tcimage.WordSizeLines*d.ctrl.lineTime)
		d.serviceWrite(geo, blk, dir)

	default:
		d.ctrl.setError(d, statusBSelectError)
	}
	d.ctrl.updateInterrupt()
}

func (d *Drive) serviceRead(geo tcimage.Geometry, blk int, dir bool) {
	relpos := geo.LineToOffset(d.position)
	inData := relpos >= tcimage.HeaderTrailerLines && relpos < geo.LinesPerBlock()-tcimage.HeaderTrailerLines
	if inData {
		wrd := geo.LineToWord(d.position)
		d.ctrl.dataBuffer = d.image.ReadWord(blk, wrd)
		d.ctrl.statusB |= statusBDataFlag
	} else {
		fwdChecksumWord := 2*tcimage.HeaderTrailerWords() + geo.BlockWords - tcimage.ChecksumWord - 1
		wrd := relpos / tcimage.WordSizeLines
		if wrd == 0 || wrd == 2*tcimage.HeaderTrailerWords()+geo.BlockWords-1 {
			return
		}
		if d.current.Function == FuncRead && wrd != tcimage.ChecksumWord && wrd != fwdChecksumWord {
			return
		}
		d.ctrl.dataBuffer = d.image.HeaderWord(blk, relpos)
		end := tcimage.ChecksumWord
		if !dir {
			end = fwdChecksumWord
		}
		if wrd == end {
			d.ctrl.statusB |= statusBBlockEnd
		} else {
			d.ctrl.statusB |= statusBDataFlag
		}
	}
	if dir {
		d.ctrl.dataBuffer = tcimage.ComplementObverse(d.ctrl.dataBuffer)
	}
}

func (d *Drive) serviceWrite(geo tcimage.Geometry, blk int, dir bool) {
	relpos := geo.LineToOffset(d.position)
	inData := relpos >= tcimage.HeaderTrailerLines && relpos < geo.LinesPerBlock()-tcimage.HeaderTrailerLines
	if inData {
		wrd := geo.LineToWord(d.position)
		value := d.ctrl.dataBuffer
		if dir {
			value = tcimage.ComplementObverse(value)
		}
		d.image.WriteWord(blk, wrd, value)
		end := 0
		if !dir {
			end = geo.BlockWords - 1
		}
		if wrd == end {
			d.ctrl.statusB |= statusBBlockEnd
		} else {
			d.ctrl.statusB |= statusBDataFlag
		}
		return
	}
	wrd := relpos / tcimage.WordSizeLines
	if wrd == 0 || wrd == 2*tcimage.HeaderTrailerWords()+geo.BlockWords-1 {
		return
	}
	fwdChecksumWord := 2*tcimage.HeaderTrailerWords() + geo.BlockWords - tcimage.ChecksumWord - 1
	if d.current.Function == FuncWrite && wrd != fwdChecksumWord {
		return
	}
	d.ctrl.statusB |= statusBDataFlag
}
