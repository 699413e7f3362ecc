/*
 * DECtape - Controller and drive constants
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

// NumDrives is the number of drives one controller addresses.
const NumDrives = 8

// Function codes, loaded into Status A bits 0-2 by the MLC command pulse.
const (
	FuncMove      = 0
	FuncSearch    = 1
	FuncRead      = 2
	FuncWrite     = 3
	FuncReadAll   = 5
	FuncWriteAll  = 6
	FuncWriteMark = 7 // never executed: rejected at the command decoder.
)

// offReel is the pseudo-function a drive's motion stack carries while it
// coasts to an end zone after being deselected mid-motion. It shares
// FuncWriteMark's numeric value, but the two can never be confused: this
// value only ever appears inside a Drive's internal motion stack, never
// in Status A's function field, which the decoder already rejected.
const offReel = 7

// Motion values. Bit 0 of a motion value is the direction bit: a motion
// constant OR'd with dirReverse reverses it.
const (
	MotionStop       = 0
	MotionDecelFwd   = 2
	MotionDecelRev   = 3
	MotionAccelFwd   = 4
	MotionAccelRev   = 5
	MotionAtSpeedFwd = 6
	MotionAtSpeedRev = 7

	dirReverse = 1
)

func isReverse(motion int) bool { return motion&dirReverse != 0 }

// Status A register field layout (18 bits).
const (
	statusAUnitShift = 12
	statusAUnitMask  = 017 << statusAUnitShift

	statusAStartStop = 1 << 5 // motion field bit 1: go / stop
	statusAReverse   = 1 << 4 // motion field bit 0: set selects reverse, clear selects forward
	statusARW        = 077    // bits loaded by MLC: motion + function fields
	statusAFuncMask  = 07
)

// Status B register bit layout (18 bits).
const (
	statusBDataFlag    = 1 << 17 // DTF
	statusBBlockEnd    = 1 << 16 // BEF
	statusBErrorFlag   = 1 << 15 // ERF
	statusBEndOfTape   = 1 << 14 // END
	statusBTimingError = 1 << 13 // TIM
	statusBReverse     = 1 << 12 // REV
	statusBGo          = 1 << 11 // GO
	statusBMarkError   = 1 << 10 // MRK
	statusBSelectError = 1 << 9  // SEL

	statusBAllErrors = statusBEndOfTape | statusBTimingError | statusBMarkError | statusBSelectError
)

// unitMap is the Type 550 unit select table: field value 0 is illegal,
// 1-7 map straight through, 8 maps to internal drive 0, 9-15 are illegal.
var unitMap = [16]int{
	-1, 1, 2, 3, 4, 5, 6, 7,
	0, -1, -1, -1, -1, -1, -1, -1,
}

// unitIndex maps a 4-bit unit select field to an internal drive index.
func unitIndex(selectField int) (int, bool) {
	if selectField < 0 || selectField >= len(unitMap) {
		return 0, false
	}
	idx := unitMap[selectField]
	if idx < 0 {
		return 0, false
	}
	return idx, true
}

// Timing constants, in simulated ticks (default interline time 12, from
// pdp1_dt.c's dt_ltime/dt_actime/dt_dctime).
const (
	defaultLineTime  = 12
	defaultAccelTime = 54000
	defaultDecelTime = 72000
)

// Operation substates, carried over from dt_substate though the original
// never reads it back within the device itself; kept for data-model fidelity.
const (
	substateNone = 0
	substateWordCountOverflow = 1
	substateStartOfBlock      = 2
)
