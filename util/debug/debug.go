/*
 * DECtape - Log debug data to a file
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

// Package debug implements mask-gated trace logging for the controller,
// carrying over the SIMH DECtape simulator's LOG_MS/LOG_RW/LOG_RA/LOG_BL
// categories as bits a user can enable independently from a config file.
package debug

import (
	"fmt"
	"os"
	"strconv"

	config "github.com/rcornwell/dectape/config/configparser"
)

// Debug mask bits, one per pdp1_dt.c LOG_* category.
const (
	Move  = 1 << iota // LOG_MS: move/search commands and motion transitions.
	Data              // LOG_RW: read/write data transfers.
	All               // LOG_RA: read-all/write-all transfers.
	Block             // LOG_BL: block number and position tracking.
)

var logFile *os.File

// Generic debug message.
func Debugf(module string, mask int, level int, format string, a ...interface{}) {
	if (mask & level) != 0 {
		fmt.Fprintf(out(), module+": "+format+"\n", a...)
	}
}

// Device debug message, tagged with the selected drive unit number.
func DebugDevf(devNum uint16, mask int, level int, format string, a ...interface{}) {
	if (mask & level) != 0 {
		unit := strconv.FormatUint(uint64(devNum), 10)
		fmt.Fprintf(out(), "unit "+unit+": "+format+"\n", a...)
	}
}

func out() *os.File {
	if logFile != nil {
		return logFile
	}
	return os.Stderr
}

// register a debug log file sink on initialize.
func init() {
	config.RegisterModel("DEBUGFILE", config.TypeOption, create)
}

// create opens the debug log file named by a "DEBUGFILE <path>" config line.
func create(_ uint16, fileName string, _ []config.Option) error {
	if logFile != nil {
		return fmt.Errorf("can't have more than one debug file, previous: %s", logFile.Name())
	}

	file, err := os.Create(fileName)
	if err != nil {
		return fmt.Errorf("unable to create debug file %s: %w", fileName, err)
	}

	logFile = file
	return nil
}
