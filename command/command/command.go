/*
 * DECtape - Command interface
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

// Package command defines the attach/detach/set/show surface a TC02 drive
// exposes to both the config-file loader and dtctl's console, so the same
// DriveUnit implementation backs "TC02 1 file=..." config lines and typed
// "attach 1 file=..." console commands.
package command

// CmdOption is one bareword or name=value token trailing an attach/set
// line, e.g. "file=image.tap", "fmt=R", or "ro".
type CmdOption struct {
	Name     string // Name of option.
	EqualOpt string // Value of string after =.
	Value    int    // Numeric value.
}

// Option kinds a DriveUnit.Options entry can report: ro/rw/ring/noring are
// OptionSwitch, file is OptionFile, fmt/format is OptionList over the
// R/S/T format letters.
const (
	OptionSwitch = 1 + iota
	OptionFile
	OptionList
)

const (
	ValidAttach = 1 << iota
	ValidSet
	ValidShow
)

// Options describes one attach/set/show option a Command accepts, for a
// console front-end to advertise (e.g. with tab completion).
type Options struct {
	Name        string   // Name of option.
	OptionType  int      // Type of argument.
	OptionValid int      // Option valid for command type.
	OptionList  []string // List of valid options for this options.
}

// Command is the attach/detach/set/show surface one TC02 drive exposes.
type Command interface {
	Options(opt string) []Options              // Return list of supported options.
	Attach(options []*CmdOption) error         // Attach a tape image to the drive.
	Detach() error                             // Detach the drive's tape image.
	Set(set bool, options []*CmdOption) error  // Change write-ring state.
	Show(options []*CmdOption) (string, error) // Report attach state.
}
