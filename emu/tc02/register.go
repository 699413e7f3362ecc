/*
 * DECtape - Configuration and command-surface wiring
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
	"errors"

	"github.com/rcornwell/dectape/command/command"
	config "github.com/rcornwell/dectape/config/configparser"
	"github.com/rcornwell/dectape/emu/event"
	"github.com/rcornwell/dectape/emu/tc02/tcformat"
)

// DefaultController is the controller instance config-file "TC02" lines
// and the console front-end attach to. One TC02 addresses all 8 drives
// on a single bus, so unlike the teacher's per-device channel table this
// package keeps exactly one shared instance rather than one per config
// line.
var DefaultController *Controller

// ControllerFor returns DefaultController, building it (and its
// scheduler) on first use. The console front-end uses this directly for
// raw command-pulse testing; createUnit uses it to resolve config-file
// attach lines to the same instance.
func ControllerFor() *Controller {
	if DefaultController == nil {
		DefaultController = NewController(event.NewScheduler())
	}
	return DefaultController
}

func init() {
	config.RegisterModel("TC02", config.TypeModel, createUnit)
	config.RegisterModel("DECTAPE", config.TypeModel, createUnit)
}

// createUnit handles a "TC02 <unit> [options]" config-file line: devNum
// selects which of the 8 drives the remaining attach options apply to.
func createUnit(devNum uint16, _ string, options []config.Option) error {
	if devNum >= NumDrives {
		return errors.New("tc02: unit out of range 0-7")
	}
	unit := &DriveUnit{ctrl: ControllerFor(), index: int(devNum)}
	opts := make([]*command.CmdOption, 0, len(options))
	for _, o := range options {
		opts = append(opts, &command.CmdOption{Name: o.Name, EqualOpt: o.EqualOpt})
	}
	return unit.Attach(opts)
}

// DriveUnit adapts one of a Controller's drives to the command.Command
// interface the console front-end and config loader share, mirroring
// modelTape.Model2400ctx's role for the teacher's tape drives.
type DriveUnit struct {
	ctrl  *Controller
	index int
}

var _ command.Command = (*DriveUnit)(nil)

// Unit returns the DriveUnit for drive idx on the default controller,
// for the console front-end's attach/set/show commands.
func Unit(idx int) (*DriveUnit, error) {
	if idx < 0 || idx >= NumDrives {
		return nil, errors.New("tc02: no such drive")
	}
	return &DriveUnit{ctrl: ControllerFor(), index: idx}, nil
}

// Options reports the attach/set/show surface spec.md §6 describes:
// file, format (R=12b/S=16b/T=18b forced, autosize by default), and the
// write-ring toggle.
func (u *DriveUnit) Options(_ string) []command.Options {
	return []command.Options{
		{
			Name:        "file",
			OptionType:  command.OptionFile,
			OptionValid: command.ValidAttach | command.ValidShow,
		},
		{
			Name:        "fmt",
			OptionType:  command.OptionList,
			OptionValid: command.ValidAttach | command.ValidShow,
			OptionList:  tcformat.FormatNames(),
		},
		{
			Name:        "format",
			OptionType:  command.OptionList,
			OptionValid: command.ValidAttach | command.ValidShow,
			OptionList:  tcformat.FormatNames(),
		},
		{
			Name:        "ro",
			OptionType:  command.OptionSwitch,
			OptionValid: command.ValidAttach,
		},
		{
			Name:        "rw",
			OptionType:  command.OptionSwitch,
			OptionValid: command.ValidAttach,
		},
		{
			Name:        "ring",
			OptionType:  command.OptionSwitch,
			OptionValid: command.ValidAttach | command.ValidShow,
		},
		{
			Name:        "noring",
			OptionType:  command.OptionSwitch,
			OptionValid: command.ValidAttach | command.ValidShow,
		},
	}
}

// Attach loads a tape image onto this drive.
func (u *DriveUnit) Attach(opts []*command.CmdOption) error {
	var path string
	format := tcformat.Format18
	forceFormat := false
	readOnly := false

	for _, opt := range opts {
		switch opt.Name {
		case "file":
			if opt.EqualOpt == "" {
				return errors.New("file requires a file name")
			}
			path = opt.EqualOpt

		case "fmt", "format":
			f, forced, ok := tcformat.ParseFormat(opt.EqualOpt)
			if !ok {
				return errors.New("invalid format option: " + opt.EqualOpt)
			}
			format = f
			forceFormat = forced

		case "ro", "noring":
			readOnly = true

		case "rw", "ring":
			readOnly = false

		default:
			return errors.New("invalid option: " + opt.Name)
		}
	}

	if path == "" {
		return errors.New("attach requires file=<name>")
	}
	return u.ctrl.Attach(u.index, path, format, forceFormat, readOnly)
}

// Detach unloads this drive's tape image, writing it back unless it was
// attached read-only.
func (u *DriveUnit) Detach() error {
	return u.ctrl.Detach(u.index)
}

// Set changes the write-ring state of an already-attached drive. There
// is no live format change: the teacher's tape Set supports one because
// magtape format is a streaming convention, but a DECtape format is
// fixed to the geometry baked in at attach time.
func (u *DriveUnit) Set(_ bool, opts []*command.CmdOption) error {
	d := u.ctrl.drives[u.index]
	if !d.attached {
		return errors.New("drive not attached")
	}
	for _, opt := range opts {
		switch opt.Name {
		case "ro", "noring":
			d.writeLocked = true
		case "rw", "ring":
			d.writeLocked = false
		default:
			return errors.New("invalid option: " + opt.Name)
		}
	}
	return nil
}

// Show reports this drive's attach state.
func (u *DriveUnit) Show(_ []*command.CmdOption) (string, error) {
	d := u.ctrl.drives[u.index]
	if !d.attached {
		return "not attached", nil
	}
	ring := "write-locked"
	if !d.writeLocked {
		ring = "write-enabled"
	}
	return d.path + " (" + ring + ")", nil
}
