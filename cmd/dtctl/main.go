/*
 * DECtape - Console front-end
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

// Command dtctl loads a TC02 config file and drops into an interactive
// console for attaching drives and injecting raw command pulses, mostly
// useful for exercising the controller by hand outside a host CPU.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	getopt "github.com/pborman/getopt/v2"
	"github.com/peterh/liner"

	"github.com/rcornwell/dectape/command/command"
	config "github.com/rcornwell/dectape/config/configparser"
	"github.com/rcornwell/dectape/emu/tc02"
	logger "github.com/rcornwell/dectape/util/logger"

	_ "github.com/rcornwell/dectape/util/debug"
)

func main() {
	optConfig := getopt.StringLong("config", 'c', "", "Configuration file")
	optLogFile := getopt.StringLong("log", 'l', "", "Log file")
	optDebug := getopt.BoolLong("debug", 'd', "Log debug to console")
	optHelp := getopt.BoolLong("help", 'h', "Help")
	getopt.Parse()

	if *optHelp {
		getopt.Usage()
		os.Exit(0)
	}

	var file *os.File
	if *optLogFile != "" {
		var err error
		file, err = os.Create(*optLogFile)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}
	programLevel := new(slog.LevelVar)
	programLevel.Set(slog.LevelDebug)
	handler := logger.NewHandler(file, &slog.HandlerOptions{Level: programLevel, AddSource: false}, optDebug)
	log := slog.New(handler)
	slog.SetDefault(log)

	log.Info("dtctl started")

	if *optConfig != "" {
		if err := config.LoadConfigFile(*optConfig); err != nil {
			log.Error(err.Error())
			os.Exit(1)
		}
	}

	consoleLoop(handler)
}

func consoleLoop(handler *logger.LogHandler) {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	for {
		text, err := line.Prompt("dtctl> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) {
				return
			}
			slog.Error("error reading line: " + err.Error())
			return
		}

		line.AppendHistory(text)
		quit, err := dispatch(text, handler)
		if err != nil {
			fmt.Println("Error: " + err.Error())
		}
		if quit {
			return
		}
	}
}

// dispatch runs one console command line. Supported commands:
//
//	attach <unit> file=<path> [fmt=R|S|T] [ro|rw]
//	detach <unit>
//	show <unit>
//	set <unit> ro|rw
//	select <field>
//	command <value>
//	read
//	write <value>
//	status
//	debug on|off
//	quit
func dispatch(text string, handler *logger.LogHandler) (bool, error) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return false, nil
	}
	verb := strings.ToLower(fields[0])
	args := fields[1:]

	switch verb {
	case "quit", "exit":
		return true, nil

	case "attach":
		unit, opts, err := parseUnitCommand(args)
		if err != nil {
			return false, err
		}
		return false, unit.Attach(opts)

	case "detach":
		unit, err := parseUnit(args)
		if err != nil {
			return false, err
		}
		return false, unit.Detach()

	case "show":
		unit, err := parseUnit(args)
		if err != nil {
			return false, err
		}
		msg, err := unit.Show(nil)
		if err != nil {
			return false, err
		}
		fmt.Println(msg)
		return false, nil

	case "set":
		unit, opts, err := parseUnitCommand(args)
		if err != nil {
			return false, err
		}
		return false, unit.Set(true, opts)

	case "select":
		field, err := parseArg(args, 0, "select requires a unit field")
		if err != nil {
			return false, err
		}
		tc02.ControllerFor().Select(field)
		return false, nil

	case "command":
		value, err := parseArg(args, 0, "command requires a value")
		if err != nil {
			return false, err
		}
		tc02.ControllerFor().LoadCommand(uint32(value))
		return false, nil

	case "read":
		fmt.Printf("%#o\n", tc02.ControllerFor().ReadData())
		return false, nil

	case "write":
		value, err := parseArg(args, 0, "write requires a value")
		if err != nil {
			return false, err
		}
		tc02.ControllerFor().WriteData(uint32(value))
		return false, nil

	case "status":
		fmt.Printf("%#o\n", tc02.ControllerFor().ReadStatus())
		return false, nil

	case "debug":
		if len(args) == 0 {
			return false, errors.New("debug requires on or off")
		}
		on := args[0] == "on"
		handler.SetDebug(&on)
		return false, nil

	default:
		return false, fmt.Errorf("unknown command: %s", verb)
	}
}

func parseArg(args []string, idx int, usage string) (int, error) {
	if idx >= len(args) {
		return 0, errors.New(usage)
	}
	v, err := strconv.ParseInt(args[idx], 0, 32)
	if err != nil {
		return 0, err
	}
	return int(v), nil
}

func parseUnit(args []string) (*tc02.DriveUnit, error) {
	if len(args) == 0 {
		return nil, errors.New("requires a unit number")
	}
	idx, err := strconv.Atoi(args[0])
	if err != nil {
		return nil, err
	}
	return tc02.Unit(idx)
}

func parseUnitCommand(args []string) (*tc02.DriveUnit, []*command.CmdOption, error) {
	unit, err := parseUnit(args)
	if err != nil {
		return nil, nil, err
	}

	opts := make([]*command.CmdOption, 0, len(args)-1)
	for _, tok := range args[1:] {
		name, value, _ := strings.Cut(tok, "=")
		opts = append(opts, &command.CmdOption{Name: name, EqualOpt: value})
	}
	return unit, opts, nil
}
