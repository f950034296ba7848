// Copyright 2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/beevik/go65link/host"
	"github.com/beevik/term"
)

var (
	output      string
	script      string
	verbose     bool
	parallel    bool
	interactive bool
	symbolMap   bool
)

// Flags that override a host setting when given on the command line.
var flagSettings = map[string]string{
	"v": "verbose",
	"j": "parallel",
	"m": "symbolmap",
}

func init() {
	defineFlags(flag.CommandLine)
	flag.CommandLine.Usage = func() {
		fmt.Println("Usage: go65link [options] [source ...]\nOptions:")
		flag.PrintDefaults()
	}
}

func defineFlags(fs *flag.FlagSet) {
	fs.StringVar(&output, "o", "out.bin", "output image `file`")
	fs.StringVar(&script, "T", "", "link script `file`")
	fs.BoolVar(&verbose, "v", false, "verbose assembler and linker output")
	fs.BoolVar(&parallel, "j", false, "generate sections concurrently")
	fs.BoolVar(&interactive, "i", false, "start the command shell after linking")
	fs.BoolVar(&symbolMap, "m", true, "write a .sym symbol map next to the image")
}

// applyFlags copies the setting flags that were explicitly passed into the
// host's settings.
func applyFlags(fs *flag.FlagSet, h *host.Host) error {
	var err error
	fs.Visit(func(f *flag.Flag) {
		name, ok := flagSettings[f.Name]
		if !ok || err != nil {
			return
		}
		if e := h.Set(name, f.Value.(flag.Getter).Get()); e != nil {
			err = fmt.Errorf("-%s: %w", f.Name, e)
		}
	})
	return err
}

func main() {
	flag.Parse()

	h := host.New()
	if err := applyFlags(flag.CommandLine, h); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	// Assemble, link and write any sources named on the command line.
	files := flag.Args()
	if len(files) > 0 {
		if script != "" && h.LoadScript(script) != nil {
			os.Exit(1)
		}
		for _, filename := range files {
			if h.Assemble(filename) != nil {
				os.Exit(1)
			}
		}
		if h.Link() != nil {
			os.Exit(1)
		}
		if h.WriteImage(output) != nil {
			os.Exit(1)
		}
		if !interactive {
			return
		}
	} else if script != "" && h.LoadScript(script) != nil {
		os.Exit(1)
	}

	// Commands piped to standard input run without a prompt.
	h.RunCommands(os.Stdin, os.Stdout, term.IsTerminal(int(os.Stdin.Fd())))
}
