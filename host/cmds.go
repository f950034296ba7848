// Copyright 2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package host

import "github.com/beevik/cmd"

var (
	cmds        *cmd.Tree
	descriptors = make(map[string]cmd.CommandDescriptor)
	commandList []string
)

func addCommand(t *cmd.Tree, d cmd.CommandDescriptor) {
	t.AddCommand(d)
	descriptors[d.Name] = d
	commandList = append(commandList, d.Name)
}

func init() {
	root := cmd.NewTree(cmd.TreeDescriptor{Name: "go65link"})
	addCommand(root, cmd.CommandDescriptor{
		Name:        "help",
		Brief:       "Display help for a command",
		Description: "Display help for a command.",
		Usage:       "help [<command>]",
		Data:        (*Host).cmdHelp,
	})
	addCommand(root, cmd.CommandDescriptor{
		Name:  "assemble",
		Brief: "Assemble source files",
		Description: "Parse one or more assembly source files and add their" +
			" statements to the program. Sections named in several files" +
			" accumulate in the order the files are assembled. Any previously" +
			" linked image is discarded.",
		Usage: "assemble <filename> [<filename> ...]",
		Data:  (*Host).cmdAssemble,
	})
	addCommand(root, cmd.CommandDescriptor{
		Name:  "script",
		Brief: "Load a link script",
		Description: "Load a link script that lists the order of the program's" +
			" sections and, optionally, their load addresses. Without a" +
			" script, the text section is placed at $E000 and followed by" +
			" the data section.",
		Usage: "script <filename>",
		Data:  (*Host).cmdScript,
	})
	addCommand(root, cmd.CommandDescriptor{
		Name:  "link",
		Brief: "Link the assembled program",
		Description: "Generate code for every section of the assembled" +
			" program, lay the sections out according to the link script and" +
			" resolve all symbol references. The image is loaded into memory" +
			" so it can be inspected.",
		Usage: "link",
		Data:  (*Host).cmdLink,
	})
	addCommand(root, cmd.CommandDescriptor{
		Name:  "symbols",
		Brief: "List linked symbols",
		Description: "Display the address of every symbol in the linked" +
			" image. If a prefix is given, only symbols starting with it are" +
			" listed.",
		Usage: "symbols [<prefix>]",
		Data:  (*Host).cmdSymbols,
	})
	addCommand(root, cmd.CommandDescriptor{
		Name:        "sections",
		Brief:       "List placed sections",
		Description: "Display the load address and size of every placed section.",
		Usage:       "sections",
		Data:        (*Host).cmdSections,
	})
	addCommand(root, cmd.CommandDescriptor{
		Name:  "disassemble",
		Brief: "Disassemble the linked image",
		Description: "Disassemble machine code starting at the requested" +
			" address. The number of instruction lines to disassemble may be" +
			" specified as an option. If no address is specified, the" +
			" disassembly continues from where the last disassembly left off.",
		Usage: "disassemble [<address>] [<lines>]",
		Data:  (*Host).cmdDisassemble,
	})
	addCommand(root, cmd.CommandDescriptor{
		Name:  "dump",
		Brief: "Dump memory at address",
		Description: "Dump the contents of memory starting from the" +
			" specified address. The number of bytes to dump may be" +
			" specified as an option. If no address is specified, the" +
			" memory dump continues from where the last dump left off.",
		Usage: "dump [<address>] [<bytes>]",
		Data:  (*Host).cmdDump,
	})
	addCommand(root, cmd.CommandDescriptor{
		Name:  "write",
		Brief: "Write the linked image to disk",
		Description: "Write the linked image to a binary file. When the" +
			" SymbolMap setting is on, a .sym file describing the image is" +
			" written next to it.",
		Usage: "write <filename>",
		Data:  (*Host).cmdWrite,
	})
	addCommand(root, cmd.CommandDescriptor{
		Name:  "reset",
		Brief: "Discard the program",
		Description: "Discard all assembled statements, the link script and" +
			" the linked image.",
		Usage: "reset",
		Data:  (*Host).cmdReset,
	})
	addCommand(root, cmd.CommandDescriptor{
		Name:  "set",
		Brief: "Set a configuration variable",
		Description: "Set the value of a configuration variable. To see the" +
			" current values of all configuration variables, type set" +
			" without any arguments.",
		Usage: "set [<var> <value>]",
		Data:  (*Host).cmdSet,
	})
	addCommand(root, cmd.CommandDescriptor{
		Name:        "quit",
		Brief:       "Quit the program",
		Description: "Quit the program.",
		Usage:       "quit",
		Data:        (*Host).cmdQuit,
	})

	// Add command shortcuts.
	root.AddShortcut("a", "assemble")
	root.AddShortcut("d", "disassemble")
	root.AddShortcut("l", "link")
	root.AddShortcut("m", "dump")
	root.AddShortcut("w", "write")
	root.AddShortcut("?", "help")

	cmds = root
}
