// Package comm implements a rudimentary file-based interface for
// inter-process (or human-to-process) communication with a long-running
// search.
//
// Communication takes place via two files: a command file that is read and
// checked whenever CheckCommands is called, and a reply file the communicator
// appends replies to. A command matches a line when its name is a prefix of
// the line; the handler receives the full line and a writer into the reply
// file. After a check, the command file is rewritten with a fresh ready
// stamp.
package comm

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

const readyPrefix = "ready for command"

// Handler processes one matched command line, writing any reply to w.
type Handler func(w io.Writer, line string)

type command struct {
	name    string
	handler Handler
}

// Communicator polls a command file and answers into a reply file.
type Communicator struct {
	cmdPath   string
	replyPath string
	commands  []command
	now       func() time.Time
}

// New creates a communicator. Both files are truncated and stamped ready for
// commands. A "help" command listing all registered names
// is installed.
func New(cmdPath, replyPath string) (*Communicator, error) {
	c := &Communicator{
		cmdPath:   cmdPath,
		replyPath: replyPath,
		now:       time.Now,
	}
	if err := c.clearFile(cmdPath); err != nil {
		return nil, err
	}
	if err := c.clearFile(replyPath); err != nil {
		return nil, err
	}
	c.RegisterCommand("help", func(w io.Writer, _ string) {
		fmt.Fprintf(w, "Available commands:\n")
		for _, cmd := range c.commands {
			fmt.Fprintf(w, "  %s\n", cmd.name)
		}
	})
	return c, nil
}

// RegisterCommand adds a command. Commands are tried in registration order;
// the first whose name prefixes the line wins.
func (c *Communicator) RegisterCommand(name string, h Handler) {
	c.commands = append(c.commands, command{name: name, handler: h})
}

// CheckCommands reads the command file up to the ready stamp, dispatches each
// earlier line to the first matching command, and resets the command file.
// Unknown commands are answered with "No such command!".
func (c *Communicator) CheckCommands() error {
	in, err := os.Open(c.cmdPath)
	if err != nil {
		return fmt.Errorf("failed to open command file: %w", err)
	}
	defer in.Close()

	out, err := os.OpenFile(c.replyPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open reply file: %w", err)
	}
	defer out.Close()

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, readyPrefix) {
			break
		}
		fmt.Fprintf(out, "%s start handling command '%s'\n", c.stamp(), line)
		done := false
		for _, cmd := range c.commands {
			if strings.HasPrefix(line, cmd.name) {
				cmd.handler(out, line)
				done = true
				break
			}
		}
		if !done {
			fmt.Fprintf(out, "  No such command!\n")
		}
		fmt.Fprintf(out, "%s done handling command '%s'\n", c.stamp(), line)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read command file: %w", err)
	}

	return c.clearFile(c.cmdPath)
}

func (c *Communicator) clearFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to reset %s: %w", path, err)
	}
	defer f.Close()
	if _, err := fmt.Fprintf(f, "%s %s\n", readyPrefix, c.stamp()); err != nil {
		return fmt.Errorf("failed to stamp %s: %w", path, err)
	}
	return nil
}

func (c *Communicator) stamp() string {
	return "[" + c.now().Format("2006-01-02 15:04:05") + "]"
}
