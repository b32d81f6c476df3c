package repl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
)

// ErrExit is returned by a handler to end the loop.
var ErrExit = errors.New("repl: exit")

// Handler runs one command. args is the raw text after the command word,
// so handlers that take JSON receive it untouched.
type Handler func(ctx context.Context, args string) error

// Command is a console command.
type Command struct {
	Name    string
	Usage   string
	Handler Handler
}

// REPL represents the Read-Eval-Print Loop.
type REPL struct {
	input     io.Reader
	output    io.Writer
	prompt    string
	commands  map[string]Command
	completer *Completer
	history   *History
}

// Option configures a REPL.
type Option func(*REPL)

// WithPrompt replaces the default "lobby> " prompt.
func WithPrompt(p string) Option {
	return func(r *REPL) { r.prompt = p }
}

// WithHistory sets the history store.
func WithHistory(h *History) Option {
	return func(r *REPL) { r.history = h }
}

// New creates a REPL reading commands from in.
func New(in io.Reader, out io.Writer, opts ...Option) *REPL {
	r := &REPL{
		input:     in,
		output:    out,
		prompt:    "lobby> ",
		commands:  make(map[string]Command),
		completer: NewCompleter(),
		history:   NewHistory("", DefaultHistorySize),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds commands. A later command replaces an earlier one with the
// same name.
func (r *REPL) Register(cmds ...Command) {
	for _, c := range cmds {
		r.commands[c.Name] = c
		r.completer.Add(c.Name)
	}
}

// History returns the history store.
func (r *REPL) History() *History {
	return r.history
}

// Run reads and executes commands until exit, end of input or ctx is done.
// Command errors are printed and do not stop the loop.
func (r *REPL) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(r.input)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	for {
		fmt.Fprint(r.output, r.prompt)

		var line string
		select {
		case <-ctx.Done():
			fmt.Fprintln(r.output)
			return nil
		case err := <-readErr:
			fmt.Fprintln(r.output)
			return err
		case line = <-lines:
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		r.history.Add(line)

		if err := r.execute(ctx, line); err != nil {
			if errors.Is(err, ErrExit) {
				return nil
			}
			fmt.Fprintf(r.output, "Error: %v\n", err)
		}
	}
}

func (r *REPL) execute(ctx context.Context, line string) error {
	name, args, _ := strings.Cut(line, " ")
	args = strings.TrimSpace(args)

	switch name {
	case "exit", "quit":
		return ErrExit
	case "help", "?":
		r.printHelp()
		return nil
	case "history":
		for i, e := range r.history.Entries() {
			fmt.Fprintf(r.output, "%4d  %s\n", i+1, e)
		}
		return nil
	}

	cmd, ok := r.commands[name]
	if !ok {
		if s := r.completer.Complete(name); len(s) > 0 {
			return fmt.Errorf("unknown command %q (did you mean %s?)", name, strings.Join(s, ", "))
		}
		return fmt.Errorf("unknown command %q, type help for a list", name)
	}
	return cmd.Handler(ctx, args)
}

func (r *REPL) printHelp() {
	names := make([]string, 0, len(r.commands))
	for n := range r.commands {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		fmt.Fprintf(r.output, "  %-12s %s\n", n, r.commands[n].Usage)
	}
	fmt.Fprintf(r.output, "  %-12s %s\n", "history", "show command history")
	fmt.Fprintf(r.output, "  %-12s %s\n", "exit", "leave the console")
}
