package repl

import (
	"sort"
	"strings"
)

// Completer provides command completion for the REPL.
type Completer struct {
	commands []string
}

// NewCompleter creates a Completer knowing the built-in commands.
func NewCompleter() *Completer {
	c := &Completer{}
	c.Add("help", "history", "exit", "quit")
	return c
}

// Add registers command names.
func (c *Completer) Add(names ...string) {
	for _, n := range names {
		i := sort.SearchStrings(c.commands, n)
		if i < len(c.commands) && c.commands[i] == n {
			continue
		}
		c.commands = append(c.commands, "")
		copy(c.commands[i+1:], c.commands[i:])
		c.commands[i] = n
	}
}

// Complete returns the sorted commands starting with prefix.
func (c *Completer) Complete(prefix string) []string {
	var suggestions []string
	for _, cmd := range c.commands {
		if strings.HasPrefix(cmd, prefix) {
			suggestions = append(suggestions, cmd)
		}
	}
	return suggestions
}
