package repl

import (
	"slices"
	"testing"
)

func TestCompleter_Complete(t *testing.T) {
	c := NewCompleter()
	c.Add("leave", "list", "kick", "leave")

	tests := []struct {
		prefix string
		want   []string
	}{
		{"l", []string{"leave", "list"}},
		{"le", []string{"leave"}},
		{"h", []string{"help", "history"}},
		{"k", []string{"kick"}},
		{"xyz", nil},
		{"", []string{"exit", "help", "history", "kick", "leave", "list", "quit"}},
	}

	for _, tt := range tests {
		t.Run(tt.prefix, func(t *testing.T) {
			got := c.Complete(tt.prefix)
			if !slices.Equal(got, tt.want) {
				t.Errorf("Complete(%q) = %v, want %v", tt.prefix, got, tt.want)
			}
		})
	}
}
