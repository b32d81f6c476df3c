package command

import (
	"strings"
	"testing"

	"github.com/urfave/cli/v2"
)

func TestApp(t *testing.T) {
	app := App()
	if app.Name != "lobbysync" {
		t.Errorf("Name = %q, want lobbysync", app.Name)
	}
	if app.Usage == "" {
		t.Error("Usage should not be empty")
	}

	commands := make(map[string]*cli.Command)
	for _, cmd := range app.Commands {
		commands[cmd.Name] = cmd
	}
	for _, name := range []string{"lobby", "watch", "version"} {
		if commands[name] == nil {
			t.Errorf("missing command %q", name)
		}
	}

	sub := make(map[string]bool)
	for _, cmd := range commands["lobby"].Subcommands {
		sub[cmd.Name] = true
	}
	for _, name := range []string{"list", "get", "current", "create", "join", "leave", "kick", "delete", "update"} {
		if !sub[name] {
			t.Errorf("missing lobby subcommand %q", name)
		}
	}
}

func TestApp_GlobalFlags(t *testing.T) {
	names := make(map[string]bool)
	for _, f := range globalFlags() {
		names[f.Names()[0]] = true
	}
	for _, name := range []string{"config", "server", "credential", "player", "output", "wide", "log-level"} {
		if !names[name] {
			t.Errorf("missing global flag %q", name)
		}
	}
}

func TestParseGlobalFlags(t *testing.T) {
	app := &cli.App{
		Flags: globalFlags(),
		Action: func(c *cli.Context) error {
			flags := ParseGlobalFlags(c)
			if flags.Server != "http://lobby.test" || flags.Player != "alice" || flags.Output != "json" || !flags.Wide {
				t.Errorf("flags = %+v", flags)
			}
			overrides := flags.Overrides()
			want := map[string]any{
				"service.base_url":   "http://lobby.test",
				"service.credential": "Bearer t",
				"log.level":          "debug",
			}
			if len(overrides) != len(want) {
				t.Errorf("Overrides() = %v", overrides)
			}
			for k, v := range want {
				if overrides[k] != v {
					t.Errorf("Overrides()[%q] = %v, want %v", k, overrides[k], v)
				}
			}
			return nil
		},
	}
	args := []string{
		"test",
		"--server", "http://lobby.test",
		"--credential", "Bearer t",
		"--player", "alice",
		"-o", "json",
		"--wide",
		"--log-level", "debug",
	}
	if err := app.Run(args); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
}

func TestParseGlobalFlags_Defaults(t *testing.T) {
	t.Setenv("LOBBYSYNC_PLAYER", "")
	app := &cli.App{
		Flags: globalFlags(),
		Action: func(c *cli.Context) error {
			flags := ParseGlobalFlags(c)
			if flags.Output != "table" || flags.Wide || flags.Player != "" {
				t.Errorf("defaults = %+v", flags)
			}
			if o := flags.Overrides(); len(o) != 0 {
				t.Errorf("Overrides() = %v, want none", o)
			}
			return nil
		},
	}
	if err := app.Run([]string{"test"}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	server := newMockServer(t)
	_, err := runApp(t, server, "--log-level", "loud", "lobby", "list")
	if err == nil || !strings.Contains(err.Error(), "log.level") {
		t.Errorf("error = %v, want log.level validation error", err)
	}
}

func TestVersionCommand(t *testing.T) {
	server := newMockServer(t)
	out, err := runApp(t, server, "-o", "json", "version")
	if err != nil {
		t.Fatalf("version error = %v", err)
	}
	assertContains(t, out, `"version"`, `"go_version"`)

	out, err = runApp(t, server, "version")
	if err != nil {
		t.Fatal(err)
	}
	assertContains(t, out, "FIELD", "go_version")
}

func TestUnknownOutputFormat(t *testing.T) {
	server := newMockServer(t)
	if _, err := runApp(t, server, "-o", "xml", "version"); err == nil {
		t.Error("expected error for unknown output format")
	}
}
