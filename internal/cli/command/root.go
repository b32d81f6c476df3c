package command

import (
	"crypto/tls"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/lobbysync-go/internal/cli/output"
	"github.com/yndnr/lobbysync-go/internal/client"
	"github.com/yndnr/lobbysync-go/internal/config"
	"github.com/yndnr/lobbysync-go/internal/infra/buildinfo"
	"github.com/yndnr/lobbysync-go/internal/infra/tlsroots"
)

// commandTimeout bounds one-shot commands.
const commandTimeout = 30 * time.Second

const configMetadataKey = "config"

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:                 "lobbysync",
		Usage:                "Inspect and follow multiplayer lobbies",
		Version:              buildinfo.String(),
		Flags:                globalFlags(),
		EnableBashCompletion: true,
		Commands: []*cli.Command{
			LobbyCommand(),
			WatchCommand(),
			VersionCommand(),
		},
	}
}

// globalFlags returns the global CLI flags.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to a YAML configuration file",
			EnvVars: []string{"LOBBYSYNC_CONFIG"},
		},
		&cli.StringFlag{
			Name:    "server",
			Aliases: []string{"s"},
			Usage:   "Lobby service base URL (overrides service.base_url)",
		},
		&cli.StringFlag{
			Name:  "credential",
			Usage: "Credential sent with every request (overrides service.credential)",
		},
		&cli.StringFlag{
			Name:    "player",
			Aliases: []string{"p"},
			Usage:   "Player ID acting on the lobby",
			EnvVars: []string{"LOBBYSYNC_PLAYER"},
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format: table, json, yaml",
			Value:   string(output.FormatTable),
		},
		&cli.BoolFlag{
			Name:    "wide",
			Aliases: []string{"w"},
			Usage:   "Show wide output (more columns)",
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "Log level: debug, info, warn, error (overrides log.level)",
		},
	}
}

// GlobalFlags defines flags available to all commands.
type GlobalFlags struct {
	ConfigFile string
	Server     string
	Credential string
	Player     string
	Output     string
	Wide       bool
	LogLevel   string
}

// ParseGlobalFlags extracts global flags from context.
func ParseGlobalFlags(c *cli.Context) *GlobalFlags {
	return &GlobalFlags{
		ConfigFile: c.String("config"),
		Server:     c.String("server"),
		Credential: c.String("credential"),
		Player:     c.String("player"),
		Output:     c.String("output"),
		Wide:       c.Bool("wide"),
		LogLevel:   c.String("log-level"),
	}
}

// Overrides maps the flags that shadow configuration keys.
func (g *GlobalFlags) Overrides() map[string]any {
	overrides := map[string]any{}
	if g.Server != "" {
		overrides["service.base_url"] = g.Server
	}
	if g.Credential != "" {
		overrides["service.credential"] = g.Credential
	}
	if g.LogLevel != "" {
		overrides["log.level"] = g.LogLevel
	}
	return overrides
}

// LoadConfig loads the configuration once per invocation.
func LoadConfig(c *cli.Context) (*config.ClientConfig, error) {
	if cfg, ok := c.App.Metadata[configMetadataKey].(*config.ClientConfig); ok {
		return cfg, nil
	}
	flags := ParseGlobalFlags(c)
	cfg, err := config.Load(flags.ConfigFile, flags.Overrides())
	if err != nil {
		return nil, err
	}
	if c.App.Metadata == nil {
		c.App.Metadata = map[string]any{}
	}
	c.App.Metadata[configMetadataKey] = cfg
	return cfg, nil
}

// RequirePlayer returns the --player value or a usage error.
func RequirePlayer(c *cli.Context) (string, error) {
	player := c.String("player")
	if player == "" {
		return "", fmt.Errorf("--player (or LOBBYSYNC_PLAYER) is required for %q", c.Command.Name)
	}
	return player, nil
}

// clientTLS returns nil settings when no TLS files are configured. The key
// pair is nil unless a client certificate is in use.
func clientTLS(cfg *config.ClientConfig) (*tls.Config, *tlsroots.KeyPair, error) {
	files := cfg.TLS()
	if files.IsZero() {
		return nil, nil, nil
	}
	return tlsroots.ClientTLS(files)
}

// newClient builds the REST client.
func newClient(cfg *config.ClientConfig, tlsCfg *tls.Config) (*client.Client, error) {
	opts := cfg.ClientOptions()
	opts.TLSConfig = tlsCfg
	return client.New(opts)
}

// connect loads the configuration and builds the REST client.
func connect(c *cli.Context) (*client.Client, error) {
	cfg, err := LoadConfig(c)
	if err != nil {
		return nil, err
	}
	tlsCfg, _, err := clientTLS(cfg)
	if err != nil {
		return nil, err
	}
	return newClient(cfg, tlsCfg)
}

// render writes data in the selected output format.
func render(c *cli.Context, data any) error {
	format, err := output.ParseFormat(c.String("output"))
	if err != nil {
		return err
	}
	return output.NewFormatter(format, c.Bool("wide")).Format(c.App.Writer, data)
}

func isTable(c *cli.Context) bool {
	f, err := output.ParseFormat(c.String("output"))
	return err == nil && f == output.FormatTable
}

// printf writes a human-readable line, suppressed for machine formats.
func printf(c *cli.Context, format string, args ...any) {
	if isTable(c) {
		fmt.Fprintf(c.App.Writer, format+"\n", args...)
	}
}

// PrintError prints an error message to w, or stderr when w is nil.
func PrintError(w io.Writer, format string, args ...any) {
	if w == nil {
		w = os.Stderr
	}
	fmt.Fprintf(w, "error: "+format+"\n", args...)
}
