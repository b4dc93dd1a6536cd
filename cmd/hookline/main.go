// Command hookline applies changers and enchantments to hooks in rendered
// story HTML and prints the resulting tree.
package main

import (
	"io"
	"os"

	"github.com/alecthomas/kong"

	"github.com/FocuswithJustin/Hookline/internal/config"
)

const version = "0.1.0"

// out receives rendered output. Logs go to stderr.
var out io.Writer = os.Stdout

// Globals are flags shared by every command.
type Globals struct {
	Config    string `name:"config" short:"c" help:"TOML configuration file" type:"existingfile"`
	LogLevel  string `name:"log-level" help:"Log level (debug, info, warn, error)" enum:",debug,info,warn,error" default:""`
	LogFormat string `name:"log-format" help:"Log format (text, json)" enum:",text,json" default:""`
}

// Setup loads the configuration, applies flag overrides and installs the
// logger.
func (g *Globals) Setup() (config.Config, error) {
	cfg := config.Default()
	if g.Config != "" {
		var err error
		if cfg, err = config.Load(g.Config); err != nil {
			return config.Config{}, err
		}
	}
	if g.LogLevel != "" {
		cfg.Log.Level = g.LogLevel
	}
	if g.LogFormat != "" {
		cfg.Log.Format = g.LogFormat
	}
	cfg.Apply()
	return cfg, nil
}

// CLI defines the command-line interface for hookline.
var CLI struct {
	Globals `embed:""`

	Select   SelectCmd   `cmd:"" help:"Print the regions a selector matches"`
	Change   ChangeCmd   `cmd:"" help:"Apply changers to the regions a selector matches"`
	Enchant  EnchantCmd  `cmd:"" help:"Decorate the regions a selector matches"`
	Passages PassagesCmd `cmd:"" help:"List the passages of a story archive"`
	Watch    WatchCmd    `cmd:"" help:"Re-run a change whenever the input file is written"`
	Version  VersionCmd  `cmd:"" help:"Print version information"`
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("hookline"),
		kong.Description("Hookline - selectors, changers and enchantments for story HTML"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)
	err := ctx.Run(&CLI.Globals)
	ctx.FatalIfErrorf(err)
}
