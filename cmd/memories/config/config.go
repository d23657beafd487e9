// Package configcmder provides the config command for managing persistent
// memories configuration stored in the .memories/ directory.
package configcmder

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/memories/pkg/cliui"
	"github.com/papercomputeco/memories/pkg/config"
)

const configLongDesc string = `Manage persistent memories configuration.

Configuration is stored as config.toml in the .memories/ directory and provides
default values for command flags. Precedence, highest first: CLI flags,
MEMORIES_* environment variables, a .env file, config.toml, built-in defaults.

Keys use dotted notation matching the TOML section structure:
  storage.provider, storage.target, storage.collection,
  search.default_limit, search.min_confidence,
  decay.half_life_hours,
  embedding.provider, embedding.target, embedding.model, embedding.api_key,
  embedding.dimensions, embedding.cache_size,
  events.provider, events.brokers, events.topic,
  api.listen

Use subcommands to manage configuration values:
  memories config init --preset <name>   Write a preset config.toml
  memories config set <key> <value>      Set a configuration value
  memories config get <key>              Get a configuration value
  memories config list                   List all configuration values

Examples:
  memories config init --preset local
  memories config set storage.provider qdrant
  memories config set search.min_confidence 0.5
  memories config get decay.half_life_hours
  memories config list`

const configShortDesc string = "Manage persistent memories configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}

// printTarget prints which config file a subcommand operates on.
func printTarget(w io.Writer, cfger *config.Configer) {
	target := cfger.GetTarget()
	if _, err := os.Stat(target); errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(w, "\n  %s\n\n", cliui.DimStyle.Render("No config file found. Using defaults."))
		return
	}

	fmt.Fprintf(w, "\n  %s %s\n\n",
		cliui.KeyStyle.Render("Config file:"),
		cliui.DimStyle.Render(target),
	)
}

// displayValue masks secrets.
func displayValue(key, value string) string {
	if key == "embedding.api_key" && value != "" {
		return "********"
	}
	return value
}

func completeKeys(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) == 0 {
		return config.ValidConfigKeys(), cobra.ShellCompDirectiveNoFileComp
	}
	return nil, cobra.ShellCompDirectiveNoFileComp
}
