package configcmder

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/memories/pkg/cliui"
	"github.com/papercomputeco/memories/pkg/config"
)

type initCommander struct {
	preset string
	force  bool
}

const initLongDesc string = `Write a preset config.toml.

Presets:
  local    sqlite-vec database in the .memories/ directory with the built-in
           hashing embedder. Needs no servers.
  chroma   Chroma server at localhost:8000 with Ollama embeddings (default)
  openai   Chroma server with OpenAI embeddings. Set embedding.api_key or
           OPENAI_API_KEY.

An existing config.toml is only replaced with --force.

Examples:
  memories config init --preset local
  memories config init --preset openai --force`

const initShortDesc string = "Write a preset config.toml"

func newInitCmd() *cobra.Command {
	cmder := &initCommander{}

	cmd := &cobra.Command{
		Use:   "init",
		Short: initShortDesc,
		Long:  initLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			return cmder.run(cmd.OutOrStdout(), configDir)
		},
	}

	cmd.Flags().StringVar(&cmder.preset, "preset", "local",
		"Preset to write ("+strings.Join(config.ValidPresetNames(), ", ")+")")
	cmd.Flags().BoolVar(&cmder.force, "force", false, "Replace an existing config.toml")

	return cmd
}

func (c *initCommander) run(w io.Writer, configDir string) error {
	cfg, err := config.PresetConfig(c.preset)
	if err != nil {
		return err
	}

	cfger, err := config.NewConfiger(configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	target := cfger.GetTarget()
	_, err = os.Stat(target)
	switch {
	case err == nil && !c.force:
		return fmt.Errorf("config file already exists: %s (use --force to replace it)", target)
	case err != nil && !errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("reading config: %w", err)
	}

	if err := cfger.SaveConfig(cfg); err != nil {
		return err
	}

	fmt.Fprintf(w, "\n  %s Wrote %s preset to %s\n\n",
		cliui.SuccessMark,
		cliui.KeyStyle.Render(c.preset),
		cliui.DimStyle.Render(target),
	)
	return nil
}
