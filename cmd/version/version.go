// Package versioncmder
package versioncmder

import (
	"github.com/spf13/cobra"

	"github.com/papercomputeco/memories/pkg/cliui"
	"github.com/papercomputeco/memories/pkg/utils"
)

type VersionCommander struct {
	format string
}

// VersionInfo describes the build.
type VersionInfo struct {
	Version string `json:"version"`
	Sha     string `json:"sha"`
	BuiltAt string `json:"built_at"`
}

func NewVersionCmd() *cobra.Command {
	cmder := &VersionCommander{}

	cmd := &cobra.Command{
		Use:   "version",
		Short: "displays version",
		Long:  "displays the version of this CLI",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd)
		},
	}

	cmd.Flags().StringVarP(&cmder.format, "format", "f", string(cliui.FormatText), "Output format (json, text, markdown)")

	return cmd
}

func (c *VersionCommander) run(cmd *cobra.Command) error {
	f, err := cliui.ParseFormat(c.format)
	if err != nil {
		return err
	}

	return cliui.Render(cmd.OutOrStdout(), f, VersionInfo{
		Version: utils.Version,
		Sha:     utils.Sha,
		BuiltAt: utils.Buildtime,
	})
}
