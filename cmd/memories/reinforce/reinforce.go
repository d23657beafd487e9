// Package reinforcecmder provides the reinforce command.
package reinforcecmder

import (
	"github.com/spf13/cobra"

	"github.com/papercomputeco/memories/cmd/memories/boot"
	"github.com/papercomputeco/memories/pkg/cliui"
)

type reinforceCommander struct {
	format string
}

const reinforceLongDesc string = `Reinforce a memory, resetting its confidence to 1.0.

Only memories with the reinforceable decay policy can be reinforced. Stable
memories never decay and contextual memories always decay from creation, so
both are rejected.

Examples:
  memories reinforce 3f2b6c1e-9a41-4f3e-8d0c-2b7f5e6a1c90`

const reinforceShortDesc string = "Reinforce a memory"

func NewReinforceCmd() *cobra.Command {
	cmder := &reinforceCommander{}

	cmd := &cobra.Command{
		Use:   "reinforce <id>",
		Short: reinforceShortDesc,
		Long:  reinforceLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd, args[0])
		},
	}

	boot.AddFormatFlag(cmd, &cmder.format)

	return cmd
}

func (c *reinforceCommander) run(cmd *cobra.Command, id string) error {
	if _, err := cliui.ParseFormat(c.format); err != nil {
		return err
	}

	rt, err := boot.New(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	resp, err := rt.Service.Reinforce(cmd.Context(), id)
	if err != nil {
		return rt.Fail(cmd.ErrOrStderr(), err)
	}

	return boot.Output(cmd, c.format, resp)
}
