// Package getcmder provides the get command for reading a single memory.
package getcmder

import (
	"github.com/spf13/cobra"

	"github.com/papercomputeco/memories/cmd/memories/boot"
	"github.com/papercomputeco/memories/pkg/cliui"
)

type getCommander struct {
	format string
}

const getLongDesc string = `Show a memory with its current confidence.

Deleted memories are reported as not found.

Examples:
  memories get 3f2b6c1e-9a41-4f3e-8d0c-2b7f5e6a1c90
  memories get 3f2b6c1e-9a41-4f3e-8d0c-2b7f5e6a1c90 --format text`

const getShortDesc string = "Show a memory"

func NewGetCmd() *cobra.Command {
	cmder := &getCommander{}

	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: getShortDesc,
		Long:  getLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd, args[0])
		},
	}

	boot.AddFormatFlag(cmd, &cmder.format)

	return cmd
}

func (c *getCommander) run(cmd *cobra.Command, id string) error {
	if _, err := cliui.ParseFormat(c.format); err != nil {
		return err
	}

	rt, err := boot.New(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	resp, err := rt.Service.Get(cmd.Context(), id)
	if err != nil {
		return rt.Fail(cmd.ErrOrStderr(), err)
	}

	return boot.Output(cmd, c.format, resp)
}
