// Package deletecmder provides the soft-delete command.
package deletecmder

import (
	"github.com/spf13/cobra"

	"github.com/papercomputeco/memories/cmd/memories/boot"
	"github.com/papercomputeco/memories/pkg/cliui"
)

type deleteCommander struct {
	format string
}

const deleteLongDesc string = `Soft-delete a memory.

The record stays in the backend flagged as deleted and is never returned
again. Deleting a memory twice is an error. Use "memories purge" to remove a
deleted record from the backend.

Examples:
  memories delete 3f2b6c1e-9a41-4f3e-8d0c-2b7f5e6a1c90`

const deleteShortDesc string = "Delete a memory"

func NewDeleteCmd() *cobra.Command {
	cmder := &deleteCommander{}

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: deleteShortDesc,
		Long:  deleteLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd, args[0])
		},
	}

	boot.AddFormatFlag(cmd, &cmder.format)

	return cmd
}

func (c *deleteCommander) run(cmd *cobra.Command, id string) error {
	if _, err := cliui.ParseFormat(c.format); err != nil {
		return err
	}

	rt, err := boot.New(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	resp, err := rt.Service.Delete(cmd.Context(), id)
	if err != nil {
		return rt.Fail(cmd.ErrOrStderr(), err)
	}

	return boot.Output(cmd, c.format, resp)
}
