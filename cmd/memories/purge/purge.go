// Package purgecmder provides the purge command, which physically removes
// soft-deleted memories from the storage backend.
package purgecmder

import (
	"github.com/spf13/cobra"

	"github.com/papercomputeco/memories/cmd/memories/boot"
	"github.com/papercomputeco/memories/pkg/cliui"
)

type purgeCommander struct {
	format string
}

// purgeResponse confirms a purge.
type purgeResponse struct {
	ID     string `json:"id"`
	Purged bool   `json:"purged"`
}

const purgeLongDesc string = `Remove a deleted memory from the storage backend.

Only memories that were already soft-deleted with "memories delete" can be
purged. Purging cannot be undone.

Examples:
  memories purge 3f2b6c1e-9a41-4f3e-8d0c-2b7f5e6a1c90`

const purgeShortDesc string = "Remove a deleted memory from storage"

func NewPurgeCmd() *cobra.Command {
	cmder := &purgeCommander{}

	cmd := &cobra.Command{
		Use:   "purge <id>",
		Short: purgeShortDesc,
		Long:  purgeLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd, args[0])
		},
	}

	boot.AddFormatFlag(cmd, &cmder.format)

	return cmd
}

func (c *purgeCommander) run(cmd *cobra.Command, id string) error {
	if _, err := cliui.ParseFormat(c.format); err != nil {
		return err
	}

	rt, err := boot.New(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := rt.Service.Purge(cmd.Context(), id); err != nil {
		return rt.Fail(cmd.ErrOrStderr(), err)
	}

	return boot.Output(cmd, c.format, purgeResponse{ID: id, Purged: true})
}
