// Package statuscmder provides the status command for checking the storage
// backend.
package statuscmder

import (
	"github.com/spf13/cobra"

	"github.com/papercomputeco/memories/cmd/memories/boot"
	"github.com/papercomputeco/memories/pkg/cliui"
)

type statusCommander struct {
	format string
}

const statusLongDesc string = `Check the storage backend.

Reports whether the backend answers, where it is, the collection in use and
how many records it holds. Soft-deleted records are included in the count.

An unhealthy backend is reported as JSON on stderr with exit status 1.

Examples:
  memories status
  memories status --storage-provider qdrant --format text`

const statusShortDesc string = "Check the storage backend"

func NewStatusCmd() *cobra.Command {
	cmder := &statusCommander{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: statusShortDesc,
		Long:  statusLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd)
		},
	}

	boot.AddFormatFlag(cmd, &cmder.format)

	return cmd
}

func (c *statusCommander) run(cmd *cobra.Command) error {
	if _, err := cliui.ParseFormat(c.format); err != nil {
		return err
	}

	rt, err := boot.New(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	status := rt.Service.Status(cmd.Context())
	if !status.Healthy() {
		if err := cliui.WriteJSON(cmd.ErrOrStderr(), status); err != nil {
			return err
		}
		return cliui.ErrReported
	}

	return boot.Output(cmd, c.format, status)
}
