// Package createcmder provides the create command for storing a new memory.
package createcmder

import (
	"github.com/spf13/cobra"

	"github.com/papercomputeco/memories/cmd/memories/boot"
	"github.com/papercomputeco/memories/pkg/cliui"
	"github.com/papercomputeco/memories/pkg/decay"
	"github.com/papercomputeco/memories/pkg/memory"
)

type createCommander struct {
	tags   boot.Tags
	decay  string
	format string
}

const createLongDesc string = `Store a new memory.

The memory is embedded and written to the configured storage backend with
its tags and decay policy. New memories always start at confidence 1.0.

Decay policies:
  stable         never decays (default)
  contextual     decays linearly from creation, cannot be reinforced
  reinforceable  decays linearly from the last reinforcement

Examples:
  memories create "prefers tabs over spaces" --agent coder --type preference
  memories create "release freeze until friday" --project api --decay contextual
  memories create "deploys go through CI" --global --decay reinforceable --format text`

const createShortDesc string = "Store a new memory"

func NewCreateCmd() *cobra.Command {
	cmder := &createCommander{}

	cmd := &cobra.Command{
		Use:   "create <content>",
		Short: createShortDesc,
		Long:  createLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd, args[0])
		},
	}

	boot.AddTagFlags(cmd, &cmder.tags, "Make the memory visible to every agent")
	cmd.Flags().StringVar(&cmder.decay, "decay", string(decay.Stable), "Decay policy (stable, contextual, reinforceable)")
	boot.AddFormatFlag(cmd, &cmder.format)

	return cmd
}

func (c *createCommander) run(cmd *cobra.Command, content string) error {
	if _, err := cliui.ParseFormat(c.format); err != nil {
		return err
	}

	policy, err := decay.ParsePolicy(c.decay)
	if err != nil {
		return err
	}

	rt, err := boot.New(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	resp, err := rt.Service.Create(cmd.Context(), memory.CreateRequest{
		Content:     content,
		Agent:       c.tags.Agent,
		Personality: c.tags.Personality,
		Project:     c.tags.Project,
		Type:        c.tags.Type,
		Global:      c.tags.Global,
		DecayPolicy: policy,
	})
	if err != nil {
		return rt.Fail(cmd.ErrOrStderr(), err)
	}

	return boot.Output(cmd, c.format, resp)
}
