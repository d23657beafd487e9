// Package searchcmder provides the search command for semantic search over
// memories.
package searchcmder

import (
	"github.com/spf13/cobra"

	"github.com/papercomputeco/memories/cmd/memories/boot"
	"github.com/papercomputeco/memories/pkg/cliui"
	"github.com/papercomputeco/memories/pkg/memory"
)

type searchCommander struct {
	tags          boot.Tags
	limit         int
	minConfidence float64
	format        string
}

const searchLongDesc string = `Search memories by meaning.

Returns the live memories closest to the query, in backend order, dropping
those whose current confidence is below the floor. Tag flags narrow the
search to exact matches; --global restricts it to global memories.

similarity is the backend's distance score: lower is closer.

Examples:
  memories search "code style"
  memories search "deploy process" --agent coder --limit 5
  memories search "preferences" --global --min-confidence 0.8 --format text`

const searchShortDesc string = "Search memories"

func NewSearchCmd() *cobra.Command {
	cmder := &searchCommander{}

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: searchShortDesc,
		Long:  searchLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd, args[0])
		},
	}

	boot.AddTagFlags(cmd, &cmder.tags, "Only return global memories")
	cmd.Flags().IntVarP(&cmder.limit, "limit", "n", 0, "Maximum number of candidates (default from search.default_limit)")
	cmd.Flags().Float64Var(&cmder.minConfidence, "min-confidence", 0, "Confidence floor (default from search.min_confidence)")
	boot.AddFormatFlag(cmd, &cmder.format)

	return cmd
}

func (c *searchCommander) run(cmd *cobra.Command, query string) error {
	if _, err := cliui.ParseFormat(c.format); err != nil {
		return err
	}

	rt, err := boot.New(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	req := memory.SearchRequest{
		Query:       query,
		Agent:       c.tags.Agent,
		Personality: c.tags.Personality,
		Project:     c.tags.Project,
		Type:        c.tags.Type,
		Limit:       c.limit,
	}

	// --global=false means no constraint, not "only non-global"
	if c.tags.Global {
		global := true
		req.Global = &global
	}
	if cmd.Flags().Changed("min-confidence") {
		floor := c.minConfidence
		req.MinConfidence = &floor
	}

	resp, err := rt.Service.Search(cmd.Context(), req)
	if err != nil {
		return rt.Fail(cmd.ErrOrStderr(), err)
	}

	return boot.Output(cmd, c.format, resp)
}
