// Package memoriescmder
package memoriescmder

import (
	"github.com/spf13/cobra"

	configcmder "github.com/papercomputeco/memories/cmd/memories/config"
	createcmder "github.com/papercomputeco/memories/cmd/memories/create"
	deletecmder "github.com/papercomputeco/memories/cmd/memories/delete"
	getcmder "github.com/papercomputeco/memories/cmd/memories/get"
	purgecmder "github.com/papercomputeco/memories/cmd/memories/purge"
	reinforcecmder "github.com/papercomputeco/memories/cmd/memories/reinforce"
	searchcmder "github.com/papercomputeco/memories/cmd/memories/search"
	servecmder "github.com/papercomputeco/memories/cmd/memories/serve"
	statuscmder "github.com/papercomputeco/memories/cmd/memories/status"
	versioncmder "github.com/papercomputeco/memories/cmd/version"
	"github.com/papercomputeco/memories/pkg/config"
)

// globalFlags receives the root persistent flags. Commands read them back
// through viper so flags, env, .env and config.toml share one precedence.
type globalFlags struct {
	storageProvider string
	storageTarget   string
	collection      string
	embeddingProv   string
	embeddingTarget string
	embeddingModel  string
	embeddingDims   uint
	eventsProvider  string
}

const memoriesLongDesc string = `Memories is long-term memory for your agents.

Memories are short texts tagged with an agent, personality, project and type.
Their confidence decays over time according to their decay policy, and search
only returns memories that are still confident enough.

Manage memories using:
  memories create <content>     Store a new memory
  memories search <query>       Search memories by meaning
  memories get <id>             Show a memory
  memories reinforce <id>       Reset a reinforceable memory's confidence
  memories delete <id>          Soft-delete a memory
  memories status               Check the storage backend

Run the HTTP API and MCP server using:
  memories serve`

const memoriesShortDesc string = "Memories - Agent Memory"

func NewMemoriesCmd() *cobra.Command {
	flags := &globalFlags{}

	cmd := &cobra.Command{
		Use:           "memories",
		Short:         memoriesShortDesc,
		Long:          memoriesLongDesc,
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override path to .memories/ config directory")

	config.AddPersistentStringFlag(cmd, config.Flags, config.FlagStorageProvider, &flags.storageProvider)
	config.AddPersistentStringFlag(cmd, config.Flags, config.FlagStorageTarget, &flags.storageTarget)
	config.AddPersistentStringFlag(cmd, config.Flags, config.FlagCollection, &flags.collection)
	config.AddPersistentStringFlag(cmd, config.Flags, config.FlagEmbeddingProv, &flags.embeddingProv)
	config.AddPersistentStringFlag(cmd, config.Flags, config.FlagEmbeddingTgt, &flags.embeddingTarget)
	config.AddPersistentStringFlag(cmd, config.Flags, config.FlagEmbeddingModel, &flags.embeddingModel)
	config.AddPersistentUintFlag(cmd, config.Flags, config.FlagEmbeddingDims, &flags.embeddingDims)
	config.AddPersistentStringFlag(cmd, config.Flags, config.FlagEventsProvider, &flags.eventsProvider)

	// Add subcommands
	cmd.AddCommand(createcmder.NewCreateCmd())
	cmd.AddCommand(searchcmder.NewSearchCmd())
	cmd.AddCommand(getcmder.NewGetCmd())
	cmd.AddCommand(reinforcecmder.NewReinforceCmd())
	cmd.AddCommand(deletecmder.NewDeleteCmd())
	cmd.AddCommand(purgecmder.NewPurgeCmd())
	cmd.AddCommand(statuscmder.NewStatusCmd())
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
