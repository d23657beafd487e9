// Package boot wires the memories object graph for commands: configuration,
// logger, embedder, storage driver, event publisher and the memory service.
// Backends are connected lazily, so building a Runtime never dials.
package boot

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/memories/pkg/cliui"
	"github.com/papercomputeco/memories/pkg/config"
	"github.com/papercomputeco/memories/pkg/dotdir"
	"github.com/papercomputeco/memories/pkg/embeddings"
	embeddingutils "github.com/papercomputeco/memories/pkg/embeddings/utils"
	"github.com/papercomputeco/memories/pkg/eventstream"
	eventstreamutils "github.com/papercomputeco/memories/pkg/eventstream/utils"
	"github.com/papercomputeco/memories/pkg/logger"
	"github.com/papercomputeco/memories/pkg/memory"
	"github.com/papercomputeco/memories/pkg/storage"
	storageutils "github.com/papercomputeco/memories/pkg/storage/utils"
)

// PersistentFlags are the registry keys of the root command's config flags.
var PersistentFlags = []string{
	config.FlagStorageProvider,
	config.FlagStorageTarget,
	config.FlagCollection,
	config.FlagEmbeddingProv,
	config.FlagEmbeddingTgt,
	config.FlagEmbeddingModel,
	config.FlagEmbeddingDims,
	config.FlagEventsProvider,
}

// Runtime is the wired object graph shared by a command invocation.
type Runtime struct {
	Config    *config.Config
	ConfigDir string
	Logger    *slog.Logger
	Service   *memory.Service

	// Target is the effective storage target after provider defaults.
	Target string

	driver    storage.Driver
	publisher eventstream.Publisher
}

// Load resolves the effective configuration for cmd: flags bound through
// viper on top of env, .env, config.toml and defaults. extraFlags binds
// command specific flags from config.Flags.
func Load(cmd *cobra.Command, extraFlags ...string) (*config.Config, string, error) {
	configDir, _ := cmd.Flags().GetString("config-dir")

	v, err := config.InitViper(configDir)
	if err != nil {
		return nil, "", err
	}
	config.BindRegisteredFlags(v, cmd, config.Flags, append(PersistentFlags, extraFlags...))

	cfg, err := config.FromViper(v)
	if err != nil {
		return nil, "", err
	}

	dir, err := dotdir.NewManager().Target(configDir)
	if err != nil {
		return nil, "", fmt.Errorf("resolving config dir: %w", err)
	}

	return cfg, dir, nil
}

// NewLogger builds the CLI logger. Logs go to w (stderr) so stdout only
// carries results.
func NewLogger(cmd *cobra.Command, w io.Writer) *slog.Logger {
	debug, _ := cmd.Flags().GetBool("debug")
	return logger.New(
		logger.WithWriter(w),
		logger.WithDebug(debug),
		logger.WithPretty(true),
	)
}

// New loads configuration for cmd and builds a Runtime logging to stderr.
func New(cmd *cobra.Command) (*Runtime, error) {
	cfg, dir, err := Load(cmd)
	if err != nil {
		return nil, err
	}
	return NewRuntime(cfg, dir, NewLogger(cmd, cmd.ErrOrStderr()))
}

// NewRuntime builds the object graph for cfg. dir is the resolved .memories
// directory used for file backed storage defaults.
func NewRuntime(cfg *config.Config, dir string, log *slog.Logger) (*Runtime, error) {
	target := cfg.Storage.Target
	if target == "" {
		target = storageutils.DefaultTarget(cfg.Storage.Provider, dir)
	}

	embedder, err := embeddingutils.NewEmbedder(&embeddingutils.NewEmbedderOpts{
		ProviderType: cfg.Embedding.Provider,
		TargetURL:    cfg.Embedding.Target,
		Model:        cfg.Embedding.Model,
		APIKey:       cfg.Embedding.APIKey,
		Dimensions:   cfg.Embedding.Dimensions,
		CacheSize:    cfg.Embedding.CacheSize,
	})
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}

	driver, err := storageutils.NewDriver(&storageutils.NewDriverOpts{
		ProviderType:   cfg.Storage.Provider,
		Target:         target,
		CollectionName: cfg.Storage.Collection,
		Dimensions:     cfg.Embedding.Dimensions,
		Embedder:       embedder,
		Logger:         log,
	})
	if err != nil {
		_ = embedder.Close()
		return nil, fmt.Errorf("creating storage driver: %w", err)
	}

	publisher, err := eventstreamutils.NewPublisher(&eventstreamutils.NewPublisherOpts{
		ProviderType: cfg.Events.Provider,
		Brokers:      cfg.Events.Brokers,
		Topic:        cfg.Events.Topic,
		Logger:       log,
	})
	if err != nil {
		_ = driver.Close()
		return nil, fmt.Errorf("creating event publisher: %w", err)
	}

	svc, err := memory.NewService(memory.Config{
		Driver:        driver,
		Logger:        log,
		Publisher:     publisher,
		HalfLifeHours: cfg.Decay.HalfLifeHours,
		DefaultLimit:  cfg.Search.DefaultLimit,
		MinConfidence: cfg.Search.MinConfidence,
		Host:          storageutils.DisplayTarget(target),
		Collection:    cfg.Storage.Collection,
	})
	if err != nil {
		_ = publisher.Close()
		_ = driver.Close()
		return nil, err
	}

	log.Debug("runtime ready",
		"storage", cfg.Storage.Provider,
		"target", storageutils.DisplayTarget(target),
		"collection", cfg.Storage.Collection,
		"embedding", cfg.Embedding.Provider,
		"events", cfg.Events.Provider,
	)

	return &Runtime{
		Config:    cfg,
		ConfigDir: dir,
		Logger:    log,
		Service:   svc,
		Target:    target,
		driver:    driver,
		publisher: publisher,
	}, nil
}

// Close flushes the publisher and releases the storage driver and embedder.
func (r *Runtime) Close() error {
	return errors.Join(r.publisher.Close(), r.driver.Close())
}

// Describe maps err to the message shown to users. Errors the service
// classified keep their text; anything else is reported as an unreachable
// backend.
func (r *Runtime) Describe(err error) string {
	switch memory.KindOf(err) {
	case memory.KindNotFound, memory.KindInvalidOperation, memory.KindInvalidRequest:
		return err.Error()
	}

	if errors.Is(err, embeddings.ErrEmbedding) {
		return fmt.Sprintf("Cannot get embeddings from %s at %s. Is it running?",
			r.Config.Embedding.Provider, storageutils.DisplayTarget(r.Config.Embedding.Target))
	}

	name := storageutils.DisplayName(r.Config.Storage.Provider)
	if r.Target == "" {
		return fmt.Sprintf("Cannot connect to %s. Is it running?", name)
	}
	return fmt.Sprintf("Cannot connect to %s at %s. Is it running?", name, storageutils.DisplayTarget(r.Target))
}

// Fail writes err to w as {"error": ...} and returns cliui.ErrReported so
// the caller exits 1 without printing it again.
func (r *Runtime) Fail(w io.Writer, err error) error {
	r.Logger.Debug("command failed", "error", err)
	if werr := cliui.WriteError(w, r.Describe(err)); werr != nil {
		return werr
	}
	return cliui.ErrReported
}

// Output renders v to the command's stdout in the given --format.
func Output(cmd *cobra.Command, format string, v any) error {
	f, err := cliui.ParseFormat(format)
	if err != nil {
		return err
	}
	return cliui.Render(cmd.OutOrStdout(), f, v)
}

// AddFormatFlag registers --format on cmd.
func AddFormatFlag(cmd *cobra.Command, target *string) {
	cmd.Flags().StringVarP(target, "format", "f", string(cliui.FormatJSON), "Output format (json, text, markdown)")
}

// Tags are the attribution flags shared by create and search.
type Tags struct {
	Agent       string
	Personality string
	Project     string
	Type        string
	Global      bool
}

// AddTagFlags registers the tag flags on cmd.
func AddTagFlags(cmd *cobra.Command, t *Tags, globalUsage string) {
	cmd.Flags().StringVar(&t.Agent, "agent", "", "Agent that owns the memory")
	cmd.Flags().StringVar(&t.Personality, "personality", "", "Personality of the agent")
	cmd.Flags().StringVar(&t.Project, "project", "", "Project the memory belongs to")
	cmd.Flags().StringVar(&t.Type, "type", "", "Kind of memory, e.g. preference or fact")
	cmd.Flags().BoolVar(&t.Global, "global", false, globalUsage)
}
