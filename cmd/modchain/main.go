package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"modchain/internal/chain"
	"modchain/internal/config"
	"modchain/internal/resolver"
)

var (
	// Global flags
	verbose    bool
	configPath string
	modules    []string
	strategy   string
	mergeOrder string

	// Loaded configuration
	cfg *config.Config

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "modchain",
	Short: "modchain - dynamic module symbol resolution",
	Long: `modchain loads code containers at runtime and resolves named symbols
across them through a resolution chain.

Containers are Go source interpreted in a sandboxed interpreter; each load
attaches the container's symbol entries to the chain under one of four
strategies: isolated, merged, multisegment, or delegating.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if verbose {
			cfg.Logging.Verbose = true
		}
		return cfg.Validate()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "modchain.yaml", "path to config file")
	rootCmd.PersistentFlags().StringSliceVarP(&modules, "module", "m", nil, "module container file to load (repeatable)")
	rootCmd.PersistentFlags().StringVarP(&strategy, "strategy", "s", "", "load strategy: isolated, merged, multisegment, delegating")
	rootCmd.PersistentFlags().StringVar(&mergeOrder, "order", "", "merge order for merged/multisegment: prepend, append")

	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(watchCmd)
}

// newResolver builds a resolver from the loaded configuration.
func newResolver() *resolver.Resolver {
	opts := []resolver.Option{
		resolver.WithLogger(logger),
		resolver.WithRetryPolicy(cfg.Resolver.MutationRetries, cfg.GetMutationBackoff()),
	}
	if cfg.Resolver.Cache {
		opts = append(opts, resolver.WithCache())
	}
	if len(cfg.Resolver.AllowedImports) > 0 {
		opts = append(opts, resolver.WithAllowedImports(cfg.Resolver.AllowedImports))
	}
	return resolver.New(opts...)
}

// loadStrategy resolves the effective strategy and merge order from flags
// and config.
func loadStrategy() (resolver.Strategy, chain.MergeOrder, error) {
	name := strategy
	if name == "" {
		name = cfg.Resolver.DefaultStrategy
	}
	strat, err := resolver.ParseStrategy(name)
	if err != nil {
		return 0, 0, err
	}

	orderName := mergeOrder
	if orderName == "" {
		orderName = cfg.Resolver.MergeOrder
	}
	order := chain.Prepend
	if orderName == "append" {
		order = chain.Append
	}
	return strat, order, nil
}

// loadModules loads every --module file into the resolver.
func loadModules(r *resolver.Resolver) ([]*resolver.ModuleHandle, error) {
	strat, order, err := loadStrategy()
	if err != nil {
		return nil, err
	}

	handles := make([]*resolver.ModuleHandle, 0, len(modules))
	for _, path := range modules {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read module %s: %w", path, err)
		}

		opts := resolver.LoadOptions{Order: order, Origin: path}
		switch strat {
		case resolver.Merged, resolver.MultiSegment:
			opts.Target = r.Root()
		case resolver.Delegating:
			opts.Target = r.EntryPoint()
		}

		h, err := r.LoadModule(data, strat, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
		handles = append(handles, h)
	}
	return handles, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
