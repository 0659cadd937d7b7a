// Package cli implements the numctl command line client.
package cli

import (
	"context"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"docnum/internal/config"
	appctx "docnum/internal/core/context"
	"docnum/internal/domain/numbering"
	"docnum/internal/infrastructure/storage"
	"docnum/pkg/logger"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Format     string // "json" | "text"
	ConfigPath string
	Verbose    bool

	open Opener
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// Opener builds a numbering service for one command invocation.
// The returned close func releases the underlying store.
type Opener func(ctx context.Context, opts *RootOptions) (*numbering.Service, func() error, error)

// NewRootCommand creates the root command for numctl backed by the configured store.
func NewRootCommand() *cobra.Command {
	return newRootCommand(openConfigured)
}

func newRootCommand(open Opener) *cobra.Command {
	opts := &RootOptions{open: open}

	cmd := &cobra.Command{
		Use:   "numctl",
		Short: "numctl - document number allocator client",
		Long: `Allocate and inspect sequential document numbers.

Commands talk directly to the counter store selected by the configuration
(config.yaml or DOCNUM_* environment variables).

Document types: ` + joinTypes(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "config file (default: search ., ./config, /etc/docnum)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose logging to stderr")

	cmd.AddCommand(NewNextCommand(opts))
	cmd.AddCommand(NewCurrentCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewRebaseCommand(opts))
	cmd.AddCommand(NewTypesCommand(opts))
	cmd.AddCommand(NewCheckCommand(opts))

	return cmd
}

// session is the per-invocation state shared by subcommands.
type session struct {
	ctx     context.Context
	service *numbering.Service
	out     *OutputFormatter
	close   func() error
}

func (o *RootOptions) start(cmd *cobra.Command) (*session, error) {
	trace := appctx.NewTraceContext("", "")
	ctx := appctx.WithTrace(cmd.Context(), trace)

	service, closeFn, err := o.open(ctx, o)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open counter store", err)
	}

	return &session{
		ctx:     ctx,
		service: service,
		out: &OutputFormatter{
			Format:  o.Format,
			Writer:  cmd.OutOrStdout(),
			TraceID: trace.TraceID,
		},
		close: closeFn,
	}, nil
}

func (s *session) Close() {
	if s.close != nil {
		_ = s.close()
	}
}

// openConfigured loads configuration and opens the configured store.
func openConfigured(ctx context.Context, opts *RootOptions) (*numbering.Service, func() error, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, nil, err
	}

	logCfg := cfg.Logging
	logCfg.OutputPaths = []string{"stderr"}
	if opts.Verbose {
		logCfg.Level = "debug"
	} else {
		logCfg.Level = "warn"
	}
	log, err := logger.New(logCfg)
	if err != nil {
		return nil, nil, err
	}
	ctx = logger.WithLogger(ctx, log)

	store, err := storage.Open(ctx, cfg.Store)
	if err != nil {
		return nil, nil, err
	}

	closeFn := func() error {
		_ = log.Sync()
		return store.Close()
	}
	return numbering.NewService(store, cfg.NumberingOptions()), closeFn, nil
}
