// Package app provides the classifier server application.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kart-io/triplet-classifier/cmd/classifier/app/options"
)

const (
	// Name is the name of the application.
	Name = "triplet-classifier"

	commandDesc = `Triplet-based document summary classifier

The service extracts factual (subject, predicate, object) triplets from
document summaries, normalizes and masks sensitive values, and classifies
summaries by cosine similarity against labeled triplet vectors.

This server provides:
  - Summary classification with an explicit confidence threshold
  - Labeled sample ingest (single and batch)
  - Exact-match accuracy evaluation over labeled datasets
  - In-memory or Milvus-backed vector storage`
)

// NewClassifierCommand creates the root command with flag and config-file
// handling.
func NewClassifierCommand() *cobra.Command {
	opts := options.NewServerOptions()
	var configFile string

	cmd := &cobra.Command{
		Use:          Name,
		Short:        "Triplet-based document summary classifier",
		Long:         commandDesc,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := loadConfig(cmd, configFile, opts); err != nil {
				return err
			}
			return run(opts)
		},
	}

	cmd.Flags().StringVarP(&configFile, "config", "c", "", "Path to the configuration file")
	opts.AddFlags(cmd.Flags())

	return cmd
}

// loadConfig merges the config file and environment into opts. Explicit
// command-line flags win over both.
func loadConfig(cmd *cobra.Command, configFile string, opts *options.ServerOptions) error {
	v := viper.New()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", configFile, err)
		}
	}

	v.SetEnvPrefix("CLASSIFIER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("bind flags: %w", err)
	}
	if err := v.Unmarshal(opts); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}
	return nil
}

// run contains the main logic for initializing and running the server.
func run(opts *options.ServerOptions) error {
	if err := opts.Complete(); err != nil {
		return fmt.Errorf("complete options: %w", err)
	}
	if err := opts.Validate(); err != nil {
		return fmt.Errorf("validate options: %w", err)
	}

	cfg, err := opts.Config()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	ctx := setupSignalContext()

	server, err := cfg.NewServer(ctx)
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}
	return server.Run(ctx)
}

// setupSignalContext returns a context that is cancelled on SIGINT or
// SIGTERM. A second signal exits immediately.
func setupSignalContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	c := make(chan os.Signal, 2)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		cancel()
		<-c
		os.Exit(1)
	}()
	return ctx
}
