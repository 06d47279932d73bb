package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/example/go-bpetrain/internal/bpe"
	"github.com/example/go-bpetrain/internal/config"
	"github.com/example/go-bpetrain/internal/logging"
	"github.com/example/go-bpetrain/internal/tokenizer"
	"github.com/spf13/cobra"
)

var (
	cfgFile   string
	activeCfg config.Config
)

func NewRootCmd() *cobra.Command {
	defaults := config.DefaultConfig()

	cmd := &cobra.Command{
		Use:           "bpetrain",
		Short:         "Byte-pair-encoding vocabulary trainer",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			loaded, err := config.Load(config.LoadOptions{
				Cmd:        cmd,
				ConfigFile: cfgFile,
				Defaults:   defaults,
			})
			if err != nil {
				return err
			}
			activeCfg = loaded
			setupLogger(loaded.LogLevel)
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Optional config file (yaml|toml|json)")
	config.RegisterFlags(cmd.PersistentFlags(), defaults)

	cmd.AddCommand(newTrainCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newBenchCmd())
	cmd.AddCommand(newEncodeCmd())
	cmd.AddCommand(newDecodeCmd())
	cmd.AddCommand(newExportCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newHealthCmd())
	cmd.AddCommand(newDoctorCmd())

	return cmd
}

// setupLogger configures the process-wide slog default logger.
func setupLogger(levelStr string) {
	logger, err := logging.New(os.Stderr, levelStr)
	if err != nil {
		logger, _ = logging.New(os.Stderr, "info")
	}
	slog.SetDefault(logger)
}

func requireConfig() (config.Config, error) {
	if activeCfg.Paths.ModelPath == "" {
		return config.Config{}, fmt.Errorf("configuration not loaded")
	}
	return activeCfg, nil
}

// loadTokenizer reads the model at path and builds a tokenizer for it.
func loadTokenizer(path string) (*tokenizer.BPETokenizer, error) {
	model, err := bpe.LoadFile(path)
	if err != nil {
		return nil, err
	}

	return tokenizer.NewBPETokenizer(model)
}
