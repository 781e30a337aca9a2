package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hyperjump/lexsearch/internal/cli"
	"github.com/hyperjump/lexsearch/internal/config"
	"github.com/hyperjump/lexsearch/internal/metrics"
	"github.com/hyperjump/lexsearch/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "config.yaml"

var (
	configPath string
	envFile    string
	debugFlag  bool
	jsonOutput bool

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "lexsearch",
	Short: "Legal document ingestion and hybrid search",
	Long: `lexsearch ingests legal documents (PDF, DOCX, text and more), extracts
citations and metadata, and answers hybrid semantic and keyword queries.`,
	Version:           version,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath, "config file path")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "environment file loaded before the config")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "write JSON output")
}

// setup loads the environment file, the config and the logger. A missing config file is
// only an error when --config was given explicitly.
func setup(cmd *cobra.Command, args []string) error {
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", envFile, err)
	}

	loaded, err := config.Load(configPath)
	switch {
	case err == nil:
		cfg = loaded
	case errors.Is(err, fs.ErrNotExist) && !cmd.Flags().Changed("config"):
		cfg = config.Default()
		if err := cfg.Validate(); err != nil {
			return err
		}
	default:
		return err
	}

	logger, err = utils.NewLogger(cfg.Debug || debugFlag)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	metrics.Init()
	logger.Debug("Config loaded", zap.String("path", configPath))
	return nil
}

func outputFormat() cli.OutputFormat {
	if jsonOutput {
		return cli.OutputJSON
	}
	return cli.OutputText
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
