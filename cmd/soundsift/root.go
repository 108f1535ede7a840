package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hyperjump/soundsift/internal/config"
	"github.com/hyperjump/soundsift/pkg/utils"
)

const defaultConfigPath = "/usr/local/etc/soundsift/config.yaml"

// NewRootCmd builds the soundsift command tree.
func NewRootCmd(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "soundsift",
		Short: "Local text-to-audio search over sample libraries",
		Long: `SoundSift embeds audio files into a flat vector store and ranks them
against free-text queries such as "dusty vinyl snare".`,
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		Run: func(cmd *cobra.Command, _ []string) {
			_ = cmd.Help()
		},
	}

	rootCmd.PersistentFlags().String("config", defaultConfigPath, "config file path")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	rootCmd.AddCommand(
		NewServerCmd(),
		NewIndexCmd(),
		NewQueryCmd(),
		NewFindCmd(),
		NewStatusCmd(),
		NewRecoverCmd(),
	)
	return rootCmd
}

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory (for development); if that exists it is used.
// Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// env is what every command needs before it touches the store.
type env struct {
	cfg        *config.Config
	configPath string
	logger     *zap.Logger
	debug      bool
}

func configFlag(cmd *cobra.Command) string {
	path, _ := cmd.Flags().GetString("config")
	return path
}

func newEnv(cmd *cobra.Command) (*env, error) {
	debugFlag, _ := cmd.Flags().GetBool("debug")
	cfg, resolved, err := loadConfig(configFlag(cmd))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	debug := cfg.Debug || debugFlag
	logger, err := utils.NewLogger(debug)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return &env{cfg: cfg, configPath: resolved, logger: logger, debug: debug}, nil
}

// joinArgs joins all positional args with spaces so multi-word queries work the
// same with or without shell quoting.
func joinArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}
