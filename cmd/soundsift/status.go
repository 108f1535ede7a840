package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hyperjump/soundsift/internal/cli"
	"github.com/hyperjump/soundsift/internal/models"
)

// NewStatusCmd reports row and item counts and how consistent they are.
func NewStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show vector store and metadata consistency",
		Args:  cobra.NoArgs,
		RunE:  runStatus,
	}
	cmd.Flags().StringP("output", "o", "text", "output format: text, compact, or json")
	cmd.Flags().String("server", "", "server URL; empty reads the store directly")
	return cmd
}

func runStatus(cmd *cobra.Command, _ []string) error {
	format, err := outputFlag(cmd)
	if err != nil {
		return err
	}
	var status models.ServiceStatus
	if serverURL, _ := cmd.Flags().GetString("server"); serverURL != "" {
		if err := getJSON(cmd.Context(), serverURL+"/api/v1/status", &status); err != nil {
			return fmt.Errorf("status failed: %w", err)
		}
		return cli.WriteStatus(cmd.OutOrStdout(), &status, format)
	}

	err = withReadComponents(cmd, func(ctx context.Context, c *Components) error {
		var err error
		status.Store, err = c.Indexer.Status(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("status failed: %w", err)
	}
	if cfg, _, err := loadConfig(configFlag(cmd)); err == nil {
		status.WatchDirectories = cfg.Watch.Directories
		status.Config = cfg.StatusConfig()
	}
	return cli.WriteStatus(cmd.OutOrStdout(), &status, format)
}

// NewRecoverCmd repairs the store after an interrupted indexing run.
func NewRecoverCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recover",
		Short: "Clean up after an interrupted indexing run",
		Long: `Discard or promote a leftover temporary vector file and delete metadata
for slots that never reached the live file, so the next index run re-embeds them.`,
		Args: cobra.NoArgs,
		RunE: runRecover,
	}
	cmd.Flags().StringP("output", "o", "text", "output format: text or json")
	cmd.Flags().String("server", "", "server URL; empty recovers the store directly")
	return cmd
}

func runRecover(cmd *cobra.Command, _ []string) error {
	format, err := outputFlag(cmd)
	if err != nil {
		return err
	}
	var report *models.RecoveryReport
	if serverURL, _ := cmd.Flags().GetString("server"); serverURL != "" {
		report = &models.RecoveryReport{}
		err = postJSON(cmd.Context(), serverURL+"/api/v1/recover", struct{}{}, report)
	} else {
		err = withComponents(cmd, componentOptions{}, func(ctx context.Context, c *Components) error {
			var err error
			report, err = c.Indexer.Recover(ctx)
			return err
		})
	}
	if err != nil {
		return fmt.Errorf("recovery failed: %w", err)
	}
	return cli.WriteRecovery(cmd.OutOrStdout(), report, format)
}
