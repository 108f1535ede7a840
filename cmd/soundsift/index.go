package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/hyperjump/soundsift/internal/cli"
	"github.com/hyperjump/soundsift/internal/indexer"
	"github.com/hyperjump/soundsift/internal/models"
)

// NewIndexCmd indexes a folder, directly or through a running server.
func NewIndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index <folder>",
		Short: "Embed new audio files under a folder",
		Long: `Walk a folder and append a vector for every supported audio file that is
not indexed yet. Files that are already indexed are never re-embedded.

Examples:
  soundsift index ~/Samples
  soundsift index --server http://localhost:8000 ~/Samples`,
		Args: cobra.ExactArgs(1),
		RunE: runIndex,
	}
	cmd.Flags().String("server", "", "server URL; empty indexes directly")
	cmd.Flags().StringP("output", "o", "text", "output format: text or json")
	return cmd
}

func runIndex(cmd *cobra.Command, args []string) error {
	format, err := outputFlag(cmd)
	if err != nil {
		return err
	}
	folder, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}

	if serverURL, _ := cmd.Flags().GetString("server"); serverURL != "" {
		var resp struct {
			Report *models.IndexReport `json:"report"`
		}
		if err := postJSON(cmd.Context(), serverURL+"/api/v1/index/folder", map[string]string{"file_path": folder}, &resp); err != nil {
			return fmt.Errorf("indexing failed: %w", err)
		}
		return cli.WriteIndexReport(cmd.OutOrStdout(), resp.Report, format)
	}

	e, err := newEnv(cmd)
	if err != nil {
		return err
	}
	defer e.logger.Sync()

	opts := componentOptions{}
	if format == cli.OutputText && term.IsTerminal(int(os.Stderr.Fd())) {
		opts.progress = newProgress()
	}
	components, err := initializeComponents(cmd.Context(), e.cfg, e.logger, opts)
	if err != nil {
		return err
	}
	defer components.Close()

	report, err := components.Indexer.IndexFolder(cmd.Context(), folder)
	if err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}
	return cli.WriteIndexReport(cmd.OutOrStdout(), report, format)
}

// newProgress returns a progress callback that draws a bar on stderr once the
// number of new files is known.
func newProgress() indexer.ProgressFunc {
	var (
		mu  sync.Mutex
		bar *progressbar.ProgressBar
	)
	return func(done, total int, path string) {
		mu.Lock()
		defer mu.Unlock()
		if bar == nil {
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionEnableColorCodes(true),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowCount(),
				progressbar.OptionSetDescription("[cyan]Embedding[reset]"),
				progressbar.OptionSetTheme(progressbar.Theme{
					Saucer:        "[green]=[reset]",
					SaucerHead:    "[green]>[reset]",
					SaucerPadding: " ",
					BarStart:      "[",
					BarEnd:        "]",
				}),
				progressbar.OptionOnCompletion(func() {
					fmt.Fprintln(os.Stderr)
				}),
			)
		}
		_ = bar.Set(done)
	}
}
