package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hyperjump/soundsift/internal/cli"
	"github.com/hyperjump/soundsift/internal/models"
)

// NewQueryCmd ranks audio files against a text description.
func NewQueryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query <text>",
		Short: "Find audio files that sound like a description",
		Long: `Embed the query text and rank every indexed vector by similarity.
All remaining arguments are joined by spaces, so quoting is optional.

Examples:
  soundsift query dusty vinyl snare
  soundsift query -k 20 --output compact "warm pad"`,
		Args: cobra.MinimumNArgs(1),
		RunE: runQuery,
	}
	cmd.Flags().IntP("top-k", "k", 0, "number of results (0 uses search.default_limit)")
	cmd.Flags().StringP("output", "o", "text", "output format: text, compact, or json")
	cmd.Flags().String("server", "", "server URL; empty queries the store directly")
	return cmd
}

func runQuery(cmd *cobra.Command, args []string) error {
	format, err := outputFlag(cmd)
	if err != nil {
		return err
	}
	topK, _ := cmd.Flags().GetInt("top-k")
	req := &models.QueryRequest{Text: joinArgs(args), TopK: topK}

	var response *models.QueryResponse
	if serverURL, _ := cmd.Flags().GetString("server"); serverURL != "" {
		response = &models.QueryResponse{}
		if err := postJSON(cmd.Context(), serverURL+"/api/v1/query/text", req, response); err != nil {
			return fmt.Errorf("query failed: %w", err)
		}
	} else {
		err := withReadComponents(cmd, func(ctx context.Context, c *Components) error {
			var err error
			response, err = c.Engine.Search(ctx, req)
			return err
		})
		if err != nil {
			return fmt.Errorf("query failed: %w", err)
		}
	}
	return cli.WriteQueryResults(cmd.OutOrStdout(), response, format)
}

// NewFindCmd searches item paths by keyword.
func NewFindCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "find <text>",
		Short: "Find indexed files by name or folder",
		Long: `Keyword search over indexed paths. File name matches rank above folder matches.
When nothing matches, the search is retried once with fuzzy matching.

Examples:
  soundsift find kick 808
  soundsift find --fuzzy snaer`,
		Args: cobra.MinimumNArgs(1),
		RunE: runFind,
	}
	cmd.Flags().IntP("limit", "n", 0, "number of results (0 uses search.default_limit)")
	cmd.Flags().Bool("fuzzy", false, "enable fuzzy matching for typo tolerance")
	cmd.Flags().StringP("output", "o", "text", "output format: text, compact, or json")
	cmd.Flags().String("server", "", "server URL; empty searches the index directly")
	return cmd
}

func runFind(cmd *cobra.Command, args []string) error {
	format, err := outputFlag(cmd)
	if err != nil {
		return err
	}
	limit, _ := cmd.Flags().GetInt("limit")
	fuzzy, _ := cmd.Flags().GetBool("fuzzy")
	query := &models.KeywordQuery{Text: joinArgs(args), Limit: limit, Fuzzy: fuzzy}

	var response *models.KeywordResponse
	if serverURL, _ := cmd.Flags().GetString("server"); serverURL != "" {
		viaHTTP := func(ctx context.Context, q *models.KeywordQuery) (*models.KeywordResponse, error) {
			var out models.KeywordResponse
			if err := postJSON(ctx, serverURL+"/api/v1/query/keyword", q, &out); err != nil {
				return nil, err
			}
			return &out, nil
		}
		response, err = findWithFuzzyRetry(cmd.Context(), query, viaHTTP)
	} else {
		err = withReadComponents(cmd, func(ctx context.Context, c *Components) error {
			var err error
			response, err = findWithFuzzyRetry(ctx, query, c.Engine.KeywordSearch)
			return err
		})
	}
	if err != nil {
		return fmt.Errorf("find failed: %w", err)
	}
	return cli.WriteKeywordResults(cmd.OutOrStdout(), response, format)
}

type keywordSearchFunc func(ctx context.Context, q *models.KeywordQuery) (*models.KeywordResponse, error)

// findWithFuzzyRetry runs the query and, when nothing matched, retries once with fuzzy matching.
func findWithFuzzyRetry(ctx context.Context, query *models.KeywordQuery, search keywordSearchFunc) (*models.KeywordResponse, error) {
	response, err := search(ctx, query)
	if err != nil || query.Fuzzy || len(response.Results) > 0 {
		return response, err
	}
	retry := *query
	retry.Fuzzy = true
	if fuzzyResponse, fuzzyErr := search(ctx, &retry); fuzzyErr == nil && len(fuzzyResponse.Results) > 0 {
		return fuzzyResponse, nil
	}
	return response, nil
}

// withReadComponents opens the store for a read-only command and runs fn.
func withReadComponents(cmd *cobra.Command, fn func(ctx context.Context, c *Components) error) error {
	return withComponents(cmd, componentOptions{readOnly: true}, fn)
}

func withComponents(cmd *cobra.Command, opts componentOptions, fn func(ctx context.Context, c *Components) error) error {
	e, err := newEnv(cmd)
	if err != nil {
		return err
	}
	defer e.logger.Sync()
	c, err := initializeComponents(cmd.Context(), e.cfg, e.logger, opts)
	if err != nil {
		return err
	}
	defer c.Close()
	return fn(cmd.Context(), c)
}

func outputFlag(cmd *cobra.Command) (cli.OutputFormat, error) {
	s, _ := cmd.Flags().GetString("output")
	return cli.ParseOutputFormat(s)
}
