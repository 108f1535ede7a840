// Package cli provides output helpers for the SoundSift command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/hyperjump/soundsift/internal/models"
	"github.com/hyperjump/soundsift/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
	// OutputCompact prints one tab-separated line per result.
	OutputCompact OutputFormat = "compact"
)

// ParseOutputFormat maps a --output value to an OutputFormat.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case OutputText, OutputJSON, OutputCompact:
		return f, nil
	case "":
		return OutputText, nil
	default:
		return "", fmt.Errorf("unknown output format %q; use text, compact, or json", s)
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

const maxPathWidth = 100

// WriteQueryResults writes text-query results to w in the given format.
func WriteQueryResults(w io.Writer, response *models.QueryResponse, format OutputFormat) error {
	switch format {
	case OutputJSON:
		return writeJSON(w, response)
	case OutputCompact:
		for _, r := range response.Results {
			fmt.Fprintf(w, "%.4f\t%d\t%s\n", r.Score, r.Slot, r.PathOrEmpty())
		}
		return nil
	default:
		fmt.Fprintf(w, "\nFound %d results in %dms (%d rows)\n\n", response.Total, response.QueryTime, response.Rows)
		for _, r := range response.Results {
			writeOneResult(w, r)
		}
		return nil
	}
}

func writeOneResult(w io.Writer, r *models.QueryResult) {
	path := fmt.Sprintf("(slot %d, no item)", r.Slot)
	if r.Path != nil {
		path = utils.TruncateLeft(*r.Path, maxPathWidth)
	}
	if r.TextScore != 0 {
		fmt.Fprintf(w, "%3d. %.4f (audio: %.4f, text: %.4f)  %s\n", r.Rank, r.Score, r.AudioScore, r.TextScore, path)
		return
	}
	fmt.Fprintf(w, "%3d. %.4f  %s\n", r.Rank, r.Score, path)
}

// WriteKeywordResults writes keyword path matches to w in the given format.
func WriteKeywordResults(w io.Writer, response *models.KeywordResponse, format OutputFormat) error {
	switch format {
	case OutputJSON:
		return writeJSON(w, response)
	case OutputCompact:
		for _, r := range response.Results {
			fmt.Fprintf(w, "%.4f\t%s\n", r.Score, r.Path)
		}
		return nil
	default:
		fmt.Fprintf(w, "\nFound %d paths in %dms\n\n", len(response.Results), response.QueryTime)
		for i, r := range response.Results {
			fmt.Fprintf(w, "%3d. %.4f  %s\n", i+1, r.Score, utils.TruncateLeft(r.Path, maxPathWidth))
		}
		return nil
	}
}

// WriteIndexReport summarizes an indexing run. Failed items are listed with their reason.
func WriteIndexReport(w io.Writer, report *models.IndexReport, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, report)
	}
	fmt.Fprintf(w, "Indexed %s in %s\n", report.Root, report.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(w, "  discovered: %d\n", report.Discovered)
	fmt.Fprintf(w, "  appended:   %d\n", report.Count(models.ItemAppended))
	fmt.Fprintf(w, "  refreshed:  %d\n", report.Count(models.ItemRefreshed))
	fmt.Fprintf(w, "  unchanged:  %d\n", report.Count(models.ItemUnchanged))
	fmt.Fprintf(w, "  failed:     %d\n", report.Count(models.ItemFailed))
	fmt.Fprintf(w, "  rows:       %d -> %d\n", report.RowsBefore, report.RowsAfter)
	for _, res := range report.Results {
		if res.Status == models.ItemFailed {
			fmt.Fprintf(w, "  ! %s: %s\n", res.Path, res.Reason)
		}
	}
	return nil
}

// WriteStatus writes store consistency and configuration.
func WriteStatus(w io.Writer, status *models.ServiceStatus, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, status)
	}
	if st := status.Store; st != nil {
		fmt.Fprintf(w, "rows:            %d   # vectors in the flat file\n", st.Rows)
		fmt.Fprintf(w, "items:           %d   # paths in the metadata store\n", st.Items)
		fmt.Fprintf(w, "max_slot:        %d\n", st.MaxSlot)
		fmt.Fprintf(w, "orphan_rows:     %d   # rows with no item\n", st.OrphanRows)
		fmt.Fprintf(w, "dangling_items:  %d   # items past the last row\n", st.DanglingItems)
		fmt.Fprintf(w, "pending_temp:    %t\n", st.PendingTemp)
		fmt.Fprintf(w, "model:           %s (%d dims)\n", st.ModelVersion, st.Dimensions)
		fmt.Fprintf(w, "loader:          %s\n", st.Loader)
		fmt.Fprintf(w, "disk_usage:      %s\n", utils.FormatBytes(st.DiskUsageBytes))
	}
	if len(status.WatchDirectories) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "# watched")
		for _, d := range status.WatchDirectories {
			fmt.Fprintf(w, "%s\n", d)
		}
	}
	if c := status.Config; c != nil && format != OutputCompact {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "# configuration")
		fmt.Fprintf(w, "database_path:   %s (%s)\n", c.DatabasePath, c.DatabaseDriver)
		fmt.Fprintf(w, "vector_path:     %s\n", c.VectorPath)
		fmt.Fprintf(w, "text_index:      %s\n", c.TextIndexPath)
		fmt.Fprintf(w, "keyword_index:   %s\n", c.KeywordIndexPath)
		fmt.Fprintf(w, "audio:           %d Hz, %gs\n", c.SampleRate, c.MaxSeconds)
		fmt.Fprintf(w, "text_weight:     %g\n", c.TextWeight)
		fmt.Fprintf(w, "cache_snapshot:  %t\n", c.CacheSnapshot)
	}
	return nil
}

// WriteRecovery reports what startup recovery did.
func WriteRecovery(w io.Writer, report *models.RecoveryReport, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, report)
	}
	fmt.Fprintf(w, "temp file: %s\n", report.TempAction)
	fmt.Fprintf(w, "rows:      %d\n", report.Rows)
	if len(report.DanglingPaths) == 0 {
		fmt.Fprintln(w, "no dangling items")
		return nil
	}
	fmt.Fprintf(w, "removed %d dangling item(s):\n", len(report.DanglingPaths))
	for _, p := range report.DanglingPaths {
		fmt.Fprintf(w, "  %s\n", p)
	}
	return nil
}
