package models

import "time"

// ItemStatus is the outcome of indexing one discovered file.
type ItemStatus string

const (
	// ItemAppended means the file got a new vector row and an item record.
	ItemAppended ItemStatus = "appended"
	// ItemUnchanged means the path was already indexed with the same modification time.
	ItemUnchanged ItemStatus = "unchanged"
	// ItemRefreshed means the path was already indexed but changed on disk; metadata and
	// the path-text side channel were refreshed, the audio vector was kept.
	ItemRefreshed ItemStatus = "refreshed"
	// ItemFailed means decoding, embedding, or the metadata write failed.
	ItemFailed ItemStatus = "failed"
)

// ItemResult reports what happened to one discovered file.
type ItemResult struct {
	Path   string     `json:"path"`
	Status ItemStatus `json:"status"`
	Slot   int64      `json:"slot"`
	Reason string     `json:"reason,omitempty"`
}

// IndexReport aggregates a folder indexing run.
type IndexReport struct {
	RunID      string        `json:"run_id"`
	Root       string        `json:"root"`
	Discovered int           `json:"discovered"`
	RowsBefore int           `json:"rows_before"`
	RowsAfter  int           `json:"rows_after"`
	Results    []ItemResult  `json:"results"`
	StartedAt  time.Time     `json:"started_at"`
	Elapsed    time.Duration `json:"elapsed_ns"`
}

// Count returns how many results have the given status.
func (r *IndexReport) Count(status ItemStatus) int {
	n := 0
	for _, res := range r.Results {
		if res.Status == status {
			n++
		}
	}
	return n
}

// AppendedPaths returns the paths that received a vector row, in slot order.
func (r *IndexReport) AppendedPaths() []string {
	paths := make([]string, 0, len(r.Results))
	for _, res := range r.Results {
		if res.Status == ItemAppended {
			paths = append(paths, res.Path)
		}
	}
	return paths
}

// RecoveryReport describes what startup recovery did to the store.
type RecoveryReport struct {
	TempAction    string   `json:"temp_action"`
	Rows          int      `json:"rows"`
	DanglingPaths []string `json:"dangling_paths,omitempty"`
}

// StoreStatus is a consistency snapshot of the vector file and the metadata store.
type StoreStatus struct {
	Rows           int    `json:"rows"`
	Items          int64  `json:"items"`
	MaxSlot        int64  `json:"max_slot"`
	OrphanRows     int64  `json:"orphan_rows"`
	DanglingItems  int64  `json:"dangling_items"`
	PendingTemp    bool   `json:"pending_temp"`
	ModelVersion   string `json:"model_version"`
	Dimensions     int    `json:"dimensions"`
	Loader         string `json:"loader"`
	DiskUsageBytes int64  `json:"disk_usage_bytes"`
}

// StatusConfig is the subset of configuration reported next to a StoreStatus.
type StatusConfig struct {
	DatabasePath     string  `json:"database_path"`
	DatabaseDriver   string  `json:"database_driver"`
	VectorPath       string  `json:"vector_path"`
	TextIndexPath    string  `json:"text_index_path"`
	KeywordIndexPath string  `json:"keyword_index_path"`
	SampleRate       int     `json:"sample_rate"`
	MaxSeconds       float64 `json:"max_seconds"`
	TextWeight       float32 `json:"text_weight"`
	CacheSnapshot    bool    `json:"cache_snapshot"`
}

// ServiceStatus is the shape of GET /api/v1/status and of `soundsift status`.
type ServiceStatus struct {
	Store            *StoreStatus  `json:"store"`
	WatchDirectories []string      `json:"watch_directories,omitempty"`
	Config           *StatusConfig `json:"config,omitempty"`
}
