package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/hyperjump/soundsift/internal/config"
	"github.com/hyperjump/soundsift/internal/indexer"
	"github.com/hyperjump/soundsift/internal/models"
	"github.com/hyperjump/soundsift/internal/vector"
	"go.uber.org/zap"
)

type indexFolderRequest struct {
	FilePath string `json:"file_path"`
}

func (s *Server) handleIndexFolder(w http.ResponseWriter, r *http.Request) {
	var req indexFolderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.FilePath == "" {
		s.respondError(w, http.StatusBadRequest, "file_path is required")
		return
	}
	s.logger.Debug("index folder request", zap.String("path", req.FilePath))
	report, err := s.indexer.IndexFolder(r.Context(), req.FilePath)
	if err != nil {
		switch {
		case errors.Is(err, indexer.ErrNotDirectory):
			s.respondError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, indexer.ErrIndexBusy):
			s.respondError(w, http.StatusConflict, err.Error())
		default:
			s.logger.Error("indexing failed", zap.String("path", req.FilePath), zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "ok",
		"files_embedded": report.AppendedPaths(),
		"report":         report,
	})
}

func (s *Server) handleRecover(w http.ResponseWriter, r *http.Request) {
	report, err := s.indexer.Recover(r.Context())
	if err != nil {
		if errors.Is(err, indexer.ErrIndexBusy) {
			s.respondError(w, http.StatusConflict, err.Error())
			return
		}
		s.logger.Error("recovery failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, report)
}

func (s *Server) handleQueryText(w http.ResponseWriter, r *http.Request) {
	var req models.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("text query request", zap.String("text", req.Text), zap.Int("top_k", req.TopK))
	response, err := s.engine.Search(r.Context(), &req)
	if err != nil {
		if errors.Is(err, models.ErrEmptyQuery) || errors.Is(err, models.ErrTopKTooLarge) {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("query failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, response)
}

func (s *Server) handleQueryKeyword(w http.ResponseWriter, r *http.Request) {
	var req models.KeywordQuery
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	response, err := s.engine.KeywordSearch(r.Context(), &req)
	if err != nil {
		if errors.Is(err, models.ErrEmptyQuery) {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("keyword query failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, response)
}

// handleGetItems looks up one item by ?path=, or lists items with ?offset= and ?limit=.
func (s *Server) handleGetItems(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if path := r.URL.Query().Get("path"); path != "" {
		item, err := s.store.LookupByPath(ctx, path)
		if err != nil {
			s.logger.Error("item lookup failed", zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if item == nil {
			s.respondError(w, http.StatusNotFound, "item not found")
			return
		}
		s.respondJSON(w, http.StatusOK, item)
		return
	}
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	items, err := s.store.ListItems(ctx, offset, limit)
	if err != nil {
		s.logger.Error("list items failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if items == nil {
		items = []*models.Item{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"items": items, "offset": offset, "limit": limit})
}

func (s *Server) handleGetItemBySlot(w http.ResponseWriter, r *http.Request) {
	slot, err := strconv.ParseInt(chi.URLParam(r, "slot"), 10, 64)
	if err != nil || slot < 0 {
		s.respondError(w, http.StatusBadRequest, "invalid slot")
		return
	}
	item, err := s.store.LookupBySlot(r.Context(), slot)
	if err != nil {
		s.logger.Error("item lookup failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if item == nil {
		s.respondError(w, http.StatusNotFound, "item not found")
		return
	}
	s.respondJSON(w, http.StatusOK, item)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.indexer.Status(r.Context())
	if err != nil {
		s.logger.Error("status failed", zap.Error(err))
		code := http.StatusInternalServerError
		if errors.Is(err, vector.ErrCorruptStore) {
			code = http.StatusConflict
		}
		s.respondError(w, code, err.Error())
		return
	}
	resp := &models.ServiceStatus{Store: status}
	if s.watch != nil {
		resp.WatchDirectories = s.watch.Directories()
	}
	if s.watchConfig != nil {
		resp.Config = s.watchConfig.StatusConfig()
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleWatchDirectoriesList(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	dirs := s.watch.Directories()
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"directories": dirs})
}

type watchAddRequest struct {
	Path string `json:"path"`
	Sync *bool  `json:"sync,omitempty"`
}

func (s *Server) handleWatchDirectoriesAdd(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	var req watchAddRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required")
		return
	}
	abs, err := filepath.Abs(req.Path)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid path")
		return
	}
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			s.respondError(w, http.StatusNotFound, "directory not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !info.IsDir() {
		s.respondError(w, http.StatusBadRequest, "path is not a directory")
		return
	}
	syncExisting := true
	if req.Sync != nil {
		syncExisting = *req.Sync
	}
	s.logger.Debug("watch add directory request", zap.String("path", abs), zap.Bool("sync_existing", syncExisting))
	if err := s.watch.AddDirectory(abs, syncExisting); err != nil {
		s.logger.Error("watch add directory failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.persistWatchDirectories()
	s.respondJSON(w, http.StatusCreated, map[string]string{"path": abs, "status": "added"})
}

func (s *Server) handleWatchDirectoriesRemove(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	path := r.URL.Query().Get("path")
	if path == "" {
		var body struct {
			Path string `json:"path"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil && body.Path != "" {
			path = body.Path
		}
	}
	if path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required (query or body)")
		return
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid path")
		return
	}
	s.logger.Debug("watch remove directory request", zap.String("path", abs))
	if err := s.watch.RemoveDirectory(abs); err != nil {
		s.logger.Error("watch remove directory failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.persistWatchDirectories()
	s.respondJSON(w, http.StatusOK, map[string]string{"path": abs, "status": "removed"})
}

func (s *Server) persistWatchDirectories() {
	if s.configPath == "" || s.watchConfig == nil {
		return
	}
	s.watchConfigMu.Lock()
	s.watchConfig.Watch.Directories = s.watch.Directories()
	err := config.Save(s.configPath, s.watchConfig)
	s.watchConfigMu.Unlock()
	if err != nil {
		s.logger.Warn("failed to persist watch config", zap.Error(err))
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"status": "error", "error": message})
}
