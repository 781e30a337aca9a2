package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/lexsearch/internal/fileid"
	"github.com/hyperjump/lexsearch/internal/indexer"
	"github.com/hyperjump/lexsearch/internal/models"
	"github.com/hyperjump/lexsearch/internal/storage"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

func (s *Server) handleUploadDocument(w http.ResponseWriter, r *http.Request) {
	maxBytes := s.config.Ingest.MaxFileBytes()
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+(1<<20))
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.respondError(w, http.StatusRequestEntityTooLarge, "file exceeds upload limit")
			return
		}
		s.respondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !allowed(ext, s.config.Ingest.AllowedExtensions) {
		s.respondError(w, http.StatusBadRequest, "file type "+ext+" not allowed")
		return
	}
	if header.Size > maxBytes {
		s.respondError(w, http.StatusRequestEntityTooLarge, "file exceeds upload limit")
		return
	}
	content, err := io.ReadAll(io.LimitReader(file, maxBytes+1))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "failed to read file")
		return
	}
	if int64(len(content)) > maxBytes {
		s.respondError(w, http.StatusRequestEntityTooLarge, "file exceeds upload limit")
		return
	}

	id := r.URL.Query().Get("id")
	if id == "" {
		id = fileid.ContentDocID(content)
	}
	force, _ := strconv.ParseBool(r.URL.Query().Get("force"))
	s.logger.Debug("Upload document request",
		zap.String("doc_id", id),
		zap.String("filename", header.Filename),
		zap.Int("bytes", len(content)))

	out, err := s.pipeline.Ingest(r.Context(), &indexer.Job{
		DocumentID: id,
		Filename:   filepath.Base(header.Filename),
		Content:    content,
		Force:      force,
	})
	if err != nil {
		var stageErr *models.StageError
		if errors.As(err, &stageErr) && out != nil {
			s.respondJSON(w, http.StatusUnprocessableEntity, out)
			return
		}
		s.respondErr(w, err)
		return
	}
	status := http.StatusCreated
	if out.Skipped {
		status = http.StatusOK
	}
	s.respondJSON(w, status, out)
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	offset := queryInt(r, "offset", 0)
	limit := queryInt(r, "limit", defaultListLimit)
	if offset < 0 || limit < 1 || limit > maxListLimit {
		s.respondError(w, http.StatusBadRequest, "invalid offset or limit")
		return
	}
	docs, err := s.storage.ListDocuments(r.Context(), offset, limit)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	total, err := s.storage.CountDocuments(r.Context())
	if err != nil {
		s.respondErr(w, err)
		return
	}
	for _, d := range docs {
		d.Content = ""
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"documents": docs,
		"total":     total,
		"offset":    offset,
		"limit":     limit,
	})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.storage.GetDocument(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondErr(w, err)
		return
	}
	doc.Content = ""
	s.respondJSON(w, http.StatusOK, doc)
}

func (s *Server) handleDocumentContent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	content, err := s.engine.DocumentContent(r.Context(), id)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"document_id": id, "content": content})
}

func (s *Server) handleSimilarDocuments(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	similar, err := s.engine.FindSimilar(r.Context(), id, queryInt(r, "limit", 0))
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"document_id": id, "similar": similar})
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.logger.Debug("Delete document request", zap.String("doc_id", id))
	if err := s.pipeline.Delete(r.Context(), id); err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"document_id": id, "status": "deleted"})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var query models.SearchQuery
	if err := json.NewDecoder(r.Body).Decode(&query); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("Search request", zap.String("query", query.Query), zap.String("mode", string(query.Mode)))
	response, err := s.engine.Search(r.Context(), &query)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, response)
}

func (s *Server) handleSearchCitations(w http.ResponseWriter, r *http.Request) {
	citation := r.URL.Query().Get("citation")
	exact, _ := strconv.ParseBool(r.URL.Query().Get("exact"))
	results, err := s.engine.SearchCitations(r.Context(), citation, exact)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"citation": citation,
		"exact":    exact,
		"results":  results,
	})
}

func (s *Server) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	suggestions, err := s.engine.Suggestions(r.Context(), r.URL.Query().Get("q"), queryInt(r, "limit", 0))
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"suggestions": suggestions})
}

func (s *Server) handleFilters(w http.ResponseWriter, r *http.Request) {
	filters, err := s.engine.AvailableFilters(r.Context())
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, filters)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	docCount, err := s.storage.CountDocuments(ctx)
	if err != nil {
		s.logger.Error("Status: count documents failed", zap.Error(err))
		s.respondErr(w, err)
		return
	}
	byStatus, err := s.storage.CountDocumentsByStatus(ctx)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	chunkCount, err := s.storage.CountChunks(ctx)
	if err != nil {
		s.logger.Error("Status: count chunks failed", zap.Error(err))
		s.respondErr(w, err)
		return
	}
	resp := map[string]interface{}{
		"documents":           docCount,
		"documents_by_status": byStatus,
		"chunks":              chunkCount,
	}
	if s.vectors != nil {
		resp["vector_index_size"] = s.vectors.Size()
	}

	resp["config"] = map[string]interface{}{
		"embedding_provider":   s.config.Embedding.Provider,
		"embedding_dimensions": s.config.Embedding.Dimensions,
		"vector_backend":       s.config.Vector.Backend,
		"chunk_size":           s.config.Ingest.ChunkSize,
		"workers":              s.config.Ingest.Workers,
		"semantic_weight":      s.config.Search.SemanticWeight,
		"keyword_weight":       s.config.Search.KeywordWeight,
	}
	diskBytes, err := storage.DiskUsageBytes(
		s.config.Storage.DatabasePath,
		s.config.Storage.BleveIndexPath,
		s.config.Storage.VectorIndexPath,
	)
	if err == nil {
		resp["disk_usage_bytes"] = diskBytes
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrSearchFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondErr(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("Request failed", zap.Error(err))
	}
	s.respondError(w, status, err.Error())
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return -1
	}
	return n
}

func allowed(ext string, exts []string) bool {
	if len(exts) == 0 {
		return true
	}
	for _, e := range exts {
		if strings.EqualFold(strings.TrimPrefix(e, "."), strings.TrimPrefix(ext, ".")) {
			return true
		}
	}
	return false
}
