package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/kotaeru/internal/models"
	"github.com/hyperjump/kotaeru/internal/retrieval"
	"github.com/hyperjump/kotaeru/internal/storage"
	"github.com/hyperjump/kotaeru/internal/vectorstore"
)

func (s *Server) handleRetrieve(w http.ResponseWriter, r *http.Request) {
	var req models.RetrieveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.normalizeRetrieve(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Debug("retrieve request", zap.String("query", req.Query), zap.Int("k", req.K))

	start := time.Now()
	fused, err := s.retriever.RetrieveFused(r.Context(), req)
	if err != nil {
		if errors.Is(err, retrieval.ErrEmptyStore) {
			s.respondError(w, http.StatusNotFound, "no documents indexed")
			return
		}
		s.logger.Error("retrieve failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, &models.RetrieveResponse{
		Results:   fused.Results,
		Total:     len(fused.Results),
		Variants:  fused.Variants,
		Degraded:  fused.Degraded,
		QueryTime: time.Since(start).Milliseconds(),
		Query:     req.Query,
	})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	if s.answerer == nil {
		s.respondError(w, http.StatusServiceUnavailable, "LLM is not configured")
		return
	}
	var req models.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	rreq, err := s.queryRetrieval(&req)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Debug("query request", zap.String("query", rreq.Query), zap.Int("k", rreq.K))

	start := time.Now()
	fused, err := s.retriever.RetrieveFused(r.Context(), rreq)
	if err != nil {
		if errors.Is(err, retrieval.ErrEmptyStore) {
			s.respondError(w, http.StatusNotFound, "no documents indexed")
			return
		}
		s.logger.Error("retrieve failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if len(fused.Results) == 0 {
		s.respondError(w, http.StatusNotFound, "no relevant chunks found")
		return
	}

	answer, err := s.answerer.Answer(r.Context(), req.Query, fused.Results)
	if err != nil {
		s.logger.Error("answer generation failed", zap.Error(err))
		s.respondError(w, http.StatusServiceUnavailable, "LLM is unavailable")
		return
	}

	s.respondJSON(w, http.StatusOK, &models.QueryResponse{
		Answer:    answer,
		Sources:   fused.Results,
		Degraded:  fused.Degraded,
		QueryTime: time.Since(start).Milliseconds(),
	})
}

// normalizeRetrieve applies the configured retrieval defaults, or the
// package defaults when the server carries no config.
func (s *Server) normalizeRetrieve(req *models.RetrieveRequest) error {
	if s.config != nil {
		return s.config.Retrieval.Normalize(req)
	}
	return req.Validate()
}

// queryRetrieval maps an answer request onto retrieval parameters. The
// answer endpoint exposes a single k, so the per-variant cap follows it.
func (s *Server) queryRetrieval(req *models.QueryRequest) (models.RetrieveRequest, error) {
	rreq := models.RetrieveRequest{
		Query:         req.Query,
		K:             req.K,
		MinScore:      req.MinScore,
		NumVariations: req.NumVariations,
	}
	if err := s.normalizeRetrieve(&rreq); err != nil {
		return models.RetrieveRequest{}, err
	}
	rreq.KPerQuery = rreq.K
	return rreq, nil
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stats := s.retriever.Stats()
	resp := map[string]interface{}{
		"vectors":       stats.NumVectors,
		"embedding_dim": stats.EmbeddingDim,
		"metric":        string(stats.Metric),
		"llm_enabled":   s.answerer != nil,
	}

	if s.registry != nil {
		if docCount, err := s.registry.CountDocuments(ctx); err == nil {
			resp["documents"] = docCount
		}
		if chunkCount, err := s.registry.CountChunks(ctx); err == nil {
			resp["chunks"] = chunkCount
		}
	}
	if s.config != nil {
		resp["config"] = map[string]interface{}{
			"store_path":    s.config.Store.BasePath,
			"database_path": s.config.Store.DatabasePath,
			"chunk_size":    s.config.Ingest.ChunkSize,
			"chunk_overlap": s.config.Ingest.ChunkOverlap,
			"provider":      s.config.Embedding.Provider,
		}
		paths := append(vectorstore.Files(s.config.Store.BasePath), s.config.Store.DatabasePath)
		if diskBytes, err := storage.DiskUsageBytes(paths...); err == nil {
			resp["disk_usage_bytes"] = diskBytes
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	if s.registry == nil {
		s.respondError(w, http.StatusNotImplemented, "document registry not enabled")
		return
	}
	docs, err := s.registry.ListDocuments(r.Context(), 0, 1000)
	if err != nil {
		s.logger.Error("list documents failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if docs == nil {
		docs = []*models.Document{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"documents": docs,
		"total":     len(docs),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
