package api

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"catalog/internal/domain"
)

type itemsResponse struct {
	Count int                  `json:"count"`
	Items []domain.CatalogItem `json:"items"`
}

func (s *Server) handleItems(w http.ResponseWriter, r *http.Request) {
	items, err := s.pipeline.GetItems(r.Context())
	if err != nil {
		s.logger.Error("failed to get catalog items", zap.Error(err))
		s.respondWithError(w, http.StatusBadGateway, "Could not retrieve catalog")
		return
	}
	s.respondWithJSON(w, http.StatusOK, itemsResponse{Count: len(items), Items: items})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.pipeline.Invalidate()
	items, err := s.pipeline.GetItems(r.Context())
	if err != nil {
		s.logger.Error("forced refresh failed", zap.Error(err))
		s.respondWithError(w, http.StatusBadGateway, "Refresh failed")
		return
	}
	s.respondWithJSON(w, http.StatusOK, itemsResponse{Count: len(items), Items: items})
}

func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	s.respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) respondWithError(w http.ResponseWriter, code int, message string) {
	s.respondWithJSON(w, code, map[string]string{"error": message})
}

func (s *Server) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("failed to marshal JSON response", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
