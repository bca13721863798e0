package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"catalog/internal/config"
	"catalog/internal/pipeline"
)

// Server exposes the pipeline over HTTP.
type Server struct {
	config     *config.Settings
	router     http.Handler
	httpServer *http.Server
	pipeline   *pipeline.Pipeline
	logger     *zap.Logger
}

func NewServer(cfg *config.Settings, p *pipeline.Pipeline, l *zap.Logger) *Server {
	s := &Server{
		config:   cfg,
		pipeline: p,
		logger:   l,
	}
	s.router = s.setupRouter()
	return s
}

func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%s", s.config.ServerPort),
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 5 * time.Minute, // a cold-cache fetch cycle can be slow
	}
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
