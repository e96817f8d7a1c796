package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"p1dlms/internal/config"
	"p1dlms/internal/pipeline"
	"p1dlms/internal/sink"
)

type Server struct {
	port     uint
	httpLog  bool
	latest   *sink.Latest
	gatherer prometheus.Gatherer
	stats    func() pipeline.Stats
	healthy  func() bool
}

type Deps struct {
	Latest   *sink.Latest
	Gatherer prometheus.Gatherer
	Stats    func() pipeline.Stats
	Healthy  func() bool
}

func NewServer(cfg config.HTTPConfig, deps Deps) *http.Server {
	NewServer := &Server{
		port:     cfg.Port,
		httpLog:  cfg.Log,
		latest:   deps.Latest,
		gatherer: deps.Gatherer,
		stats:    deps.Stats,
		healthy:  deps.Healthy,
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", NewServer.port),
		Handler:      NewServer.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return server
}
