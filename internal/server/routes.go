package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) RegisterRoutes() http.Handler {
	e := echo.New()
	e.HideBanner = true
	if s.httpLog {
		e.Use(middleware.Logger())
	}
	e.Use(middleware.Recover())

	e.GET("/healthcheck", s.HealthCheckHandler)
	e.GET("/reading", s.ReadingHandler)
	if s.stats != nil {
		e.GET("/stats", s.StatsHandler)
	}
	if s.gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}

	return e
}

func (s *Server) HealthCheckHandler(c echo.Context) error {
	if s.healthy == nil || s.healthy() {
		return c.String(http.StatusOK, "health_check: OK")
	}
	return c.String(http.StatusServiceUnavailable, "health_check: FAIL")
}

// ReadingHandler returns the last reading, or 204 before the first one.
func (s *Server) ReadingHandler(c echo.Context) error {
	if s.latest == nil {
		return c.NoContent(http.StatusNoContent)
	}
	env, ok := s.latest.Get()
	if !ok {
		return c.NoContent(http.StatusNoContent)
	}
	return c.JSON(http.StatusOK, env)
}

type statsResponse struct {
	Bytes     uint64 `json:"bytes"`
	Frames    uint64 `json:"frames"`
	Overflows uint64 `json:"overflows"`
	Dropped   uint64 `json:"dropped"`
	Decoded   uint64 `json:"decoded"`
	Readings  uint64 `json:"readings"`
	Captured  uint64 `json:"captured"`
}

func (s *Server) StatsHandler(c echo.Context) error {
	st := s.stats()
	return c.JSON(http.StatusOK, statsResponse(st))
}
