package api

import (
	"net/http"

	"github.com/VictoriaMetrics/metrics"
	"github.com/gin-gonic/gin"

	"github.com/energizer-project/craftcon/internal/util"
)

// handlePing is the unauthenticated liveness check.
func (s *Server) handlePing(c *gin.Context) {
	ok(c, gin.H{
		"status":  "ok",
		"service": "craftcon",
	})
}

func (s *Server) handleVersion(c *gin.Context) {
	info := util.GetSystemInfo()
	ok(c, gin.H{
		"name":     "craftcon",
		"version":  s.version,
		"hostname": info.Hostname,
		"os":       info.OS,
	})
}

// handleMetrics exposes the process and console metrics in Prometheus
// text format.
func (s *Server) handleMetrics(c *gin.Context) {
	c.Header("Content-Type", "text/plain; version=0.0.4")
	c.Status(http.StatusOK)
	metrics.WritePrometheus(c.Writer, true)
}
