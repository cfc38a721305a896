package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/energizer-project/craftcon/internal/util"
)

// handleHost returns the latest host sample, sampling now if the monitor
// has none yet.
func (s *Server) handleHost(c *gin.Context) {
	if s.monitor != nil {
		if stats, found := s.monitor.LatestHost(); found {
			ok(c, stats)
			return
		}
	}
	stats, err := util.SampleHostStats(".")
	if err != nil {
		fail(c, http.StatusInternalServerError, "failed to sample host: "+err.Error())
		return
	}
	ok(c, stats)
}

// handleSnapshot returns the monitor's cached server snapshot.
func (s *Server) handleSnapshot(c *gin.Context) {
	if s.monitor == nil {
		fail(c, http.StatusServiceUnavailable, "monitor not running")
		return
	}
	ok(c, s.monitor.Latest())
}

// handleSchedule returns the configured schedule with the last run of each
// entry.
func (s *Server) handleSchedule(c *gin.Context) {
	var runs interface{} = []struct{}{}
	if s.scheduler != nil {
		runs = s.scheduler.LastRuns()
	}
	ok(c, gin.H{
		"schedule":  s.cfg.GetApplicationData().Schedule,
		"last_runs": runs,
	})
}

// handleAudit returns recent console commands, newest first.
func (s *Server) handleAudit(c *gin.Context) {
	if s.tokens == nil {
		fail(c, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit < 1 || limit > 1000 {
		fail(c, http.StatusBadRequest, "limit must be between 1 and 1000")
		return
	}
	entries, err := s.tokens.RecentCommands(limit)
	if err != nil {
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	ok(c, entries)
}

// handleRunScheduled runs a configured schedule entry immediately.
func (s *Server) handleRunScheduled(c *gin.Context) {
	if s.scheduler == nil {
		fail(c, http.StatusServiceUnavailable, "scheduler not running")
		return
	}
	name := c.Param("name")
	for _, sc := range s.cfg.GetApplicationData().Schedule {
		if sc.Name == name {
			ok(c, s.scheduler.Run(c.Request.Context(), sc))
			return
		}
	}
	fail(c, http.StatusNotFound, "no scheduled command named "+strconv.Quote(name))
}
