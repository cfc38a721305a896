package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/energizer-project/craftcon/internal/config"
	"github.com/energizer-project/craftcon/internal/db"
	"github.com/energizer-project/craftcon/internal/events"
)

const redacted = "********"

// handleGetConfig returns the configuration with secrets masked.
func (s *Server) handleGetConfig(c *gin.Context) {
	rd := s.cfg.GetRconData()
	ad := s.cfg.GetApplicationData()
	if rd.Password != "" {
		rd.Password = redacted
	}
	if ad.MQTT.Password != "" {
		ad.MQTT.Password = redacted
	}
	if ad.Discord.WebhookURL != "" {
		ad.Discord.WebhookURL = redacted
	}
	ok(c, gin.H{
		"rcon_data":        rd,
		"application_data": ad,
	})
}

// handleSetSchedule replaces the scheduled commands. The running scheduler
// picks the new list up on restart.
func (s *Server) handleSetSchedule(c *gin.Context) {
	var schedule []config.ScheduledCommand
	if err := c.ShouldBindJSON(&schedule); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	ad := s.cfg.GetApplicationData()
	ad.Schedule = schedule

	candidate := config.DefaultConfig()
	candidate.SetRconData(s.cfg.GetRconData())
	candidate.SetApplicationData(ad)

	var problems []string
	for _, e := range config.Validate(candidate).Errors {
		if strings.HasPrefix(e.Field, "application_data.schedule") {
			problems = append(problems, e.Field+": "+e.Message)
		}
	}
	if len(problems) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "invalid schedule",
			"details": problems,
		})
		return
	}

	s.cfg.SetApplicationData(ad)
	if err := s.cfg.Save(); err != nil {
		fail(c, http.StatusInternalServerError, "failed to save config")
		return
	}

	s.eventBus.Emit(context.WithoutCancel(c.Request.Context()), events.Event{
		Type:   events.EventConfigChanged,
		Source: "api",
		Payload: events.ConfigChangedPayload{
			Section: "application_data",
			Key:     "schedule",
			Value:   len(schedule),
		},
	})

	log.Info().Str("by", tokenFrom(c).Label).Int("entries", len(schedule)).Msg("API: schedule updated")
	ok(c, gin.H{
		"schedule":         schedule,
		"restart_required": true,
	})
}

type createTokenRequest struct {
	Label string `json:"label"`
	Role  string `json:"role"`
}

func (s *Server) handleListTokens(c *gin.Context) {
	if s.tokens == nil {
		fail(c, http.StatusServiceUnavailable, "token store unavailable")
		return
	}
	tokens, err := s.tokens.ListTokens()
	if err != nil {
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	if tokens == nil {
		tokens = []db.Token{}
	}
	ok(c, tokens)
}

// handleCreateToken returns the secret once; only its hash is stored.
func (s *Server) handleCreateToken(c *gin.Context) {
	if s.tokens == nil {
		fail(c, http.StatusServiceUnavailable, "token store unavailable")
		return
	}
	var req createTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Label) == "" {
		fail(c, http.StatusBadRequest, "label is required")
		return
	}
	if req.Role == "" {
		req.Role = db.RoleViewer
	}

	tok, secret, err := s.tokens.CreateToken(req.Label, req.Role)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, db.ErrUnknownRole) {
			status = http.StatusBadRequest
		}
		fail(c, status, err.Error())
		return
	}

	log.Info().Str("by", tokenFrom(c).Label).Str("label", tok.Label).Msg("API: token created")
	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data": gin.H{
			"token":  tok,
			"secret": secret,
		},
	})
}

func (s *Server) handleRevokeToken(c *gin.Context) {
	if s.tokens == nil {
		fail(c, http.StatusServiceUnavailable, "token store unavailable")
		return
	}
	id := c.Param("id")
	if err := s.tokens.RevokeToken(id); err != nil {
		if errors.Is(err, db.ErrTokenNotFound) {
			fail(c, http.StatusNotFound, err.Error())
			return
		}
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	log.Info().Str("by", tokenFrom(c).Label).Str("id", id).Msg("API: token revoked")
	ok(c, gin.H{"id": id, "revoked": true})
}
