package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/energizer-project/craftcon/internal/actions"
	"github.com/energizer-project/craftcon/internal/client"
	"github.com/energizer-project/craftcon/internal/events"
	"github.com/energizer-project/craftcon/internal/minecraft"
)

type commandRequest struct {
	Command string `json:"command"`
}

type playerRequest struct {
	PlayerName string `json:"playerName"`
}

type pluginRequest struct {
	Plugin string `json:"plugin"`
	Action string `json:"action"`
	Params string `json:"params"`
}

// handleServerInfo returns the server summary mapping.
func (s *Server) handleServerInfo(c *gin.Context) {
	ctx := c.Request.Context()

	var summary client.Summary
	err := client.WithSession(ctx, s.open, func(sess client.Session) error {
		summary = sess.ServerSummary(ctx)
		return nil
	})
	if err != nil {
		failErr(c, "failed to fetch server info", err)
		return
	}
	ok(c, summary)
}

// handleCommand runs one raw console command.
func (s *Server) handleCommand(c *gin.Context) {
	var req commandRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Command) == "" {
		fail(c, http.StatusBadRequest, "command is required")
		return
	}

	out, err := s.execute(c, req.Command, func(sess client.Session) (string, error) {
		return sess.Execute(c.Request.Context(), req.Command)
	})
	if err != nil {
		failErr(c, "failed to execute command", err)
		return
	}
	ok(c, out)
}

// handlePlayerInfo returns the per-player summary mapping.
func (s *Server) handlePlayerInfo(c *gin.Context) {
	var req playerRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.PlayerName) == "" {
		fail(c, http.StatusBadRequest, "player name is required")
		return
	}

	ctx := c.Request.Context()
	var summary client.Summary
	err := client.WithSession(ctx, s.open, func(sess client.Session) error {
		var err error
		summary, err = sess.PlayerSummary(ctx, req.PlayerName)
		return err
	})
	if err != nil {
		failErr(c, "failed to fetch player info", err)
		return
	}
	ok(c, summary)
}

// handlePlugin resolves and runs a plugin action.
func (s *Server) handlePlugin(c *gin.Context) {
	var req pluginRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Plugin == "" || req.Action == "" {
		fail(c, http.StatusBadRequest, "plugin and action are required")
		return
	}

	// Resolve before dialing so an unknown action never opens a session.
	command, err := actions.ResolveNamed(req.Plugin, req.Action, req.Params)
	if err != nil {
		failErr(c, "failed to execute plugin command", err)
		return
	}

	out, err := s.execute(c, command, func(sess client.Session) (string, error) {
		return sess.ResolveAction(c.Request.Context(), req.Plugin, req.Action, req.Params)
	})
	if err != nil {
		failErr(c, "failed to execute plugin command", err)
		return
	}
	ok(c, out)
}

// handlePlayers runs list and returns it parsed.
func (s *Server) handlePlayers(c *gin.Context) {
	ctx := c.Request.Context()

	var raw string
	err := client.WithSession(ctx, s.open, func(sess client.Session) error {
		var err error
		raw, err = sess.Execute(ctx, "list")
		return err
	})
	if err != nil {
		failErr(c, "failed to list players", err)
		return
	}
	ok(c, minecraft.ParsePlayerList(raw))
}

// handleActions lists the plugin action table.
func (s *Server) handleActions(c *gin.Context) {
	list := actions.List()
	out := make([]gin.H, 0, len(list))
	for _, t := range list {
		out = append(out, gin.H{
			"plugin":      t.Domain,
			"action":      t.Action,
			"template":    t.Format,
			"description": t.Description,
			"fixed":       t.Fixed(),
		})
	}
	ok(c, out)
}

// execute runs fn in its own session and publishes the outcome.
func (s *Server) execute(c *gin.Context, command string, fn func(client.Session) (string, error)) (string, error) {
	ctx := c.Request.Context()
	start := time.Now()

	var out string
	err := client.WithSession(ctx, s.open, func(sess client.Session) error {
		var err error
		out, err = fn(sess)
		return err
	})

	payload := events.CommandExecutedPayload{
		Command:   command,
		Origin:    "api",
		Output:    out,
		Duration:  time.Since(start),
		RequestID: c.GetString(ctxRequestID),
	}
	if tok := tokenFrom(c); tok != nil {
		payload.TokenLabel = tok.Label
	}
	if err != nil {
		payload.Error = err.Error()
	}
	s.eventBus.Emit(context.WithoutCancel(ctx), events.Event{
		Type:    events.EventCommandExecuted,
		Source:  "api",
		Payload: payload,
	})

	if err != nil {
		s.logger.Warn().Err(err).Str("command", command).Str("request_id", payload.RequestID).Msg("console command failed")
	} else {
		s.logger.Info().Str("command", command).Str("token", payload.TokenLabel).Msg("console command executed")
	}
	return out, err
}
