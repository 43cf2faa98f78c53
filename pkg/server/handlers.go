package server

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/entrhq/sessiond/pkg/action"
	"github.com/entrhq/sessiond/pkg/session"
)

// createSessionRequest is the payload for starting a login.
type createSessionRequest struct {
	UserID   string `json:"user_id" binding:"required"`
	SiteName string `json:"site_name" binding:"required"`
	LoginURL string `json:"login_url" binding:"required"`
}

// executeActionRequest is the payload for running an automated action.
type executeActionRequest struct {
	UserID     string         `json:"user_id" binding:"required"`
	SiteName   string         `json:"site_name" binding:"required"`
	ActionType string         `json:"action_type" binding:"required"`
	ActionData map[string]any `json:"action_data"`
}

func (s *Server) createSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	key, err := session.NewKey(req.UserID, req.SiteName)
	if err != nil {
		badRequest(c, err)
		return
	}

	result, err := s.manager.Create(key, req.LoginURL)
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":      "session_created",
		"message":     fmt.Sprintf("Browser session created for %s. Please complete login manually.", req.UserID),
		"session_dir": result.Dir,
		"next_step":   fmt.Sprintf("Call /confirm-login/%s/%s when login is complete", req.UserID, req.SiteName),
	})
}

func (s *Server) confirmLogin(c *gin.Context) {
	key, err := session.NewKey(c.Param("user_id"), c.Param("site_name"))
	if err != nil {
		badRequest(c, err)
		return
	}

	result, err := s.manager.Confirm(key)
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":        "login_confirmed",
		"message":       fmt.Sprintf("Session saved successfully for %s", key.User),
		"current_url":   result.CurrentURL,
		"session_saved": true,
	})
}

func (s *Server) executeAction(c *gin.Context) {
	var req executeActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	key, err := session.NewKey(req.UserID, req.SiteName)
	if err != nil {
		badRequest(c, err)
		return
	}

	result, err := s.dispatcher.Execute(key, req.ActionType, req.ActionData)
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":      "action_completed",
		"action_type": result.ActionType,
		"result":      result.Payload,
		"timestamp":   result.Timestamp.UTC().Format(time.RFC3339),
	})
}

func (s *Server) listSessions(c *gin.Context) {
	summaries, err := s.manager.List(c.Query("user_id"))
	if err != nil {
		s.fail(c, err)
		return
	}

	sessions := make([]gin.H, 0, len(summaries))
	for _, sum := range summaries {
		if sum.Corrupt {
			sessions = append(sessions, gin.H{
				"user_id":   sum.User,
				"site_name": sum.Site,
				"corrupt":   true,
			})
			continue
		}
		sessions = append(sessions, gin.H{
			"user_id":    sum.User,
			"site_name":  sum.Site,
			"created_at": sum.CreatedAt.UTC().Format(time.RFC3339),
			"last_used":  sum.LastUsed.UTC().Format(time.RFC3339),
			"is_valid":   sum.Valid,
			"is_expired": sum.Expired,
		})
	}

	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

func (s *Server) deleteSession(c *gin.Context) {
	key, err := session.NewKey(c.Param("user_id"), c.Param("site_name"))
	if err != nil {
		badRequest(c, err)
		return
	}

	deleted, err := s.manager.Delete(key)
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"code":  "bad_request",
		"error": err.Error(),
	})
}

// fail maps the core error taxonomy to distinct, stable status signals.
// The split between "never existed" (re-onboard) and "expired" (re-login)
// is preserved end to end.
func (s *Server) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	code := "internal_error"

	switch {
	case errors.Is(err, session.ErrLoginPending):
		status, code = http.StatusConflict, "login_pending"
	case errors.Is(err, session.ErrNoActiveSession):
		status, code = http.StatusNotFound, "no_active_session"
	case errors.Is(err, session.ErrSessionNotFound):
		status, code = http.StatusNotFound, "session_not_found"
	case errors.Is(err, session.ErrSessionExpired):
		status, code = http.StatusUnauthorized, "session_expired"
	case errors.Is(err, session.ErrCorruptMetadata):
		status, code = http.StatusInternalServerError, "corrupt_metadata"
	case errors.Is(err, session.ErrCreateFailed):
		status, code = http.StatusInternalServerError, "create_failed"
	case errors.Is(err, action.ErrUnknownAction):
		status, code = http.StatusBadRequest, "unknown_action"
	case errors.Is(err, action.ErrActionFailed):
		status, code = http.StatusBadGateway, "action_failed"
	}

	s.logger.Errorf("request failed with %s: %v", code, err)
	c.JSON(status, gin.H{
		"code":  code,
		"error": err.Error(),
	})
}
