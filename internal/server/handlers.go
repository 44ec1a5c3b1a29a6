package server

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/TobiSchelling/moodtrack/internal/coach"
	"github.com/TobiSchelling/moodtrack/internal/database"
	"github.com/TobiSchelling/moodtrack/internal/ratings"
)

type checkinRequest struct {
	MoodScore   int    `json:"mood_score" binding:"required,min=1,max=5"`
	EnergyLevel string `json:"energy_level" binding:"required"`
	Notes       string `json:"notes"`
	Locale      string `json:"locale"`
}

type feedbackRequest struct {
	FeedbackScore int `json:"feedback_score" binding:"required,min=1,max=5"`
}

type traitsRequest struct {
	Traits database.Traits `json:"traits" binding:"required"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "provider": s.coach.ProviderName()})
}

func (s *Server) handleCheckin(c *gin.Context) {
	var body checkinRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	res, err := s.coach.CheckIn(c.Request.Context(), userID(c), coach.CheckinInput{
		Mood:   body.MoodScore,
		Energy: body.EnergyLevel,
		Notes:  body.Notes,
		Locale: body.Locale,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (s *Server) handleDirective(c *gin.Context) {
	dir, err := s.coach.GenerateAdviceDirective(c.Request.Context(), userID(c), c.Param("id"), c.Query("locale"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dir)
}

func (s *Server) handleFeedback(c *gin.Context) {
	var body feedbackRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	res, err := s.coach.SubmitFeedback(c.Request.Context(), userID(c), c.Param("id"), body.FeedbackScore)
	if err != nil {
		// The rating is stored; only the profile refresh failed.
		if res != nil && res.Stale {
			s.logger.Warn("serving stale rating profile", zap.String("user_id", userID(c)), zap.Error(err))
			c.JSON(http.StatusOK, res)
			return
		}
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleAnalytics(c *gin.Context) {
	res, err := s.coach.GetAnalytics(c.Request.Context(), userID(c), c.Query("range"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleExport(c *gin.Context) {
	var buf bytes.Buffer
	name, err := s.coach.ExportCSV(c.Request.Context(), userID(c), c.Query("range"), &buf)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

func (s *Server) handleStats(c *gin.Context) {
	res, err := s.coach.Stats(c.Request.Context(), userID(c))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleGetTraits(c *gin.Context) {
	traits, err := s.coach.Traits(c.Request.Context(), userID(c))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"traits": traits})
}

func (s *Server) handlePutTraits(c *gin.Context) {
	var body traitsRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	if err := s.coach.SetTraits(c.Request.Context(), userID(c), body.Traits); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleResetEnhancement(c *gin.Context) {
	if err := s.coach.ResetEnhancement(c.Request.Context(), userID(c)); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// writeError maps domain errors onto HTTP status codes.
func (s *Server) writeError(c *gin.Context, err error) {
	var (
		verr *coach.ValidationError
		derr *ratings.DependencyError
	)
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error(), "field": verr.Field})
	case errors.Is(err, coach.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, coach.ErrAdviceNotFound),
		errors.Is(err, coach.ErrCheckinNotFound),
		errors.Is(err, database.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, database.ErrAlreadyRated):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.As(err, &derr):
		s.logger.Error("dependency failure", zap.String("op", derr.Op), zap.Error(derr.Err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "rating store unavailable"})
	default:
		s.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
