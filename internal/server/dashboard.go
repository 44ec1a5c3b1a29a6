package server

import (
	"github.com/gin-gonic/gin"

	"github.com/TobiSchelling/moodtrack/internal/database"
	"github.com/TobiSchelling/moodtrack/internal/logging"
)

var dashboardWindows = []database.Window{
	database.Window7Days, database.Window30Days, database.Window90Days, database.WindowAll,
}

func (s *Server) handleDashboard(c *gin.Context) {
	ctx := c.Request.Context()
	user := userID(c)

	analytics, err := s.coach.GetAnalytics(ctx, user, c.Query("range"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	stats, err := s.coach.Stats(ctx, user)
	if err != nil {
		s.writeError(c, err)
		return
	}
	recent, err := s.coach.RecentAdvice(ctx, user, 10)
	if err != nil {
		s.writeError(c, err)
		return
	}

	best, hasBest := analytics.Snapshot.BestEnergy()
	s.render(c, "dashboard.html", map[string]any{
		"User":      user,
		"Analytics": analytics,
		"Stats":     stats,
		"Advice":    recent,
		"Windows":   dashboardWindows,
		"Best":      best,
		"HasBest":   hasBest,
	})
}

func (s *Server) handleEvents(c *gin.Context) {
	user := userID(c)
	var events []logging.Entry
	if j := s.coach.Journal(); j != nil {
		events = j.ForUser(user, 100)
	}
	s.render(c, "events.html", map[string]any{
		"User":   user,
		"Events": events,
	})
}
