package analytics

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/TobiSchelling/moodtrack/internal/database"
)

var csvHeader = []string{"date", "mood_score", "energy_level", "notes", "advice", "feedback_score"}

// WriteCSV writes one row per check-in, dates in loc. Missing notes, advice
// and feedback are written as empty cells.
func WriteCSV(w io.Writer, pairs []database.CheckinWithAdvice, loc *time.Location) error {
	if loc == nil {
		loc = time.Local
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}

	for _, p := range pairs {
		var notes, advice, score string
		if p.Notes != nil {
			notes = *p.Notes
		}
		if p.Advice != nil {
			advice = p.Advice.Text
			if p.Advice.Rated() {
				score = strconv.Itoa(*p.Advice.FeedbackScore)
			}
		}
		row := []string{
			p.CreatedAt.In(loc).Format(time.RFC3339),
			strconv.Itoa(p.MoodScore),
			string(p.EnergyLevel),
			notes,
			advice,
			score,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing csv row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// ExportFilename names an export of window taken at now.
func ExportFilename(window database.Window, now time.Time) string {
	return fmt.Sprintf("moodtrack-%s-%s.csv", window, now.Format("2006-01-02"))
}
