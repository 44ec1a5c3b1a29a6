package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TobiSchelling/moodtrack/internal/coach"
	"github.com/TobiSchelling/moodtrack/internal/config"
	"github.com/TobiSchelling/moodtrack/internal/database"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Analytics.Timezone = "UTC"
	cfg.Server.JWTSecretEnv = ""
	return cfg
}

func newTestServer(t *testing.T, cfg *config.Config) (*Server, *database.DB) {
	t.Helper()
	db := openTestDB(t)
	co, err := coach.New(cfg, db, coach.WithProvider(nil))
	require.NoError(t, err)
	srv, err := New(co, cfg, nil)
	require.NoError(t, err)
	return srv, db
}

func do(t *testing.T, srv *Server, method, path, body string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

type checkinResponse struct {
	Checkin database.Checkin `json:"checkin"`
	Advice  struct {
		Advice   database.Advice `json:"advice"`
		Fallback bool            `json:"fallback"`
	} `json:"advice"`
}

func checkIn(t *testing.T, srv *Server, body string, header ...string) checkinResponse {
	t.Helper()
	rec := do(t, srv, "POST", "/api/checkins", body, header...)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var res checkinResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	return res
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t, testConfig())
	rec := do(t, srv, "GET", "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestCheckinValidation(t *testing.T) {
	srv, _ := newTestServer(t, testConfig())

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"mood_score":`},
		{"mood out of range", `{"mood_score":6,"energy_level":"Low"}`},
		{"missing energy", `{"mood_score":3}`},
		{"unknown energy", `{"mood_score":3,"energy_level":"sleepy"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, srv, "POST", "/api/checkins", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}
}

func TestCheckinAndFeedback(t *testing.T) {
	srv, db := newTestServer(t, testConfig())

	res := checkIn(t, srv, `{"mood_score":2,"energy_level":"Low","notes":"tired"}`)
	assert.Equal(t, "local", res.Checkin.UserID)
	assert.True(t, res.Advice.Fallback)
	adviceID := res.Advice.Advice.ID
	require.NotEmpty(t, adviceID)

	rec := do(t, srv, "POST", "/api/advice/"+adviceID+"/feedback", `{"feedback_score":0}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, srv, "POST", "/api/advice/"+adviceID+"/feedback", `{"feedback_score":4}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var fb coach.FeedbackResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fb))
	assert.Equal(t, 1, fb.Profile.TotalRatings)
	assert.Equal(t, 4.0, fb.Profile.AverageRating)
	assert.False(t, fb.NeedsEnhancement)

	rec = do(t, srv, "POST", "/api/advice/"+adviceID+"/feedback", `{"feedback_score":5}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, srv, "POST", "/api/advice/missing/feedback", `{"feedback_score":5}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	stored, err := db.GetAdvice(t.Context(), adviceID)
	require.NoError(t, err)
	require.NotNil(t, stored.FeedbackScore)
	assert.Equal(t, 4, *stored.FeedbackScore)
}

func TestDirectiveRoute(t *testing.T) {
	srv, _ := newTestServer(t, testConfig())
	res := checkIn(t, srv, `{"mood_score":4,"energy_level":"High","notes":"great run"}`)

	rec := do(t, srv, "GET", "/api/checkins/"+res.Checkin.ID+"/directive?locale=ja", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"locale":"ja"`)
	assert.Contains(t, rec.Body.String(), "great run")

	rec = do(t, srv, "GET", "/api/checkins/nope/directive", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAnalyticsRoute(t *testing.T) {
	srv, _ := newTestServer(t, testConfig())
	checkIn(t, srv, `{"mood_score":3,"energy_level":"Mid"}`)

	rec := do(t, srv, "GET", "/api/analytics?range=7d", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var res struct {
		Range string `json:"range"`
		Data  struct {
			Summary struct {
				TotalCheckins int     `json:"total_checkins"`
				AverageMood   float64 `json:"average_mood"`
			} `json:"summary"`
			WeeklyPattern []json.RawMessage `json:"weekly_pattern"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "7d", res.Range)
	assert.Equal(t, 1, res.Data.Summary.TotalCheckins)
	assert.Equal(t, 3.0, res.Data.Summary.AverageMood)
	assert.Len(t, res.Data.WeeklyPattern, 7)

	rec = do(t, srv, "GET", "/api/analytics?range=1y", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"field":"range"`)
}

func TestExportRoute(t *testing.T) {
	srv, _ := newTestServer(t, testConfig())
	checkIn(t, srv, `{"mood_score":3,"energy_level":"Mid","notes":"ok"}`)

	rec := do(t, srv, "GET", "/api/analytics/export?range=all", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "moodtrack-all-")
	assert.True(t, strings.HasPrefix(rec.Body.String(), "date,mood_score,energy_level"))
}

func TestTraitsRoutes(t *testing.T) {
	srv, _ := newTestServer(t, testConfig())

	rec := do(t, srv, "PUT", "/api/traits", `{"traits":{"openness":150}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, srv, "PUT", "/api/traits", `{"traits":{"openness":70,"neuroticism":40}}`)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = do(t, srv, "GET", "/api/traits", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"traits":{"openness":70,"neuroticism":40}}`, rec.Body.String())
}

func TestStatsRoute(t *testing.T) {
	srv, _ := newTestServer(t, testConfig())
	checkIn(t, srv, `{"mood_score":3,"energy_level":"Mid"}`)

	rec := do(t, srv, "GET", "/api/stats", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"total_checkins":1`)
	assert.Contains(t, rec.Body.String(), `"needs_enhancement":false`)
}

func TestResetEnhancementWithoutProfile(t *testing.T) {
	srv, _ := newTestServer(t, testConfig())
	rec := do(t, srv, "POST", "/api/enhancement/reset", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDashboard(t *testing.T) {
	srv, _ := newTestServer(t, testConfig())
	checkIn(t, srv, `{"mood_score":5,"energy_level":"High"}`)

	rec := do(t, srv, "GET", "/", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := rec.Body.String()
	assert.Contains(t, body, "Last 30 days")
	assert.Contains(t, body, "Weekly pattern")
	assert.Contains(t, body, "positive_reinforcement")

	rec = do(t, srv, "GET", "/events", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Adaptation events")
}

func TestStaticRoute(t *testing.T) {
	srv, _ := newTestServer(t, testConfig())
	rec := do(t, srv, "GET", "/static/style.css", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "font-family")
}

func TestCORSPreflight(t *testing.T) {
	srv, _ := newTestServer(t, testConfig())
	rec := do(t, srv, "OPTIONS", "/api/checkins", "",
		"Origin", "http://localhost:3000",
		"Access-Control-Request-Method", "POST",
	)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
}

func signToken(t *testing.T, secret, subject string, method jwt.SigningMethod) string {
	t.Helper()
	tok := jwt.NewWithClaims(method, jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	s, err := tok.SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func TestJWTAuthentication(t *testing.T) {
	t.Setenv("MOODTRACK_TEST_SECRET", "s3cret")
	cfg := testConfig()
	cfg.Server.JWTSecretEnv = "MOODTRACK_TEST_SECRET"
	srv, _ := newTestServer(t, cfg)

	rec := do(t, srv, "GET", "/api/stats", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, srv, "GET", "/api/stats", "", "Authorization", "Bearer "+signToken(t, "wrong", "alice", jwt.SigningMethodHS256))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, srv, "GET", "/api/stats", "", "Authorization", "Bearer "+signToken(t, "s3cret", "", jwt.SigningMethodHS256))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, srv, "GET", "/api/stats", "", "Authorization", "Bearer "+signToken(t, "s3cret", "alice", jwt.SigningMethodHS384))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	alice := "Bearer " + signToken(t, "s3cret", "alice", jwt.SigningMethodHS256)
	bob := "Bearer " + signToken(t, "s3cret", "bob", jwt.SigningMethodHS256)

	res := checkIn(t, srv, `{"mood_score":3,"energy_level":"Mid"}`, "Authorization", alice)
	assert.Equal(t, "alice", res.Checkin.UserID)

	rec = do(t, srv, "POST", "/api/advice/"+res.Advice.Advice.ID+"/feedback", `{"feedback_score":3}`, "Authorization", bob)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, srv, "POST", "/api/advice/"+res.Advice.Advice.ID+"/feedback", `{"feedback_score":3}`, "Authorization", alice)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, srv, "GET", "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
