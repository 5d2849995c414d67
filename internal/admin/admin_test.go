package admin_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skirmish-gg/skirmish/internal/admin"
	"github.com/skirmish-gg/skirmish/internal/testutil"
)

type fakeStats struct {
	conns     int
	connsErr  error
	sessions  int
	simple    int
	ranked    int
	pending   int
	completed int
}

func (f *fakeStats) ConnCount(ctx context.Context) (int, error) { return f.conns, f.connsErr }
func (f *fakeStats) SessionCount() int                          { return f.sessions }
func (f *fakeStats) SimpleQueueLen() int                        { return f.simple }
func (f *fakeStats) RankedQueueLen() int                        { return f.ranked }
func (f *fakeStats) PendingContests() int                       { return f.pending }
func (f *fakeStats) CompletedContests() int                     { return f.completed }

func doRequest(t *testing.T, stats *fakeStats, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	h := admin.NewHandler(stats, testutil.NopLogger())
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	h.Router().ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	rec := doRequest(t, &fakeStats{}, http.MethodGet, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestStatusz(t *testing.T) {
	stats := &fakeStats{
		conns:     4,
		sessions:  3,
		simple:    2,
		ranked:    1,
		pending:   5,
		completed: 6,
	}
	rec := doRequest(t, stats, http.MethodGet, "/statusz")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]int
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, map[string]int{
		"connections":        4,
		"sessions":           3,
		"simple_queue":       2,
		"ranked_queue":       1,
		"pending_contests":   5,
		"completed_contests": 6,
	}, body)
}

func TestStatuszReactorUnavailable(t *testing.T) {
	stats := &fakeStats{connsErr: errors.New("reactor stopped")}
	rec := doRequest(t, stats, http.MethodGet, "/statusz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	rec := doRequest(t, &fakeStats{}, http.MethodPost, "/healthz")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
