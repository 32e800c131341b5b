package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/DoyleJ11/arena-backend/internal/hub"
	"github.com/DoyleJ11/arena-backend/internal/room"
	"github.com/DoyleJ11/arena-backend/internal/store"
)

func newRouter(t *testing.T) (http.Handler, *store.Memory) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	rec := store.NewMemory()
	cfg := room.Config{TickHz: 30, BroadcastEvery: 3, MinPlayers: 2, MaxPlayers: 4, Manual: true}
	h := hub.NewHub(ctx, cfg, rec, zaptest.NewLogger(t))
	return SetupRoutes(h, rec, "Room1", zaptest.NewLogger(t)), rec
}

func TestGenerateCode(t *testing.T) {
	code, err := GenerateCode()
	require.NoError(t, err)
	assert.Regexp(t, `^[A-Z0-9]{6}$`, code)
}

func TestCreateRoomThenList(t *testing.T) {
	router, _ := newRouter(t)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/rooms", nil))
	require.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var created struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&created))
	assert.Len(t, created.Code, 6)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/rooms", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var listed struct {
		Rooms []string `json:"rooms"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&listed))
	assert.Equal(t, []string{created.Code}, listed.Rooms)
}

func TestListMatches(t *testing.T) {
	router, rec := newRouter(t)
	ended := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, rec.RecordMatch(context.Background(), store.MatchResult{Room: "Room1", Winner: "p0002", WinnerName: "bob", Players: 3, EndedAt: ended}))
	require.NoError(t, rec.RecordMatch(context.Background(), store.MatchResult{Room: "OTHER1", Winner: "p0001", EndedAt: ended}))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/rooms/Room1/matches", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		Matches []store.MatchResult `json:"matches"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	require.Len(t, body.Matches, 1)
	assert.Equal(t, "bob", body.Matches[0].WinnerName)
	assert.Equal(t, 3, body.Matches[0].Players)
}

func TestListMatches_BadLimit(t *testing.T) {
	router, _ := newRouter(t)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/rooms/Room1/matches?limit=-3", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHealthz(t *testing.T) {
	router, _ := newRouter(t)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}
