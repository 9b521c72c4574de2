package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/itbasis/go-clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/turfwar-server/internal/auth"
	"github.com/turfwar-server/internal/config"
	"github.com/turfwar-server/internal/domain"
	"github.com/turfwar-server/internal/notify"
	"github.com/turfwar-server/internal/notify/mocknotify"
	"github.com/turfwar-server/internal/service"
	"github.com/turfwar-server/internal/testutil"
	"github.com/turfwar-server/internal/web"
	"github.com/turfwar-server/internal/websocket"
)

var (
	organizer = domain.Identity{ID: "org-1", Name: "Olivia", Role: domain.RoleOrganizer}
	stranger  = domain.Identity{ID: "org-2", Name: "Sam", Role: domain.RoleOrganizer}
	asha      = domain.Identity{ID: "user-1", Name: "Asha", Role: "participant"}
)

type testServer struct {
	router     http.Handler
	handler    *Handler
	store      *testutil.MemStore
	dispatcher *mocknotify.Dispatcher
	verifier   *auth.Verifier
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.DefaultConfig()
	cfg.Auth.JWTSecret = "handler-test-secret"

	clk := clock.NewMock()
	clk.Set(time.Date(2026, 3, 14, 18, 30, 0, 0, time.UTC))

	store := testutil.NewMemStore()
	dispatcher := &mocknotify.Dispatcher{}
	renderer := web.NewRenderer()
	verifier := auth.NewVerifier(&cfg.Auth)

	matches := service.NewMatchService(store, nil, nil, &cfg.Store, clk, logger)
	finance := service.NewFinanceService(store, store, nil, dispatcher, renderer, nil, &cfg.Payment, clk, logger)
	h := NewHandler(matches, finance, websocket.NewHub(logger), renderer, verifier, &cfg.Server, logger)

	store.PutUser(domain.User{ID: organizer.ID, Name: "Olivia", Email: "olivia@example.com", Role: domain.RoleOrganizer, UPIID: "olivia@okaxis"})
	store.PutUser(domain.User{ID: asha.ID, Name: "Asha", Email: "asha@example.com", Role: "participant"})
	store.PutMatch(domain.Match{
		ID:            "m1",
		Title:         "Sunday Smash",
		TurfName:      "Green Arena",
		Date:          time.Date(2026, 3, 16, 7, 0, 0, 0, time.UTC),
		CostPerHour:   500,
		DurationHours: 1,
		CreatedBy:     organizer.ID,
		Players: []domain.Player{
			{ID: "pA", UserID: strPtr(asha.ID), Name: "Asha", Role: "Batter", PaymentStatus: domain.PaymentPending},
			{ID: "pB", Name: "Ravi", IsGuest: true, Role: "Bowler", PaymentStatus: domain.PaymentPending},
		},
	})

	return &testServer{
		router:     h.Router(),
		handler:    h,
		store:      store,
		dispatcher: dispatcher,
		verifier:   verifier,
	}
}

func strPtr(s string) *string { return &s }

func (s *testServer) token(t *testing.T, id domain.Identity) string {
	t.Helper()
	tok, err := s.verifier.Issue(id, time.Hour)
	require.NoError(t, err)
	return tok
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}, as *domain.Identity) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if as != nil {
		req.Header.Set("x-auth-token", s.token(t, *as))
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decodeMatch(t *testing.T, rec *httptest.ResponseRecorder) domain.Match {
	t.Helper()
	var m domain.Match
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&m))
	return m
}

func decodeMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	msg, _ := body["message"].(string)
	return msg
}

func TestListMatchesIsPublic(t *testing.T) {
	s := newTestServer(t)
	s.store.PutMatch(domain.Match{ID: "m0", Title: "Early", Date: time.Date(2026, 3, 15, 7, 0, 0, 0, time.UTC), CreatedBy: organizer.ID})

	rec := s.do(t, http.MethodGet, "/api/matches", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var matches []domain.Match
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&matches))
	require.Len(t, matches, 2)
	assert.Equal(t, "m0", matches[0].ID)
	assert.Equal(t, "m1", matches[1].ID)
}

func TestGetMatch(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/matches/m1", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Sunday Smash", decodeMatch(t, rec).Title)

	rec = s.do(t, http.MethodGet, "/api/matches/missing", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Match not found", decodeMessage(t, rec))
}

func TestMutationsRequireToken(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/matches", map[string]string{"title": "x"}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "No token, authorization denied", decodeMessage(t, rec))

	req := httptest.NewRequest(http.MethodPost, "/api/matches/m1/join", nil)
	req.Header.Set("x-auth-token", "not-a-token")
	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Token is not valid", decodeMessage(t, rec))
}

func TestCreateMatch(t *testing.T) {
	s := newTestServer(t)
	body := map[string]interface{}{
		"title":         "Friday Night",
		"turfName":      "Turf 7",
		"date":          "2026-03-20T19:00:00Z",
		"costPerHour":   1200,
		"durationHours": 2,
	}

	rec := s.do(t, http.MethodPost, "/api/matches", body, &asha)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Access Denied", decodeMessage(t, rec))

	rec = s.do(t, http.MethodPost, "/api/matches", body, &organizer)
	require.Equal(t, http.StatusOK, rec.Code)
	m := decodeMatch(t, rec)
	assert.Equal(t, organizer.ID, m.CreatedBy)
	assert.Equal(t, float64(1200), m.CostPerHour)
	assert.False(t, m.Result.IsCompleted)
}

func TestJoinMatch(t *testing.T) {
	s := newTestServer(t)
	bob := domain.Identity{ID: "user-9", Name: "Bob", Role: "participant"}

	rec := s.do(t, http.MethodPost, "/api/matches/m1/join", map[string]interface{}{"skill": 6}, &bob)
	require.Equal(t, http.StatusOK, rec.Code)
	m := decodeMatch(t, rec)
	require.Len(t, m.Players, 3)
	assert.Equal(t, "Bob", m.Players[2].Name)
	assert.Equal(t, domain.DefaultPlayerRole, m.Players[2].Role)

	rec = s.do(t, http.MethodPost, "/api/matches/m1/join", nil, &bob)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Already joined", decodeMessage(t, rec))
	assert.Len(t, s.store.Match("m1").Players, 3)

	rec = s.do(t, http.MethodPost, "/api/matches/nope/join", nil, &bob)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAddComment(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/matches/m1/comment", map[string]string{"text": "see you there"}, &asha)
	require.Equal(t, http.StatusOK, rec.Code)
	m := decodeMatch(t, rec)
	require.Len(t, m.Comments, 1)
	assert.Equal(t, "Asha", m.Comments[0].User)
}

func TestOwnerOnlyRoutes(t *testing.T) {
	tests := map[string]struct {
		method      string
		path        string
		body        interface{}
		wantStatus  int
		wantMessage string
	}{
		"update details": {
			method: http.MethodPut, path: "/api/matches/m1", body: map[string]string{"title": "mine now"},
			wantStatus: http.StatusUnauthorized, wantMessage: "Not authorized to edit this match",
		},
		"finalize": {
			method: http.MethodPut, path: "/api/matches/m1/score", body: map[string]string{"winner": "A"},
			wantStatus: http.StatusForbidden, wantMessage: "Only organizer can finalize match",
		},
		"payment": {
			method: http.MethodPut, path: "/api/matches/m1/payment", body: map[string]string{"playerId": "pA", "status": "Paid"},
			wantStatus: http.StatusForbidden, wantMessage: "Only organizer can manage money",
		},
		"guest": {
			method: http.MethodPost, path: "/api/matches/m1/guest", body: map[string]string{"name": "x"},
			wantStatus: http.StatusForbidden, wantMessage: "Only organizer can add guests",
		},
		"remind": {
			method: http.MethodPost, path: "/api/finance/remind", body: map[string]string{"matchId": "m1", "playerId": "pA"},
			wantStatus: http.StatusForbidden, wantMessage: "Unauthorized",
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			s := newTestServer(t)
			before := s.store.Match("m1")

			rec := s.do(t, tc.method, tc.path, tc.body, &stranger)
			assert.Equal(t, tc.wantStatus, rec.Code)
			assert.Equal(t, tc.wantMessage, decodeMessage(t, rec))
			assert.Equal(t, before, s.store.Match("m1"))
			s.dispatcher.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
		})
	}
}

func TestUpdateMatch(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPut, "/api/matches/m1", map[string]interface{}{"turfName": "Blue Dome", "costPerHour": 0}, &organizer)
	require.Equal(t, http.StatusOK, rec.Code)
	m := decodeMatch(t, rec)
	assert.Equal(t, "Blue Dome", m.TurfName)
	assert.Equal(t, "Sunday Smash", m.Title)
	assert.Equal(t, float64(500), m.CostPerHour)

	rec = s.do(t, http.MethodPut, "/api/matches/missing", map[string]string{"title": "x"}, &organizer)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateMatchIgnoresBlankFormFields(t *testing.T) {
	s := newTestServer(t)
	before := s.store.Match("m1")

	rec := s.do(t, http.MethodPut, "/api/matches/m1", `{"title":"Sunday Smash Redux","date":"","costPerHour":"","durationHours":null}`, &organizer)
	require.Equal(t, http.StatusOK, rec.Code)

	m := decodeMatch(t, rec)
	assert.Equal(t, "Sunday Smash Redux", m.Title)
	assert.True(t, before.Date.Equal(m.Date))
	assert.Equal(t, before.CostPerHour, m.CostPerHour)
	assert.Equal(t, before.DurationHours, m.DurationHours)
}

func TestCreateMatchAcceptsFormDates(t *testing.T) {
	tests := map[string]struct {
		date string
		want time.Time
	}{
		"rfc3339":        {date: "2026-03-20T19:00:00Z", want: time.Date(2026, 3, 20, 19, 0, 0, 0, time.UTC)},
		"datetime-local": {date: "2026-03-20T19:00", want: time.Date(2026, 3, 20, 19, 0, 0, 0, time.UTC)},
		"plain date":     {date: "2026-03-20", want: time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC)},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			s := newTestServer(t)
			body := map[string]interface{}{"title": "Friday Night", "date": tc.date, "costPerHour": "900", "durationHours": 1}

			rec := s.do(t, http.MethodPost, "/api/matches", body, &organizer)
			require.Equal(t, http.StatusOK, rec.Code)
			m := decodeMatch(t, rec)
			assert.True(t, tc.want.Equal(m.Date), "got %v", m.Date)
			assert.Equal(t, float64(900), m.CostPerHour)
		})
	}
}

func TestFinalizeResult(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPut, "/api/matches/m1/score", map[string]string{"winner": "Team A", "score": "3-1"}, &organizer)
	require.Equal(t, http.StatusOK, rec.Code)
	m := decodeMatch(t, rec)
	assert.True(t, m.Result.IsCompleted)
	assert.Equal(t, "Team A", m.Result.Winner)

	rec = s.do(t, http.MethodPut, "/api/matches/m1/score", map[string]string{"winner": "Team B", "score": "0-0"}, &organizer)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Match already completed", decodeMessage(t, rec))
	assert.Equal(t, "Team A", s.store.Match("m1").Result.Winner)
}

func TestTogglePayment(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPut, "/api/matches/m1/payment", map[string]string{"playerId": "pA", "status": "Paid"}, &organizer)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/matches/m1", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	m := decodeMatch(t, rec)
	assert.Equal(t, domain.PaymentPaid, m.FindPlayer("pA").PaymentStatus)
	assert.Equal(t, domain.PaymentPending, m.FindPlayer("pB").PaymentStatus)

	rec = s.do(t, http.MethodPut, "/api/matches/m1/payment", map[string]string{"playerId": "ghost", "status": "Paid"}, &organizer)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Player not found", decodeMessage(t, rec))
}

func TestAddGuest(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/matches/m1/guest", map[string]string{"name": "Kiran", "email": "kiran@example.com"}, &organizer)
	require.Equal(t, http.StatusOK, rec.Code)
	m := decodeMatch(t, rec)
	require.Len(t, m.Players, 3)
	assert.True(t, m.Players[2].IsGuest)
	assert.Nil(t, m.Players[2].UserID)
	assert.Equal(t, domain.DefaultPlayerRole, m.Players[2].Role)
}

func TestMalformedBody(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/matches/m1/comment", "{not json", &asha)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid request", decodeMessage(t, rec))
}

func TestSendReminder(t *testing.T) {
	s := newTestServer(t)

	var sent notify.Email
	s.dispatcher.On("Send", mock.Anything, mock.AnythingOfType("notify.Email")).
		Run(func(args mock.Arguments) { sent = args.Get(1).(notify.Email) }).
		Return(nil).Once()

	raw, err := json.Marshal(domain.ReminderRequest{MatchID: "m1", PlayerID: "pA"})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/finance/remind", bytes.NewReader(raw))
	req.Header.Set("Authorization", "Bearer "+s.token(t, organizer))
	req.Header.Set("X-Forwarded-Proto", "https")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Reminder sent successfully", decodeMessage(t, rec))
	s.dispatcher.AssertExpectations(t)

	assert.Equal(t, "asha@example.com", sent.ToEmail)
	assert.Equal(t, "Payment Request: ₹250 for Sunday Smash", sent.Subject)
	assert.Contains(t, sent.HTML, "https://example.com/api/finance/pay-redirect?am=250")
}

func TestSendReminderFailures(t *testing.T) {
	t.Run("guest without email", func(t *testing.T) {
		s := newTestServer(t)
		rec := s.do(t, http.MethodPost, "/api/finance/remind", map[string]string{"matchId": "m1", "playerId": "pB"}, &organizer)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Guest player has no email", decodeMessage(t, rec))
		s.dispatcher.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
	})

	t.Run("missing match", func(t *testing.T) {
		s := newTestServer(t)
		rec := s.do(t, http.MethodPost, "/api/finance/remind", map[string]string{"matchId": "nope", "playerId": "pA"}, &organizer)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "Match not found", decodeMessage(t, rec))
	})

	t.Run("dispatch failure", func(t *testing.T) {
		s := newTestServer(t)
		s.dispatcher.On("Send", mock.Anything, mock.Anything).Return(errors.New("brevo: status 500")).Once()
		rec := s.do(t, http.MethodPost, "/api/finance/remind", map[string]string{"matchId": "m1", "playerId": "pA"}, &organizer)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "Failed to send reminder", decodeMessage(t, rec))
	})
}

func TestUpdateUPI(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPut, "/api/finance/upi", map[string]string{"upiId": "asha@okicici"}, &asha)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Message string      `json:"message"`
		User    domain.User `json:"user"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "UPI ID Updated", body.Message)
	assert.Equal(t, "asha@okicici", body.User.UPIID)
}

func TestPayRedirect(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/finance/pay-redirect?pa=olivia@okaxis&pn=Olivia%E2%82%B9Rao!&am=50&tn=TurfWar:%20Sunday", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")

	html := rec.Body.String()
	assert.Contains(t, html, "₹50.00")
	assert.Contains(t, html, "OliviaRao")
	assert.Contains(t, html, "phonepe://pay?mode=02")
	assert.Contains(t, html, "gpay://upi/pay?mode=02")
	assert.Contains(t, html, "Pay with MobiKwik")
}

func TestHealthAndReady(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/ready", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	s.handler.AddReadinessCheck("postgres", func(ctx context.Context) error { return errors.New("connection refused") })
	rec = s.do(t, http.MethodGet, "/ready", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestWebSocketStats(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/ws/stats", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body APIResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.True(t, body.Success)
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/matches", nil)
	req.Header.Set("Origin", "https://app.turfwar.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "x-auth-token")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
