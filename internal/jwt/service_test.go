package jwt

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"NYCU-SDC/survey-wizard-backend/internal"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestService_RoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	service := NewService(zap.NewNop(), "test-secret", time.Hour)

	sessionID := uuid.New()
	token, err := service.New(ctx, sessionID)
	require.NoError(t, err)

	parsed, err := service.Parse(ctx, "Bearer "+token)
	require.NoError(t, err)
	require.Equal(t, sessionID, parsed)
}

func TestService_ParseRejects(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	service := NewService(zap.NewNop(), "test-secret", time.Hour)
	otherKey := NewService(zap.NewNop(), "other-secret", time.Hour)
	expired := NewService(zap.NewNop(), "test-secret", -time.Minute)

	foreign, err := otherKey.New(ctx, uuid.New())
	require.NoError(t, err)
	stale, err := expired.New(ctx, uuid.New())
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{name: "Should reject a malformed token", token: "not-a-token"},
		{name: "Should reject a token signed with another secret", token: foreign},
		{name: "Should reject an expired token", token: stale},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := service.Parse(ctx, tt.token)
			require.ErrorIs(t, err, internal.ErrInvalidSessionToken)
		})
	}
}

func TestMiddleware_SessionMiddleware(t *testing.T) {
	t.Parallel()
	service := NewService(zap.NewNop(), "test-secret", time.Hour)
	middleware := NewMiddleware(zap.NewNop(), internal.NewProblemWriter(), service, false)

	var seen string
	handler := middleware.SessionMiddleware(func(w http.ResponseWriter, r *http.Request) {
		sessionID, ok := internal.GetSessionIDFromContext(r.Context())
		require.True(t, ok)
		seen = sessionID
		w.WriteHeader(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/api/progress", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	first := seen

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	require.Equal(t, CookieName, cookies[0].Name)
	require.True(t, cookies[0].HttpOnly)
	require.Equal(t, cookies[0].Value, rec.Header().Get(TokenHeader))

	req := httptest.NewRequest(http.MethodGet, "/api/progress", nil)
	req.AddCookie(cookies[0])
	rec = httptest.NewRecorder()
	handler(rec, req)
	require.Equal(t, first, seen)
	require.Empty(t, rec.Result().Cookies())

	req = httptest.NewRequest(http.MethodGet, "/api/progress", nil)
	req.Header.Set("Authorization", "Bearer "+cookies[0].Value)
	rec = httptest.NewRecorder()
	handler(rec, req)
	require.Equal(t, first, seen)

	req = httptest.NewRequest(http.MethodGet, "/api/progress", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: "tampered"})
	rec = httptest.NewRecorder()
	handler(rec, req)
	require.NotEqual(t, first, seen)
	require.Len(t, rec.Result().Cookies(), 1)
}

type mockIssuer struct {
	mock.Mock
}

func (m *mockIssuer) New(ctx context.Context, sessionID uuid.UUID) (string, error) {
	args := m.Called(ctx, sessionID)
	return args.String(0), args.Error(1)
}

func (m *mockIssuer) Parse(ctx context.Context, tokenString string) (uuid.UUID, error) {
	args := m.Called(ctx, tokenString)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

func (m *mockIssuer) Expiration() time.Duration {
	return time.Hour
}

func TestMiddleware_SessionMiddleware_SigningFailure(t *testing.T) {
	t.Parallel()
	issuer := new(mockIssuer)
	issuer.On("New", mock.Anything, mock.Anything).Return("", errors.New("signing key unavailable"))

	middleware := NewMiddleware(zap.NewNop(), internal.NewProblemWriter(), nil, false)
	middleware.service = issuer

	called := false
	handler := middleware.SessionMiddleware(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/api/progress", nil))

	require.False(t, called)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.True(t, json.Valid(rec.Body.Bytes()))
	require.Empty(t, rec.Result().Cookies())
	issuer.AssertExpectations(t)
}
