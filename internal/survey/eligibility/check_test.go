package eligibility

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"NYCU-SDC/survey-wizard-backend/internal"
	"NYCU-SDC/survey-wizard-backend/internal/apiclient"
	"NYCU-SDC/survey-wizard-backend/internal/survey/history"
	"NYCU-SDC/survey-wizard-backend/internal/survey/shared"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

var bangkok = time.FixedZone("Asia/Bangkok", 7*60*60)

func dated(employeeID shared.FlexibleID, dates ...string) history.Submission {
	results := make([]history.SurveyResult, 0, len(dates))
	for _, date := range dates {
		results = append(results, history.SurveyResult{Date: date, ConclutionResult: history.ConclusionSubmit})
	}
	return history.Submission{EmployeeID: employeeID, SurveyResult: results, ConclutionResult: history.ConclusionSubmit}
}

func TestCheck(t *testing.T) {
	t.Parallel()

	in2025 := time.Date(2025, 6, 1, 12, 0, 0, 0, bangkok)
	in2024 := time.Date(2024, 6, 1, 12, 0, 0, 0, bangkok)

	tests := []struct {
		name        string
		employeeID  string
		submissions []history.Submission
		now         time.Time
		expected    Result
	}{
		{
			name:       "Should match a submission in the current year",
			employeeID: "1001",
			submissions: []history.Submission{
				dated("1001", "15/03/2023 - 10:00"),
				dated("1001", "02/01/2025 - 09:30"),
			},
			now:      in2025,
			expected: Result{HasSubmittedThisYear: true, Date: "02/01/2025 - 09:30", Year: "2025"},
		},
		{
			name:       "Should not match when no submission is in the current year",
			employeeID: "1001",
			submissions: []history.Submission{
				dated("1001", "15/03/2023 - 10:00"),
				dated("1001", "02/01/2025 - 09:30"),
			},
			now:      in2024,
			expected: Result{},
		},
		{
			name:        "Should skip a malformed date",
			employeeID:  "1001",
			submissions: []history.Submission{dated("1001", "not-a-date")},
			now:         in2025,
			expected:    Result{},
		},
		{
			name:       "Should ignore other employees",
			employeeID: "1001",
			submissions: []history.Submission{
				dated("2002", "02/01/2025 - 09:30"),
			},
			now:      in2025,
			expected: Result{},
		},
		{
			name:        "Should use the last dated result",
			employeeID:  "1001",
			submissions: []history.Submission{dated("1001", "02/01/2025 - 09:30", "10/02/2024 - 08:00")},
			now:         in2025,
			expected:    Result{},
		},
		{
			name:       "Should fall back to the creation timestamp in the reference zone",
			employeeID: "1001",
			submissions: []history.Submission{
				{EmployeeID: "1001", CreatedAt: "2024-12-31T18:30:00Z"},
			},
			now:      in2025,
			expected: Result{HasSubmittedThisYear: true, Date: "01/01/2025 - 01:30", Year: "2025"},
		},
		{
			name:       "Should report the first match in order",
			employeeID: "1001",
			submissions: []history.Submission{
				dated("1001", "05/05/2025 - 11:00"),
				dated("1001", "02/01/2025 - 09:30"),
			},
			now:      in2025,
			expected: Result{HasSubmittedThisYear: true, Date: "05/05/2025 - 11:00", Year: "2025"},
		},
		{
			name:        "Should not match an empty employee id",
			employeeID:  "",
			submissions: []history.Submission{dated("", "02/01/2025 - 09:30")},
			now:         in2025,
			expected:    Result{},
		},
		{
			name:        "Should not match a submission without any date",
			employeeID:  "1001",
			submissions: []history.Submission{{EmployeeID: "1001"}},
			now:         in2025,
			expected:    Result{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.NotPanics(t, func() {
				require.Equal(t, tt.expected, Check(tt.employeeID, tt.submissions, tt.now, bangkok))
			})
		})
	}
}

type mockHistoryLister struct {
	mock.Mock
}

func (m *mockHistoryLister) List(ctx context.Context, employeeID string) ([]history.Submission, error) {
	args := m.Called(ctx, employeeID)
	submissions, _ := args.Get(0).([]history.Submission)
	return submissions, args.Error(1)
}

func newTestService(lister HistoryLister, now time.Time) *Service {
	return &Service{
		logger:  zap.NewNop(),
		tracer:  noop.NewTracerProvider().Tracer("test"),
		history: lister,
		loc:     bangkok,
		now:     func() time.Time { return now },
	}
}

func TestService_Gate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, bangkok)

	lister := new(mockHistoryLister)
	lister.On("List", mock.Anything, "1001").Return([]history.Submission{dated("1001", "02/01/2025 - 09:30")}, nil)
	lister.On("List", mock.Anything, "2002").Return([]history.Submission{}, nil)
	lister.On("List", mock.Anything, "3003").Return(nil, internal.ErrUpstreamFailed)

	service := newTestService(lister, now)

	err := service.Gate(ctx, "1001")
	var submitted internal.ErrAlreadySubmitted
	require.True(t, errors.As(err, &submitted))
	require.Equal(t, "2025", submitted.Year)
	require.ErrorIs(t, err, internal.ErrSubmissionBlocked)

	require.NoError(t, service.Gate(ctx, "2002"))
	require.ErrorIs(t, service.Gate(ctx, "3003"), internal.ErrUpstreamFailed)
	lister.AssertExpectations(t)
}

func TestService_CheckEmployee_IgnoresMalformedHistory(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, bangkok)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"employeeID":"7","surveyResult":[{"date":20230101}]},` +
			`{"employeeID":"1001","surveyResult":[{"date":"02/01/2026 - 09:30"}]}]`))
	}))
	defer server.Close()

	client := history.NewClient(zap.NewNop(), apiclient.New(server.URL))
	service := newTestService(client, now)

	result, err := service.CheckEmployee(context.Background(), "1001")
	require.NoError(t, err)
	require.True(t, result.HasSubmittedThisYear)
	require.Equal(t, "2026", result.Year)

	result, err = service.CheckEmployee(context.Background(), "7")
	require.NoError(t, err)
	require.False(t, result.HasSubmittedThisYear)
}

func TestHandler_GetHandler(t *testing.T) {
	t.Parallel()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, bangkok)

	lister := new(mockHistoryLister)
	lister.On("List", mock.Anything, "1001").Return([]history.Submission{dated(shared.FlexibleID("1001"), "02/01/2025 - 09:30")}, nil)

	handler := NewHandler(zap.NewNop(), internal.NewProblemWriter(), newTestService(lister, now))
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/eligibility/{employeeId}", handler.GetHandler)

	req := httptest.NewRequest(http.MethodGet, "/api/eligibility/1001", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"employeeId":"1001","hasSubmittedThisYear":true,"date":"02/01/2025 - 09:30","year":"2025"}`, rec.Body.String())
}
