package submit

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"NYCU-SDC/survey-wizard-backend/internal"
	"NYCU-SDC/survey-wizard-backend/internal/kv"
	"NYCU-SDC/survey-wizard-backend/internal/survey/catalog"
	"NYCU-SDC/survey-wizard-backend/internal/survey/history"
	"NYCU-SDC/survey-wizard-backend/internal/survey/localstate"
	"NYCU-SDC/survey-wizard-backend/internal/survey/progress"
	"NYCU-SDC/survey-wizard-backend/internal/survey/shared"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var bangkok = time.FixedZone("Asia/Bangkok", 7*60*60)

type mockCreator struct {
	mock.Mock
}

func (m *mockCreator) Create(ctx context.Context, payload history.SubmissionPayload) error {
	args := m.Called(ctx, payload)
	return args.Error(0)
}

type mockGate struct {
	mock.Mock
}

func (m *mockGate) Gate(ctx context.Context, employeeID string) error {
	args := m.Called(ctx, employeeID)
	return args.Error(0)
}

type staticSections []catalog.Section

func (s staticSections) Sections(context.Context) ([]catalog.Section, error) {
	return s, nil
}

func record(questionText, sectionTitle string, answer shared.Answer) shared.AnswerRecord {
	return shared.NewAnswerRecord(questionText, sectionTitle, answer)
}

func TestProgressSource_Rows(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		answers  map[string]shared.AnswerRecord
		order    []string
		expected []history.DataResult
	}{
		{
			name: "Should group scalar and multi answers of one section",
			answers: map[string]shared.AnswerRecord{
				"q1": record("Q1", "S1", shared.Scalar("Yes")),
				"q2": record("Q2", "S1", shared.Multi([]string{"A", "B"})),
			},
			expected: []history.DataResult{
				{Section: "S1", Question: []string{"Q1"}, Answer: []string{"Yes"}},
				{Section: "S1", Question: []string{"Q2"}, Answer: []string{"A", "B"}},
			},
		},
		{
			name: "Should order sections by when they were first answered",
			answers: map[string]shared.AnswerRecord{
				"2":  record("Q2", "Section A", shared.Scalar("Yes")),
				"10": record("Q10", "Section B", shared.Scalar("No")),
			},
			order: []string{"2", "10"},
			expected: []history.DataResult{
				{Section: "Section A", Question: []string{"Q2"}, Answer: []string{"Yes"}},
				{Section: "Section B", Question: []string{"Q10"}, Answer: []string{"No"}},
			},
		},
		{
			name: "Should keep sections contiguous in order of first appearance",
			answers: map[string]shared.AnswerRecord{
				"c1": record("More team?", "Team", shared.Scalar("5")),
				"b1": record("Work?", "Work", shared.Scalar("Yes")),
				"a1": record("Team?", "Team", shared.Scalar("4")),
			},
			order: []string{"a1", "b1", "c1"},
			expected: []history.DataResult{
				{Section: "Team", Question: []string{"Team?"}, Answer: []string{"4"}},
				{Section: "Team", Question: []string{"More team?"}, Answer: []string{"5"}},
				{Section: "Work", Question: []string{"Work?"}, Answer: []string{"Yes"}},
			},
		},
		{
			name: "Should fall back to sorted ids for records saved without an order",
			answers: map[string]shared.AnswerRecord{
				"a1": record("Team?", "Team", shared.Scalar("4")),
				"b1": record("Work?", "Work", shared.Scalar("Yes")),
				"c1": record("More team?", "Team", shared.Scalar("5")),
			},
			expected: []history.DataResult{
				{Section: "Team", Question: []string{"Team?"}, Answer: []string{"4"}},
				{Section: "Team", Question: []string{"More team?"}, Answer: []string{"5"}},
				{Section: "Work", Question: []string{"Work?"}, Answer: []string{"Yes"}},
			},
		},
		{
			name: "Should skip unanswered multi-select",
			answers: map[string]shared.AnswerRecord{
				"q1": record("Q1", "S1", shared.Multi(nil)),
			},
			expected: []history.DataResult{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rows, err := NewProgressSource(progress.Progress{Answers: tt.answers, AnswerOrder: tt.order}).Rows(context.Background())
			require.NoError(t, err)
			require.Equal(t, tt.expected, rows)
		})
	}
}

func TestLegacySource_SkipsRawValues(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	local := localstate.NewStore(kv.NewMemory())

	require.NoError(t, local.SetLegacySection(ctx, "s1", map[string]json.RawMessage{
		"q1": json.RawMessage(`{"questionText":"Q1","sectionTitle":"Work","answer":"Yes"}`),
		"q2": json.RawMessage(`"raw value"`),
		"q3": json.RawMessage(`["A","B"]`),
	}))
	require.NoError(t, local.SetLegacySection(ctx, "s2", map[string]json.RawMessage{
		"q4": json.RawMessage(`{"questionText":"Q4","sectionTitle":"","answer":["C"]}`),
		"q5": json.RawMessage(`42`),
	}))

	source := NewLegacySource(staticSections{{ID: "s1", Title: "Work"}, {ID: "s2", Title: "Team"}}, local)
	rows, err := source.Rows(ctx)
	require.NoError(t, err)
	require.Equal(t, []history.DataResult{
		{Section: "Work", Question: []string{"Q1"}, Answer: []string{"Yes"}},
		{Section: "Team", Question: []string{"Q4"}, Answer: []string{"C"}},
	}, rows)
	require.Equal(t, SourceLegacy, source.Kind())
}

type fixture struct {
	backend  *kv.Memory
	progress *progress.Store
	local    *localstate.Store
	creator  *mockCreator
	gate     *mockGate
	service  *Service
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	backend := kv.NewMemory()
	f := fixture{
		backend:  backend,
		progress: progress.NewStore(zap.NewNop(), backend, nil),
		local:    localstate.NewStore(backend),
		creator:  new(mockCreator),
		gate:     new(mockGate),
	}
	sections := staticSections{{ID: "s1", Title: "S1"}, {ID: "s2", Title: "S2"}}
	f.service = NewService(zap.NewNop(), f.progress, f.local, sections, f.creator, f.gate, bangkok)
	f.service.now = func() time.Time { return time.Date(2025, 1, 2, 2, 30, 0, 0, time.UTC) }
	return f
}

func (f fixture) startSurvey(t *testing.T, employeeID, name string) {
	t.Helper()
	ctx := context.Background()
	_, err := f.progress.Initialize(ctx, employeeID, name, "s1")
	require.NoError(t, err)
	_, err = f.progress.RecordAnswer(ctx, "q1", shared.Scalar("Yes"), "Q1", "S1")
	require.NoError(t, err)
	_, err = f.progress.RecordAnswer(ctx, "q2", shared.Multi([]string{"A", "B"}), "Q2", "S1")
	require.NoError(t, err)
}

func TestService_Submit_ClearsOnSuccess(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	name := gofakeit.Name()
	f.startSurvey(t, "1001", name)
	require.NoError(t, f.local.SetLegacySection(ctx, "s2", map[string]json.RawMessage{"old": json.RawMessage(`"x"`)}))

	var posted history.SubmissionPayload
	f.gate.On("Gate", mock.Anything, "1001").Return(nil)
	f.creator.On("Create", mock.Anything, mock.AnythingOfType("history.SubmissionPayload")).
		Run(func(args mock.Arguments) { posted = args.Get(1).(history.SubmissionPayload) }).
		Return(nil)

	outcome, err := f.service.Submit(ctx)
	require.NoError(t, err)
	require.Equal(t, SourceProgress, outcome.Source)

	require.Equal(t, "1001", posted.EmployeeID)
	require.Equal(t, name, posted.Name)
	require.Equal(t, history.ConclusionSubmit, posted.ConclutionResult)
	require.Len(t, posted.SurveyResult, 1)
	require.Equal(t, "02/01/2025 - 09:30", posted.SurveyResult[0].Date)
	require.Equal(t, history.ConclusionSubmit, posted.SurveyResult[0].ConclutionResult)
	require.Len(t, posted.SurveyResult[0].DataResult, 2)

	inProgress, err := f.progress.IsInProgress(ctx)
	require.NoError(t, err)
	require.False(t, inProgress)

	cached, err := f.local.LegacySection(ctx, "s2")
	require.NoError(t, err)
	require.Empty(t, cached)

	summary, err := f.service.LastSubmission(ctx)
	require.NoError(t, err)
	require.Equal(t, localstate.LastSubmission{EmployeeName: name, Date: "02/01/2025 - 09:30", Year: "2025"}, summary)
	f.creator.AssertExpectations(t)
}

func TestService_Submit_KeepsProgressOnFailure(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	f.startSurvey(t, "1001", "Ada")

	before, err := f.progress.Load(ctx)
	require.NoError(t, err)

	f.gate.On("Gate", mock.Anything, "1001").Return(nil)
	f.creator.On("Create", mock.Anything, mock.Anything).
		Return(internal.ErrUpstream{Operation: "create submission", StatusCode: 500, Body: "boom"})

	_, err = f.service.Submit(ctx)
	require.ErrorIs(t, err, internal.ErrUpstreamFailed)

	after, err := f.progress.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, before.EmployeeID, after.EmployeeID)
	require.Equal(t, before.Answers, after.Answers)

	_, err = f.service.LastSubmission(ctx)
	require.ErrorIs(t, err, internal.ErrNoLastSubmission)
}

func TestService_Submit_UsesSelectedDate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	f.startSurvey(t, "1001", "Ada")
	require.NoError(t, f.local.SetSelectedDate(ctx, "2024-11-20T03:15:00Z"))

	f.gate.On("Gate", mock.Anything, "1001").Return(nil)
	f.creator.On("Create", mock.Anything, mock.Anything).Return(nil)

	outcome, err := f.service.Submit(ctx)
	require.NoError(t, err)
	require.Equal(t, "20/11/2024 - 10:15", outcome.Payload.SurveyResult[0].Date)
	require.Equal(t, "2024", outcome.Summary.Year)

	_, ok, err := f.local.SelectedDate(ctx)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestService_Submit_Blocked(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	f.startSurvey(t, "1001", "Ada")

	f.gate.On("Gate", mock.Anything, "1001").
		Return(internal.ErrAlreadySubmitted{EmployeeID: "1001", Date: "02/01/2025 - 09:30", Year: "2025"})

	_, err := f.service.Submit(ctx)
	require.ErrorIs(t, err, internal.ErrSubmissionBlocked)
	f.creator.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)

	inProgress, err := f.progress.IsInProgress(ctx)
	require.NoError(t, err)
	require.True(t, inProgress)
}

func TestService_Submit_LegacyFallback(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.service.Submit(ctx)
	require.ErrorIs(t, err, internal.ErrNoSelectedEmployee)

	require.NoError(t, f.local.SetSelectedEmployee(ctx, localstate.SelectedEmployee{ID: "2002", Name: "Grace"}))
	f.gate.On("Gate", mock.Anything, "2002").Return(nil)

	_, err = f.service.Submit(ctx)
	require.ErrorIs(t, err, internal.ErrNothingToSubmit)

	require.NoError(t, f.local.SetLegacySection(ctx, "s1", map[string]json.RawMessage{
		"q1": json.RawMessage(`{"questionText":"Q1","sectionTitle":"S1","answer":"Yes"}`),
	}))
	f.creator.On("Create", mock.Anything, mock.Anything).Return(nil)

	outcome, err := f.service.Submit(ctx)
	require.NoError(t, err)
	require.Equal(t, SourceLegacy, outcome.Source)
	require.Equal(t, "2002", outcome.Payload.EmployeeID)

	cached, err := f.local.LegacySection(ctx, "s1")
	require.NoError(t, err)
	require.Empty(t, cached)
}

func TestService_Submit_CorruptProgress(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.backend.Set(ctx, localstate.ProgressKey, []byte(`{"employeeId":"1001","answers":{"q1":"Yes"}}`)))

	_, err := f.service.Submit(ctx)
	require.ErrorIs(t, err, internal.ErrCorruptProgress)
	f.creator.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}
