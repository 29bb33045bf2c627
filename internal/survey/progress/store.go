package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"NYCU-SDC/survey-wizard-backend/internal"
	"NYCU-SDC/survey-wizard-backend/internal/kv"
	"NYCU-SDC/survey-wizard-backend/internal/survey/localstate"
	"NYCU-SDC/survey-wizard-backend/internal/survey/shared"

	logutil "github.com/NYCU-SDC/summer/pkg/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// SectionLookup reports whether a section id is part of the catalog.
type SectionLookup interface {
	SectionExists(ctx context.Context, sectionID string) (bool, error)
}

// storedProgress mirrors Progress but keeps answers raw so their shape can be
// checked before they are trusted.
type storedProgress struct {
	EmployeeID        string                     `json:"employeeId"`
	EmployeeName      string                     `json:"employeeName"`
	CurrentSectionID  string                     `json:"currentSectionId"`
	Answers           map[string]json.RawMessage `json:"answers"`
	AnswerOrder       []string                   `json:"answerOrder"`
	CompletedSections []string                   `json:"completedSections"`
	StartTime         time.Time                  `json:"startTime"`
	LastUpdated       time.Time                  `json:"lastUpdated"`
}

// Store owns the single progress record of a session. Every mutation is a full
// read-modify-write of the record; concurrent writers in the same session are
// last-writer-wins.
type Store struct {
	logger   *zap.Logger
	tracer   trace.Tracer
	kv       kv.Store
	sections SectionLookup
	now      func() time.Time
}

// NewStore creates a progress store. sections may be nil, in which case section
// ids are not checked against the catalog.
func NewStore(logger *zap.Logger, store kv.Store, sections SectionLookup) *Store {
	return &Store{
		logger:   logger,
		tracer:   otel.Tracer("progress/store"),
		kv:       store,
		sections: sections,
		now:      time.Now,
	}
}

// Load returns the active progress. It returns internal.ErrNoActiveProgress when
// there is none, and internal.ErrCorruptProgress after discarding a record that
// is unreadable or holds answers in the legacy raw-value shape.
func (s *Store) Load(ctx context.Context) (Progress, error) {
	traceCtx, span := s.tracer.Start(ctx, "Load")
	defer span.End()
	logger := logutil.WithContext(traceCtx, s.logger)

	raw, err := s.kv.Get(traceCtx, localstate.ProgressKey)
	if err != nil {
		if errors.Is(err, internal.ErrKeyNotFound) {
			return Progress{}, internal.ErrNoActiveProgress
		}
		span.RecordError(err)
		return Progress{}, err
	}

	p, decodeErr := decode(raw)
	if decodeErr != nil {
		logger.Warn("Discarding corrupt survey progress", zap.Error(decodeErr))
		span.RecordError(decodeErr)

		err = s.kv.Delete(traceCtx, localstate.ProgressKey)
		if err != nil {
			logger.Error("Failed to discard corrupt survey progress", zap.Error(err))
			span.RecordError(err)
			return Progress{}, err
		}
		return Progress{}, fmt.Errorf("%w: %v", internal.ErrCorruptProgress, decodeErr)
	}

	return p, nil
}

func decode(raw []byte) (Progress, error) {
	var stored storedProgress
	if err := json.Unmarshal(raw, &stored); err != nil {
		return Progress{}, fmt.Errorf("progress is not valid json: %w", err)
	}

	answers, err := shared.DecodeRecordMap(stored.Answers)
	if err != nil {
		return Progress{}, err
	}

	completed := stored.CompletedSections
	if completed == nil {
		completed = []string{}
	}

	return Progress{
		EmployeeID:        stored.EmployeeID,
		EmployeeName:      stored.EmployeeName,
		CurrentSectionID:  stored.CurrentSectionID,
		Answers:           answers,
		AnswerOrder:       stored.AnswerOrder,
		CompletedSections: completed,
		StartTime:         stored.StartTime,
		LastUpdated:       stored.LastUpdated,
	}, nil
}

func (s *Store) save(ctx context.Context, p Progress) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("%w: encode progress: %v", internal.ErrStorageFailed, err)
	}
	return s.kv.Set(ctx, localstate.ProgressKey, raw)
}

// Initialize starts a fresh attempt, unconditionally replacing any previous one.
func (s *Store) Initialize(ctx context.Context, employeeID, employeeName, firstSectionID string) (Progress, error) {
	traceCtx, span := s.tracer.Start(ctx, "Initialize")
	defer span.End()
	logger := logutil.WithContext(traceCtx, s.logger)

	if employeeID == "" || employeeName == "" {
		return Progress{}, internal.ErrEmployeeRequired
	}

	err := s.checkSection(traceCtx, firstSectionID)
	if err != nil {
		span.RecordError(err)
		return Progress{}, err
	}

	now := s.now()
	p := Progress{
		EmployeeID:        employeeID,
		EmployeeName:      employeeName,
		CurrentSectionID:  firstSectionID,
		Answers:           map[string]shared.AnswerRecord{},
		AnswerOrder:       []string{},
		CompletedSections: []string{},
		StartTime:         now,
		LastUpdated:       now,
	}

	err = s.save(traceCtx, p)
	if err != nil {
		logger.Error("Failed to save new survey progress", zap.Error(err), zap.String("employee_id", employeeID))
		span.RecordError(err)
		return Progress{}, err
	}

	logger.Info("Started survey progress", zap.String("employee_id", employeeID), zap.String("first_section_id", firstSectionID))
	return p, nil
}

// RecordAnswer replaces the stored answer for a question. An empty scalar removes
// the entry; an empty list is kept as an untouched multi-select.
func (s *Store) RecordAnswer(ctx context.Context, questionID string, value shared.Answer, questionText, sectionTitle string) (Progress, error) {
	traceCtx, span := s.tracer.Start(ctx, "RecordAnswer")
	defer span.End()
	logger := logutil.WithContext(traceCtx, s.logger)

	if questionID == "" {
		return Progress{}, fmt.Errorf("%w: question id is required", internal.ErrValidationFailed)
	}

	p, err := s.Load(traceCtx)
	if err != nil {
		span.RecordError(err)
		return Progress{}, err
	}

	value = shared.SanitizeAnswer(value)
	if value.Kind() == shared.AnswerKindScalar && value.IsEmpty() {
		delete(p.Answers, questionID)
		p.AnswerOrder = slices.DeleteFunc(p.AnswerOrder, func(id string) bool { return id == questionID })
	} else {
		if !slices.Contains(p.AnswerOrder, questionID) {
			p.AnswerOrder = append(p.AnswerOrder, questionID)
		}
		p.Answers[questionID] = shared.NewAnswerRecord(questionText, sectionTitle, value)
	}
	p.LastUpdated = s.now()

	err = s.save(traceCtx, p)
	if err != nil {
		logger.Error("Failed to save answer", zap.Error(err), zap.String("question_id", questionID))
		span.RecordError(err)
		return Progress{}, err
	}

	logger.Debug("Recorded answer", zap.String("question_id", questionID), zap.String("kind", value.Kind().String()))
	return p, nil
}

// CompleteSection marks a section as passed through. Repeated calls are no-ops
// apart from refreshing LastUpdated.
func (s *Store) CompleteSection(ctx context.Context, sectionID string) (Progress, error) {
	traceCtx, span := s.tracer.Start(ctx, "CompleteSection")
	defer span.End()
	logger := logutil.WithContext(traceCtx, s.logger)

	if sectionID == "" {
		return Progress{}, fmt.Errorf("%w: section id is required", internal.ErrValidationFailed)
	}

	p, err := s.Load(traceCtx)
	if err != nil {
		span.RecordError(err)
		return Progress{}, err
	}

	if !slices.Contains(p.CompletedSections, sectionID) {
		p.CompletedSections = append(p.CompletedSections, sectionID)
	}
	p.LastUpdated = s.now()

	err = s.save(traceCtx, p)
	if err != nil {
		logger.Error("Failed to save completed section", zap.Error(err), zap.String("section_id", sectionID))
		span.RecordError(err)
		return Progress{}, err
	}

	return p, nil
}

func (s *Store) SetCurrentSection(ctx context.Context, sectionID string) (Progress, error) {
	traceCtx, span := s.tracer.Start(ctx, "SetCurrentSection")
	defer span.End()
	logger := logutil.WithContext(traceCtx, s.logger)

	err := s.checkSection(traceCtx, sectionID)
	if err != nil {
		span.RecordError(err)
		return Progress{}, err
	}

	p, err := s.Load(traceCtx)
	if err != nil {
		span.RecordError(err)
		return Progress{}, err
	}

	p.CurrentSectionID = sectionID
	p.LastUpdated = s.now()

	err = s.save(traceCtx, p)
	if err != nil {
		logger.Error("Failed to save current section", zap.Error(err), zap.String("section_id", sectionID))
		span.RecordError(err)
		return Progress{}, err
	}

	return p, nil
}

// Clear removes the progress record. Clearing when nothing is stored is not an error.
func (s *Store) Clear(ctx context.Context) error {
	traceCtx, span := s.tracer.Start(ctx, "Clear")
	defer span.End()
	logger := logutil.WithContext(traceCtx, s.logger)

	err := s.kv.Delete(traceCtx, localstate.ProgressKey)
	if err != nil {
		logger.Error("Failed to clear survey progress", zap.Error(err))
		span.RecordError(err)
		return err
	}

	return nil
}

// IsInProgress reports whether a readable progress record exists. A corrupt
// record is discarded and reported as internal.ErrCorruptProgress.
func (s *Store) IsInProgress(ctx context.Context) (bool, error) {
	_, err := s.Load(ctx)
	if err != nil {
		if errors.Is(err, internal.ErrNoActiveProgress) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *Store) checkSection(ctx context.Context, sectionID string) error {
	if sectionID == "" {
		return fmt.Errorf("%w: section id is required", internal.ErrValidationFailed)
	}
	if s.sections == nil {
		return nil
	}

	exists, err := s.sections.SectionExists(ctx, sectionID)
	if err != nil {
		return err
	}
	if !exists {
		return internal.ErrSectionNotFound
	}
	return nil
}
