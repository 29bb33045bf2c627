package localstate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"NYCU-SDC/survey-wizard-backend/internal"
	"NYCU-SDC/survey-wizard-backend/internal/kv"
)

type SelectedEmployee struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// LastSubmission is the summary shown on the confirmation screen.
type LastSubmission struct {
	EmployeeName string `json:"employeeName"`
	Date         string `json:"date"`
	Year         string `json:"year"`
}

// Store reads and writes the small browser-local values other than the
// progress record.
type Store struct {
	kv kv.Store
}

func NewStore(store kv.Store) *Store {
	return &Store{kv: store}
}

func (s *Store) SelectedEmployee(ctx context.Context) (SelectedEmployee, error) {
	var employee SelectedEmployee
	err := s.getJSON(ctx, SelectedEmployeeKey, &employee)
	if err != nil {
		if errors.Is(err, internal.ErrKeyNotFound) {
			return SelectedEmployee{}, internal.ErrNoSelectedEmployee
		}
		return SelectedEmployee{}, err
	}
	if employee.ID == "" {
		return SelectedEmployee{}, internal.ErrNoSelectedEmployee
	}
	return employee, nil
}

func (s *Store) SetSelectedEmployee(ctx context.Context, employee SelectedEmployee) error {
	return s.setJSON(ctx, SelectedEmployeeKey, employee)
}

func (s *Store) ClearSelectedEmployee(ctx context.Context) error {
	return s.kv.Delete(ctx, SelectedEmployeeKey)
}

// SelectedDate returns the survey date chosen on the entry page, if any.
func (s *Store) SelectedDate(ctx context.Context) (time.Time, bool, error) {
	raw, err := s.kv.Get(ctx, SelectedDateKey)
	if err != nil {
		if errors.Is(err, internal.ErrKeyNotFound) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, err
	}

	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		// older pages stored the bare string
		value = string(raw)
	}
	if value == "" {
		return time.Time{}, false, nil
	}

	t, err := internal.ParseSelectedDate(value)
	if err != nil {
		return time.Time{}, false, err
	}
	return t, true, nil
}

func (s *Store) SetSelectedDate(ctx context.Context, value string) error {
	if _, err := internal.ParseSelectedDate(value); err != nil {
		return err
	}
	return s.setJSON(ctx, SelectedDateKey, value)
}

func (s *Store) ClearSelectedDate(ctx context.Context) error {
	return s.kv.Delete(ctx, SelectedDateKey)
}

func (s *Store) LastSubmission(ctx context.Context) (LastSubmission, error) {
	var summary LastSubmission
	err := s.getJSON(ctx, LastSubmissionKey, &summary)
	if err != nil {
		if errors.Is(err, internal.ErrKeyNotFound) {
			return LastSubmission{}, internal.ErrNoLastSubmission
		}
		return LastSubmission{}, err
	}
	return summary, nil
}

func (s *Store) SetLastSubmission(ctx context.Context, summary LastSubmission) error {
	return s.setJSON(ctx, LastSubmissionKey, summary)
}

// LegacySection returns the raw per-section cache. A missing or unreadable cache
// reads as empty since nothing in it can be trusted anyway.
func (s *Store) LegacySection(ctx context.Context, sectionID string) (map[string]json.RawMessage, error) {
	raw, err := s.kv.Get(ctx, LegacySectionKey(sectionID))
	if err != nil {
		if errors.Is(err, internal.ErrKeyNotFound) {
			return map[string]json.RawMessage{}, nil
		}
		return nil, err
	}

	var answers map[string]json.RawMessage
	if err := json.Unmarshal(raw, &answers); err != nil {
		return map[string]json.RawMessage{}, nil
	}
	return answers, nil
}

func (s *Store) SetLegacySection(ctx context.Context, sectionID string, answers map[string]json.RawMessage) error {
	return s.setJSON(ctx, LegacySectionKey(sectionID), answers)
}

func (s *Store) ClearLegacySections(ctx context.Context, sectionIDs []string) error {
	for _, sectionID := range sectionIDs {
		if err := s.kv.Delete(ctx, LegacySectionKey(sectionID)); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) getJSON(ctx context.Context, key string, v any) error {
	raw, err := s.kv.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: decode %s: %v", internal.ErrStorageFailed, key, err)
	}
	return nil
}

func (s *Store) setJSON(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: encode %s: %v", internal.ErrStorageFailed, key, err)
	}
	return s.kv.Set(ctx, key, raw)
}
