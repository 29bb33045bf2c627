package wizard

import (
	"fmt"
	"slices"

	"NYCU-SDC/survey-wizard-backend/internal"
)

type State int

const (
	StateNotStarted State = iota
	StateInSection
	StateSubmitting
	StateCompleted
	StateBlocked
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not_started"
	case StateInSection:
		return "in_section"
	case StateSubmitting:
		return "submitting"
	case StateCompleted:
		return "completed"
	case StateBlocked:
		return "blocked"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Machine walks an employee through the sections in catalog order. Completed and
// Blocked are terminal.
type Machine struct {
	sections []string
	state    State
	index    int
}

func NewMachine(sectionIDs []string) (*Machine, error) {
	if len(sectionIDs) == 0 {
		return nil, internal.ErrEmptySectionCatalog
	}
	return &Machine{
		sections: slices.Clone(sectionIDs),
		state:    StateNotStarted,
	}, nil
}

func (m *Machine) State() State {
	return m.state
}

// Index is the position of the current section, or -1 outside InSection.
func (m *Machine) Index() int {
	if m.state != StateInSection {
		return -1
	}
	return m.index
}

func (m *Machine) CurrentSectionID() string {
	if m.state != StateInSection {
		return ""
	}
	return m.sections[m.index]
}

func (m *Machine) Total() int {
	return len(m.sections)
}

func (m *Machine) IsLast() bool {
	return m.state == StateInSection && m.index == len(m.sections)-1
}

func (m *Machine) Start() error {
	if m.state != StateNotStarted {
		return m.invalid("start")
	}
	m.state = StateInSection
	m.index = 0
	return nil
}

// Resume jumps straight into a section, as when a saved survey is reopened.
func (m *Machine) Resume(sectionID string) error {
	if m.state == StateCompleted || m.state == StateBlocked {
		return m.invalid("resume")
	}

	index := slices.Index(m.sections, sectionID)
	if index < 0 {
		return internal.ErrSectionNotFound
	}
	m.state = StateInSection
	m.index = index
	return nil
}

// Next leaves the current section. complete must report whether every question
// of the section is answered. From the last section the machine moves to
// Submitting.
func (m *Machine) Next(complete bool) error {
	if m.state != StateInSection {
		return m.invalid("next")
	}
	if !complete {
		return internal.ErrSectionIncomplete
	}

	if m.index == len(m.sections)-1 {
		m.state = StateSubmitting
		return nil
	}
	m.index++
	return nil
}

func (m *Machine) Previous() error {
	if m.state != StateInSection {
		return m.invalid("previous")
	}

	if m.index == 0 {
		m.state = StateNotStarted
		return nil
	}
	m.index--
	return nil
}

// Block ends the flow for an employee who already submitted this year.
func (m *Machine) Block() {
	m.state = StateBlocked
}

func (m *Machine) Succeed() error {
	if m.state != StateSubmitting {
		return m.invalid("succeed")
	}
	m.state = StateCompleted
	return nil
}

// Fail returns to the last section so the employee can retry.
func (m *Machine) Fail() error {
	if m.state != StateSubmitting {
		return m.invalid("fail")
	}
	m.state = StateInSection
	m.index = len(m.sections) - 1
	return nil
}

func (m *Machine) invalid(action string) error {
	return fmt.Errorf("%w: cannot %s from %s", internal.ErrInvalidTransition, action, m.state)
}
