package shared

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// RecordVersion is the current AnswerRecord layout. Records written before the
// field existed carry no "v" key and are read as version 1.
const RecordVersion = 1

// AnswerRecord is the stored shape of one answer. It keeps the question text and
// section title so a submission can be assembled without refetching the catalog.
type AnswerRecord struct {
	Version      int    `json:"v,omitempty"`
	QuestionText string `json:"questionText"`
	SectionTitle string `json:"sectionTitle"`
	Answer       Answer `json:"answer"`
}

func NewAnswerRecord(questionText, sectionTitle string, answer Answer) AnswerRecord {
	return AnswerRecord{
		Version:      RecordVersion,
		QuestionText: questionText,
		SectionTitle: sectionTitle,
		Answer:       answer,
	}
}

type StoredShape int

const (
	// ShapeRecord is a modern {questionText, sectionTitle, answer} object.
	ShapeRecord StoredShape = iota
	// ShapeLegacy is a bare string or list with no question context.
	ShapeLegacy
	// ShapeInvalid is anything else (numbers, null, objects without an answer).
	ShapeInvalid
)

func (s StoredShape) String() string {
	switch s {
	case ShapeRecord:
		return "record"
	case ShapeLegacy:
		return "legacy"
	default:
		return "invalid"
	}
}

// ClassifyStoredAnswer inspects one persisted answer value. It only decodes the
// record when the shape is ShapeRecord.
func ClassifyStoredAnswer(raw json.RawMessage) (AnswerRecord, StoredShape) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return AnswerRecord{}, ShapeInvalid
	}

	switch trimmed[0] {
	case '"', '[':
		if _, err := ParseAnswer(trimmed); err != nil {
			return AnswerRecord{}, ShapeInvalid
		}
		return AnswerRecord{}, ShapeLegacy
	case '{':
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &fields); err != nil {
			return AnswerRecord{}, ShapeInvalid
		}
		if _, ok := fields["answer"]; !ok {
			return AnswerRecord{}, ShapeInvalid
		}

		var record AnswerRecord
		if err := json.Unmarshal(trimmed, &record); err != nil {
			return AnswerRecord{}, ShapeInvalid
		}
		if record.Version == 0 {
			record.Version = RecordVersion
		}
		return record, ShapeRecord
	default:
		return AnswerRecord{}, ShapeInvalid
	}
}

// DecodeRecordMap decodes a question-id keyed answer map. Every value must be in
// record shape; the first key holding another shape is reported in the error.
func DecodeRecordMap(raw map[string]json.RawMessage) (map[string]AnswerRecord, error) {
	records := make(map[string]AnswerRecord, len(raw))
	for questionID, value := range raw {
		record, shape := ClassifyStoredAnswer(value)
		if shape != ShapeRecord {
			return nil, fmt.Errorf("answer for question %s is in %s shape", questionID, shape)
		}
		records[questionID] = record
	}
	return records, nil
}
