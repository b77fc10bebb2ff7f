package domain

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestFlattenKeepsEncounterOrder(t *testing.T) {
	questions := []Question{
		MCQQuestion{ID: "a"},
		ParagraphQuestion{ID: "p", Questions: []MCQQuestion{{ID: "p1"}, {ID: "p2"}}},
		MCQQuestion{ID: "b"},
	}

	flat := Flatten(questions)
	want := []string{"a", "p1", "p2", "b"}
	if len(flat) != len(want) {
		t.Fatalf("expected %d leaves, got %d", len(want), len(flat))
	}
	for i, id := range want {
		if flat[i].ID != id {
			t.Fatalf("position %d: expected %s, got %s", i, id, flat[i].ID)
		}
	}
}

func TestMCQValidate(t *testing.T) {
	valid := MCQQuestion{ID: "q", Text: "2+2?", Options: []string{"3", "4"}, CorrectIndex: 1}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid, got %v", err)
	}

	cases := map[string]MCQQuestion{
		"empty text":      {Text: " ", Options: []string{"a", "b"}},
		"one option":      {Text: "x", Options: []string{"a"}},
		"six options":     {Text: "x", Options: []string{"a", "b", "c", "d", "e", "f"}},
		"blank option":    {Text: "x", Options: []string{"a", ""}},
		"index too large": {Text: "x", Options: []string{"a", "b"}, CorrectIndex: 2},
		"negative index":  {Text: "x", Options: []string{"a", "b"}, CorrectIndex: -1},
		"bad media":       {Text: "x", Options: []string{"a", "b"}, Media: &MediaAttachment{Kind: "pdf", Ref: "r"}},
	}
	for name, q := range cases {
		err := q.Validate()
		var v *ValidationError
		if !errors.As(err, &v) {
			t.Fatalf("%s: expected validation error, got %v", name, err)
		}
	}
}

func TestParagraphValidatePrefixesChildField(t *testing.T) {
	p := ParagraphQuestion{
		Paragraph: "Read this.",
		Questions: []MCQQuestion{
			{Text: "ok", Options: []string{"a", "b"}},
			{Text: "bad", Options: []string{"a", "b"}, CorrectIndex: 4},
		},
	}
	err := p.Validate()
	var v *ValidationError
	if !errors.As(err, &v) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if v.Field != "questions[1].correctIndex" {
		t.Fatalf("unexpected field %q", v.Field)
	}

	if err := (ParagraphQuestion{Paragraph: "text"}).Validate(); err == nil {
		t.Fatalf("expected paragraph without children to be rejected")
	}
}

func TestWithOptionsClampsCorrectIndex(t *testing.T) {
	q := MCQQuestion{Text: "x", Options: []string{"a", "b", "c", "d"}, CorrectIndex: 3}

	shrunk := q.WithOptions([]string{"a", "b"})
	if shrunk.CorrectIndex != 1 {
		t.Fatalf("expected clamp to 1, got %d", shrunk.CorrectIndex)
	}
	if q.CorrectIndex != 3 || len(q.Options) != 4 {
		t.Fatalf("original question mutated: %+v", q)
	}

	grown := shrunk.WithOptions([]string{"a", "b", "c"})
	if grown.CorrectIndex != 1 {
		t.Fatalf("expected index kept at 1, got %d", grown.CorrectIndex)
	}
}

func TestIsCorrectTreatsNilAsWrong(t *testing.T) {
	q := MCQQuestion{CorrectIndex: 0}
	if q.IsCorrect(nil) {
		t.Fatalf("unanswered must not be correct")
	}
	zero := 0
	if !q.IsCorrect(&zero) {
		t.Fatalf("expected match on index 0")
	}
}

func TestQuestionListJSONDiscriminator(t *testing.T) {
	list := QuestionList{
		MCQQuestion{ID: "q1", Text: "x", Options: []string{"a", "b"}, CorrectIndex: 1},
		ParagraphQuestion{ID: "p1", Paragraph: "read", Questions: []MCQQuestion{{ID: "c1", Text: "y", Options: []string{"a", "b"}}}},
	}
	data, err := json.Marshal(list)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var raw []map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal raw: %v", err)
	}
	if raw[0]["type"] != "mcq" || raw[1]["type"] != "paragraph" {
		t.Fatalf("missing type tags: %s", data)
	}

	var decoded QuestionList
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	p, ok := decoded[1].(ParagraphQuestion)
	if !ok || len(p.Questions) != 1 || p.Questions[0].ID != "c1" {
		t.Fatalf("paragraph not restored: %#v", decoded[1])
	}

	if _, err := UnmarshalQuestion([]byte(`{"type":"essay"}`)); !IsValidation(err) {
		t.Fatalf("expected validation error for unknown type, got %v", err)
	}
}

func TestAssignmentAvailable(t *testing.T) {
	start := mustTime(t, "2024-05-01T09:00:00Z")
	end := mustTime(t, "2024-05-01T17:00:00Z")
	a := Assignment{AvailabilityStart: &start, AvailabilityEnd: &end}

	if a.Available(mustTime(t, "2024-05-01T08:59:59Z")) {
		t.Fatalf("expected unavailable before start")
	}
	if !a.Available(mustTime(t, "2024-05-01T12:00:00Z")) {
		t.Fatalf("expected available inside window")
	}
	if a.Available(mustTime(t, "2024-05-01T17:00:01Z")) {
		t.Fatalf("expected unavailable after end")
	}
	if !(Assignment{}).Available(start) {
		t.Fatalf("open window should always be available")
	}
}

func mustTime(t *testing.T, raw string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		t.Fatalf("parse %s: %v", raw, err)
	}
	return ts
}
