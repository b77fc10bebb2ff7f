package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const (
	MinOptions = 2
	MaxOptions = 5
)

// QuestionKind tags the variant of a Question.
type QuestionKind string

const (
	KindMCQ       QuestionKind = "mcq"
	KindParagraph QuestionKind = "paragraph"
)

// Question is implemented only by MCQQuestion and ParagraphQuestion.
type Question interface {
	QuestionID() string
	Kind() QuestionKind
	Validate() error
	isQuestion()
}

// MediaKind is the type of an attachment shown with a question.
type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaAudio MediaKind = "audio"
	MediaVideo MediaKind = "video"
)

// MediaAttachment references stored media; the bytes live elsewhere.
type MediaAttachment struct {
	Kind MediaKind `json:"kind"`
	Ref  string    `json:"ref"`
}

// MCQQuestion is a single multiple-choice question with one correct option.
type MCQQuestion struct {
	ID            string           `json:"id"`
	Text          string           `json:"text"`
	Options       []string         `json:"options"`
	CorrectIndex  int              `json:"correctIndex"`
	Justification string           `json:"justification,omitempty"`
	Media         *MediaAttachment `json:"media,omitempty"`
}

func (q MCQQuestion) QuestionID() string { return q.ID }
func (q MCQQuestion) Kind() QuestionKind { return KindMCQ }
func (MCQQuestion) isQuestion()          {}

func (q MCQQuestion) Validate() error {
	if strings.TrimSpace(q.Text) == "" {
		return Invalid("text", "is required")
	}
	if len(q.Options) < MinOptions || len(q.Options) > MaxOptions {
		return Invalid("options", fmt.Sprintf("must have between %d and %d entries", MinOptions, MaxOptions))
	}
	for i, opt := range q.Options {
		if strings.TrimSpace(opt) == "" {
			return Invalid(fmt.Sprintf("options[%d]", i), "is required")
		}
	}
	if q.CorrectIndex < 0 || q.CorrectIndex >= len(q.Options) {
		return Invalid("correctIndex", fmt.Sprintf("must be within 0..%d", len(q.Options)-1))
	}
	if q.Media != nil {
		switch q.Media.Kind {
		case MediaImage, MediaAudio, MediaVideo:
		default:
			return Invalid("media.kind", "must be image, audio or video")
		}
		if q.Media.Ref == "" {
			return Invalid("media.ref", "is required")
		}
	}
	return nil
}

// IsCorrect reports whether chosen matches the answer key. Unanswered is never correct.
func (q MCQQuestion) IsCorrect(chosen *int) bool {
	return chosen != nil && *chosen == q.CorrectIndex
}

// WithOptions returns a copy using opts, clamping CorrectIndex into range.
func (q MCQQuestion) WithOptions(opts []string) MCQQuestion {
	out := q
	out.Options = append([]string(nil), opts...)
	out.CorrectIndex = ClampIndex(q.CorrectIndex, len(opts))
	return out
}

// ClampIndex pins idx to [0, n-1]; n <= 0 yields 0.
func ClampIndex(idx, n int) int {
	if n <= 0 || idx < 0 {
		return 0
	}
	if idx > n-1 {
		return n - 1
	}
	return idx
}

// ParagraphQuestion is a reading passage followed by its own MCQs.
type ParagraphQuestion struct {
	ID        string        `json:"id"`
	Paragraph string        `json:"paragraph"`
	Questions []MCQQuestion `json:"questions"`
}

func (p ParagraphQuestion) QuestionID() string { return p.ID }
func (p ParagraphQuestion) Kind() QuestionKind { return KindParagraph }
func (ParagraphQuestion) isQuestion()          {}

func (p ParagraphQuestion) Validate() error {
	if strings.TrimSpace(p.Paragraph) == "" {
		return Invalid("paragraph", "is required")
	}
	if len(p.Questions) == 0 {
		return Invalid("questions", "paragraph needs at least one question")
	}
	for i, child := range p.Questions {
		if err := child.Validate(); err != nil {
			var v *ValidationError
			if errors.As(err, &v) {
				return Invalid(fmt.Sprintf("questions[%d].%s", i, v.Field), v.Message)
			}
			return err
		}
	}
	return nil
}

// Flatten expands paragraphs inline, returning every leaf MCQ in exam order.
func Flatten(questions []Question) []MCQQuestion {
	out := make([]MCQQuestion, 0, len(questions))
	for _, q := range questions {
		switch v := q.(type) {
		case MCQQuestion:
			out = append(out, v)
		case ParagraphQuestion:
			out = append(out, v.Questions...)
		}
	}
	return out
}

// ContainsQuestion reports whether id names a top-level question or a paragraph child.
func ContainsQuestion(questions []Question, id string) bool {
	for _, q := range questions {
		if q.QuestionID() == id {
			return true
		}
		if p, ok := q.(ParagraphQuestion); ok {
			for _, child := range p.Questions {
				if child.ID == id {
					return true
				}
			}
		}
	}
	return false
}

// QuestionList carries the "type" discriminator through JSON.
type QuestionList []Question

type questionEnvelope struct {
	Type QuestionKind `json:"type"`
}

func (l QuestionList) MarshalJSON() ([]byte, error) {
	items := make([]json.RawMessage, 0, len(l))
	for _, q := range l {
		raw, err := MarshalQuestion(q)
		if err != nil {
			return nil, err
		}
		items = append(items, raw)
	}
	return json.Marshal(items)
}

func (l *QuestionList) UnmarshalJSON(data []byte) error {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return err
	}
	out := make(QuestionList, 0, len(raws))
	for _, raw := range raws {
		q, err := UnmarshalQuestion(raw)
		if err != nil {
			return err
		}
		out = append(out, q)
	}
	*l = out
	return nil
}

// MarshalQuestion encodes a single question with its type tag.
func MarshalQuestion(q Question) ([]byte, error) {
	switch v := q.(type) {
	case MCQQuestion:
		return json.Marshal(struct {
			Type QuestionKind `json:"type"`
			MCQQuestion
		}{KindMCQ, v})
	case ParagraphQuestion:
		return json.Marshal(struct {
			Type QuestionKind `json:"type"`
			ParagraphQuestion
		}{KindParagraph, v})
	default:
		return nil, fmt.Errorf("unknown question type %T", q)
	}
}

// UnmarshalQuestion decodes a tagged question.
func UnmarshalQuestion(data []byte) (Question, error) {
	var env questionEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	switch env.Type {
	case KindMCQ:
		var q MCQQuestion
		if err := json.Unmarshal(data, &q); err != nil {
			return nil, err
		}
		return q, nil
	case KindParagraph:
		var p ParagraphQuestion
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, Invalid("type", fmt.Sprintf("unknown question type %q", env.Type))
	}
}
