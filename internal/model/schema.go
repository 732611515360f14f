package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

// Name length bounds, counted in characters.
const (
	NameMinLength = 1
	NameMaxLength = 255
)

const schemaURL = "todo.schema.json"

const schemaSource = `{
  "type": "object",
  "required": ["name"],
  "properties": {
    "name": {"type": "string", "minLength": 1, "maxLength": 255},
    "status": {"type": "integer"},
    "created_at": {"type": "string", "format": "date-time"},
    "update_at": {"type": "string", "format": "date-time"}
  }
}`

var todoSchema = mustCompileSchema()

func mustCompileSchema() *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	compiler.AssertFormat = true
	if err := compiler.AddResource(schemaURL, strings.NewReader(schemaSource)); err != nil {
		panic(fmt.Sprintf("todo schema: %v", err))
	}
	return compiler.MustCompile(schemaURL)
}

// ErrInvalid is matched by every *ValidationError via errors.Is.
var ErrInvalid = errors.New("invalid todo")

// Rule names a violated constraint.
type Rule string

const (
	RuleRequired  Rule = "required"
	RuleMinLength Rule = "min_length"
	RuleMaxLength Rule = "max_length"
	RuleType      Rule = "type"
	RuleFormat    Rule = "format"
)

// FieldError is one field-level constraint violation.
type FieldError struct {
	Field   string `json:"field"`
	Rule    Rule   `json:"rule"`
	Message string `json:"message"`
}

// ValidationError lists every field that failed validation.
type ValidationError struct {
	Fields []FieldError `json:"fields"`
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return ErrInvalid.Error()
	}
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Message)
	}
	return strings.Join(msgs, " ")
}

func (e *ValidationError) Is(target error) bool { return target == ErrInvalid }

// Field returns the first message for the named field, or "".
func (e *ValidationError) Field(name string) string {
	for _, f := range e.Fields {
		if f.Field == name {
			return f.Message
		}
	}
	return ""
}

// Candidate is unvalidated input for a todo. Nil fields take defaults.
type Candidate struct {
	Name      *string    `json:"name,omitempty"`
	Status    *int       `json:"status,omitempty"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
	UpdateAt  *time.Time `json:"update_at,omitempty"`
}

// CandidateFrom turns an existing record into a candidate, keeping every field.
func CandidateFrom(t Todo) Candidate {
	c := Candidate{Name: &t.Name, Status: &t.Status}
	if !t.CreatedAt.IsZero() {
		c.CreatedAt = &t.CreatedAt
	}
	if !t.UpdateAt.IsZero() {
		c.UpdateAt = &t.UpdateAt
	}
	return c
}

// Normalize validates c and fills in defaults: status 0 and timestamps set
// to now when absent. The returned record has no ID.
func Normalize(c Candidate, now time.Time) (Todo, error) {
	if c.Name != nil {
		trimmed := strings.TrimSpace(*c.Name)
		c.Name = &trimmed
	}
	if c.CreatedAt != nil && c.CreatedAt.IsZero() {
		c.CreatedAt = nil
	}
	if c.UpdateAt != nil && c.UpdateAt.IsZero() {
		c.UpdateAt = nil
	}

	if err := validate(c); err != nil {
		return Todo{}, err
	}

	t := Todo{Name: *c.Name, CreatedAt: now, UpdateAt: now}
	if c.Status != nil {
		t.Status = *c.Status
	}
	if c.CreatedAt != nil {
		t.CreatedAt = *c.CreatedAt
	}
	if c.UpdateAt != nil {
		t.UpdateAt = *c.UpdateAt
	}
	return t, nil
}

// ValidateName checks a single name value, for inline form feedback.
func ValidateName(name string) error {
	_, err := Normalize(Candidate{Name: &name}, time.Now())
	return err
}

func validate(c Candidate) error {
	raw, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal candidate: %w", err)
	}
	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("unmarshal candidate: %w", err)
	}

	err = todoSchema.Validate(doc)
	if err == nil {
		return nil
	}
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return err
	}
	out := &ValidationError{}
	collectFieldErrors(out, ve)
	return out
}

func collectFieldErrors(out *ValidationError, err *jsonschema.ValidationError) {
	if len(err.Causes) == 0 {
		out.Fields = append(out.Fields, fieldErrorsFor(err)...)
		return
	}
	for _, cause := range err.Causes {
		collectFieldErrors(out, cause)
	}
}

func fieldErrorsFor(err *jsonschema.ValidationError) []FieldError {
	keyword := err.KeywordLocation
	if i := strings.LastIndex(keyword, "/"); i >= 0 {
		keyword = keyword[i+1:]
	}

	if keyword == "required" {
		var fields []FieldError
		for _, name := range quoted(err.Message) {
			fields = append(fields, FieldError{Field: name, Rule: RuleRequired, Message: message(name, RuleRequired)})
		}
		return fields
	}

	field := strings.TrimPrefix(strings.TrimPrefix(err.InstanceLocation, "#"), "/")
	var rule Rule
	switch keyword {
	case "minLength":
		rule = RuleMinLength
	case "maxLength":
		rule = RuleMaxLength
	case "format":
		rule = RuleFormat
	default:
		rule = RuleType
	}
	return []FieldError{{Field: field, Rule: rule, Message: message(field, rule)}}
}

func message(field string, rule Rule) string {
	label := "Value"
	if field != "" {
		label = strings.ToUpper(field[:1]) + strings.ReplaceAll(field[1:], "_", " ")
	}
	switch rule {
	case RuleRequired:
		return label + " is required."
	case RuleMinLength:
		return fmt.Sprintf("%s must be at least %d characters.", label, NameMinLength)
	case RuleMaxLength:
		return fmt.Sprintf("%s must be at most %d characters.", label, NameMaxLength)
	case RuleFormat:
		return label + " must be a valid date."
	}
	return label + " has an invalid value."
}

// quoted extracts 'single-quoted' names from a schema message such as
// "missing properties: 'name'".
func quoted(s string) []string {
	parts := strings.Split(s, "'")
	var out []string
	for i := 1; i < len(parts); i += 2 {
		out = append(out, parts[i])
	}
	return out
}
