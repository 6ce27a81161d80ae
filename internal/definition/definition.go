// Package definition loads test definitions from YAML or JSON files and
// decodes each step's "action" tag into the matching schemas.Action.
package definition

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"gopkg.in/yaml.v3"

	"github.com/xkilldash9x/tripwire-cli/api/schemas"
)

var (
	// ErrNoSteps is returned for a definition without any steps.
	ErrNoSteps = errors.New("definition has no steps")
	// ErrMissingAction is returned for a step without an "action" field.
	ErrMissingAction = errors.New("step has no action")
	// ErrUnknownAction is returned for an "action" outside the step vocabulary.
	ErrUnknownAction = errors.New("unknown action")
)

// Format is the encoding of a definition file.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// json is case sensitive so "URL" and "url" are not silently merged.
var json = jsoniter.Config{
	EscapeHTML:             true,
	ValidateJsonRawMessage: true,
	CaseSensitive:          true,
}.Froze()

// DetectFormat picks the format from the file extension, falling back to
// sniffing the first non-blank byte.
func DetectFormat(path string, data []byte) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	case ".yaml", ".yml":
		return FormatYAML
	}
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
		return FormatJSON
	}
	return FormatYAML
}

// Load reads and decodes the definition at path.
func Load(path string) (*schemas.TestDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read definition: %w", err)
	}
	def, err := Parse(data, DetectFormat(path, data))
	if err != nil {
		return nil, fmt.Errorf("invalid definition %s: %w", path, err)
	}
	return def, nil
}

// Parse decodes data in the given format and checks the result.
func Parse(data []byte, format Format) (*schemas.TestDefinition, error) {
	var raw rawDefinition
	var err error
	switch format {
	case FormatJSON:
		err = json.Unmarshal(data, &raw)
	case FormatYAML:
		err = yaml.Unmarshal(data, &raw)
	default:
		return nil, fmt.Errorf("unsupported definition format %q", format)
	}
	if err != nil {
		return nil, err
	}

	def, err := raw.definition()
	if err != nil {
		return nil, err
	}
	if err := Validate(def); err != nil {
		return nil, err
	}
	return def, nil
}

// Validate checks the structural invariants every run relies on. It does
// not judge individual step fields; those fail at execution time.
func Validate(def *schemas.TestDefinition) error {
	if def == nil || len(def.Steps) == 0 {
		return ErrNoSteps
	}
	for i, step := range def.Steps {
		if step.Action == nil {
			return fmt.Errorf("step %d: %w", i, ErrMissingAction)
		}
	}
	return nil
}

// rawDefinition mirrors schemas.TestDefinition with steps still tagged.
type rawDefinition struct {
	Name        string                   `json:"name" yaml:"name"`
	Description string                   `json:"description" yaml:"description"`
	BaseURL     string                   `json:"baseUrl" yaml:"baseUrl"`
	Steps       []stepNode               `json:"steps" yaml:"steps"`
	Tolerate    *schemas.ToleranceConfig `json:"tolerate" yaml:"tolerate"`
}

func (r rawDefinition) definition() (*schemas.TestDefinition, error) {
	steps := make([]schemas.Step, len(r.Steps))
	for i, node := range r.Steps {
		a, err := node.action()
		if err != nil {
			if node.line > 0 {
				return nil, fmt.Errorf("step %d (line %d): %w", i, node.line, err)
			}
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
		steps[i] = schemas.Step{Action: a}
	}
	return &schemas.TestDefinition{
		Name:        r.Name,
		Description: r.Description,
		BaseURL:     r.BaseURL,
		Steps:       steps,
		Tolerate:    r.Tolerate,
	}, nil
}

// stepNode holds one undecoded step object. Decoding is deferred so errors
// keep their identity and carry the step index.
type stepNode struct {
	decode func(interface{}) error
	line   int
}

type actionProbe struct {
	Action string `json:"action" yaml:"action"`
}

func (s *stepNode) UnmarshalJSON(data []byte) error {
	raw := append([]byte(nil), data...)
	s.decode = func(v interface{}) error { return json.Unmarshal(raw, v) }
	return nil
}

func (s *stepNode) UnmarshalYAML(node *yaml.Node) error {
	s.decode = node.Decode
	s.line = node.Line
	return nil
}

func (s stepNode) action() (schemas.Action, error) {
	if s.decode == nil {
		return nil, ErrMissingAction
	}
	var probe actionProbe
	if err := s.decode(&probe); err != nil {
		return nil, err
	}
	return decodeAction(probe.Action, s.decode)
}

// decodeAction is the single place the "action" tag is mapped to a type.
func decodeAction(kind string, decode func(interface{}) error) (schemas.Action, error) {
	switch schemas.ActionKind(kind) {
	case schemas.ActionNavigate:
		return into[schemas.Navigate](decode)
	case schemas.ActionClick:
		return into[schemas.Click](decode)
	case schemas.ActionType:
		return into[schemas.Type](decode)
	case schemas.ActionFill:
		return into[schemas.Fill](decode)
	case schemas.ActionWaitForSelector:
		return into[schemas.WaitForSelector](decode)
	case schemas.ActionExpectVisible:
		return into[schemas.ExpectVisible](decode)
	case schemas.ActionExpectText:
		return into[schemas.ExpectText](decode)
	case schemas.ActionWait:
		return into[schemas.Wait](decode)
	case schemas.ActionScreenshot:
		return into[schemas.Screenshot](decode)
	case "":
		return nil, ErrMissingAction
	}
	return nil, fmt.Errorf("%w %q", ErrUnknownAction, kind)
}

func into[T schemas.Action](decode func(interface{}) error) (schemas.Action, error) {
	var a T
	if err := decode(&a); err != nil {
		return nil, err
	}
	return a, nil
}
