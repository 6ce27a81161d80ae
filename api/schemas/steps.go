package schemas

import (
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ActionKind names one member of the closed step vocabulary.
type ActionKind string

const (
	ActionNavigate        ActionKind = "navigate"
	ActionClick           ActionKind = "click"
	ActionType            ActionKind = "type"
	ActionFill            ActionKind = "fill"
	ActionWaitForSelector ActionKind = "waitForSelector"
	ActionExpectVisible   ActionKind = "expectVisible"
	ActionExpectText      ActionKind = "expectText"
	ActionWait            ActionKind = "wait"
	ActionScreenshot      ActionKind = "screenshot"
)

// DefaultWaitForSelectorTimeout applies to waitForSelector, expectVisible and
// expectText when the step does not set timeoutMs.
const DefaultWaitForSelectorTimeout = 10 * time.Second

// SelectorState is the lifecycle state a waitForSelector step waits for.
type SelectorState string

const (
	StateVisible  SelectorState = "visible"
	StateHidden   SelectorState = "hidden"
	StateAttached SelectorState = "attached"
	StateDetached SelectorState = "detached"
)

// Valid reports whether s is one of the known states.
func (s SelectorState) Valid() bool {
	switch s {
	case StateVisible, StateHidden, StateAttached, StateDetached:
		return true
	}
	return false
}

// Action is the closed union of step kinds. The unexported marker keeps the
// set of implementations inside this package, so a type switch over the
// concrete types below is exhaustive.
type Action interface {
	Kind() ActionKind
	isAction()
}

// Step is one declarative browser action.
type Step struct {
	Action Action
}

// Kind returns the kind of the wrapped action, or "" for an empty step.
func (s Step) Kind() ActionKind {
	if s.Action == nil {
		return ""
	}
	return s.Action.Kind()
}

// MarshalJSON flattens the action into one object tagged with an "action"
// field, the same shape definitions are written in.
func (s Step) MarshalJSON() ([]byte, error) {
	fields := map[string]interface{}{}
	if s.Action != nil {
		raw, err := json.Marshal(s.Action)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, err
		}
	}
	fields["action"] = s.Kind()
	return json.Marshal(fields)
}

// String renders a short human description, used in logs and reports.
func (s Step) String() string {
	switch a := s.Action.(type) {
	case Navigate:
		if a.URL != "" {
			return fmt.Sprintf("navigate %s", a.URL)
		}
		return fmt.Sprintf("navigate %s", a.Path)
	case Click:
		return fmt.Sprintf("click %s", a.Selector)
	case Type:
		return fmt.Sprintf("type into %s", a.Selector)
	case Fill:
		return fmt.Sprintf("fill %s", a.Selector)
	case WaitForSelector:
		return fmt.Sprintf("wait for %s to be %s", a.Selector, a.StateOrDefault())
	case ExpectVisible:
		return fmt.Sprintf("expect %s visible", a.Selector)
	case ExpectText:
		return fmt.Sprintf("expect %s to contain %q", a.Selector, a.Text)
	case Wait:
		return fmt.Sprintf("wait %dms", a.DurationMs)
	case Screenshot:
		if a.Name != "" {
			return fmt.Sprintf("screenshot %s", a.Name)
		}
		return "screenshot"
	case nil:
		return "<empty step>"
	}
	return string(s.Kind())
}

// Navigate loads URL, or Path resolved against the run's base URL.
type Navigate struct {
	URL  string `json:"url,omitempty" yaml:"url,omitempty"`
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

// Click clicks the first actionable element matching Selector.
type Click struct {
	Selector string `json:"selector" yaml:"selector"`
}

// Type clears the field and types Text key by key.
type Type struct {
	Selector   string `json:"selector" yaml:"selector"`
	Text       string `json:"text" yaml:"text"`
	PressEnter bool   `json:"pressEnter,omitempty" yaml:"pressEnter,omitempty"`
}

// Fill sets the field value directly, without per-key events.
type Fill struct {
	Selector string `json:"selector" yaml:"selector"`
	Text     string `json:"text" yaml:"text"`
}

// WaitForSelector blocks until Selector reaches State.
type WaitForSelector struct {
	Selector  string        `json:"selector" yaml:"selector"`
	State     SelectorState `json:"state,omitempty" yaml:"state,omitempty"`
	TimeoutMs int           `json:"timeoutMs,omitempty" yaml:"timeoutMs,omitempty"`
}

// StateOrDefault returns State, defaulting to visible.
func (w WaitForSelector) StateOrDefault() SelectorState {
	if w.State == "" {
		return StateVisible
	}
	return w.State
}

// ExpectVisible asserts that Selector becomes visible.
type ExpectVisible struct {
	Selector  string `json:"selector" yaml:"selector"`
	TimeoutMs int    `json:"timeoutMs,omitempty" yaml:"timeoutMs,omitempty"`
}

// ExpectText asserts that the rendered text of Selector contains Text.
type ExpectText struct {
	Selector  string `json:"selector" yaml:"selector"`
	Text      string `json:"text" yaml:"text"`
	TimeoutMs int    `json:"timeoutMs,omitempty" yaml:"timeoutMs,omitempty"`
}

// Wait sleeps for DurationMs. It has no completion condition.
type Wait struct {
	DurationMs int `json:"durationMs" yaml:"durationMs"`
}

// Screenshot captures a full-page image.
type Screenshot struct {
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
}

func (Navigate) Kind() ActionKind        { return ActionNavigate }
func (Click) Kind() ActionKind           { return ActionClick }
func (Type) Kind() ActionKind            { return ActionType }
func (Fill) Kind() ActionKind            { return ActionFill }
func (WaitForSelector) Kind() ActionKind { return ActionWaitForSelector }
func (ExpectVisible) Kind() ActionKind   { return ActionExpectVisible }
func (ExpectText) Kind() ActionKind      { return ActionExpectText }
func (Wait) Kind() ActionKind            { return ActionWait }
func (Screenshot) Kind() ActionKind      { return ActionScreenshot }

func (Navigate) isAction()        {}
func (Click) isAction()           {}
func (Type) isAction()            {}
func (Fill) isAction()            {}
func (WaitForSelector) isAction() {}
func (ExpectVisible) isAction()   {}
func (ExpectText) isAction()      {}
func (Wait) isAction()            {}
func (Screenshot) isAction()      {}

// TimeoutOrDefault converts a step's timeoutMs into a duration.
func TimeoutOrDefault(ms int, def time.Duration) time.Duration {
	if ms <= 0 {
		return def
	}
	return time.Duration(ms) * time.Millisecond
}
