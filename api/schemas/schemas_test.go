package schemas_test

import (
	"testing"
	"time"

	json "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/tripwire-cli/api/schemas"
)

func TestStep_MarshalJSON(t *testing.T) {
	tests := []struct {
		name string
		step schemas.Step
		want string
	}{
		{"navigate path", schemas.Step{Action: schemas.Navigate{Path: "/cart"}}, `{"action":"navigate","path":"/cart"}`},
		{"type with enter", schemas.Step{Action: schemas.Type{Selector: "#q", Text: "shoes", PressEnter: true}},
			`{"action":"type","pressEnter":true,"selector":"#q","text":"shoes"}`},
		{"wait", schemas.Step{Action: schemas.Wait{DurationMs: 250}}, `{"action":"wait","durationMs":250}`},
		{"screenshot without name", schemas.Step{Action: schemas.Screenshot{}}, `{"action":"screenshot"}`},
		{"empty step", schemas.Step{}, `{"action":""}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := json.ConfigCompatibleWithStandardLibrary.Marshal(tt.step)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(got))
		})
	}
}

func TestStep_String(t *testing.T) {
	tests := []struct {
		step schemas.Step
		want string
	}{
		{schemas.Step{Action: schemas.Navigate{URL: "https://a.test/x", Path: "/ignored"}}, "navigate https://a.test/x"},
		{schemas.Step{Action: schemas.Navigate{Path: "/login"}}, "navigate /login"},
		{schemas.Step{Action: schemas.Click{Selector: "#buy"}}, "click #buy"},
		{schemas.Step{Action: schemas.Type{Selector: "#email"}}, "type into #email"},
		{schemas.Step{Action: schemas.Fill{Selector: "#zip"}}, "fill #zip"},
		{schemas.Step{Action: schemas.WaitForSelector{Selector: ".spinner"}}, "wait for .spinner to be visible"},
		{schemas.Step{Action: schemas.WaitForSelector{Selector: ".spinner", State: schemas.StateDetached}}, "wait for .spinner to be detached"},
		{schemas.Step{Action: schemas.ExpectVisible{Selector: "#ok"}}, "expect #ok visible"},
		{schemas.Step{Action: schemas.ExpectText{Selector: "h1", Text: "Hi"}}, `expect h1 to contain "Hi"`},
		{schemas.Step{Action: schemas.Wait{DurationMs: 100}}, "wait 100ms"},
		{schemas.Step{Action: schemas.Screenshot{Name: "done"}}, "screenshot done"},
		{schemas.Step{Action: schemas.Screenshot{}}, "screenshot"},
		{schemas.Step{}, "<empty step>"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.step.String())
	}
}

func TestSelectorState_Valid(t *testing.T) {
	for _, s := range []schemas.SelectorState{schemas.StateVisible, schemas.StateHidden, schemas.StateAttached, schemas.StateDetached} {
		assert.True(t, s.Valid(), s)
	}
	assert.False(t, schemas.SelectorState("gone").Valid())
	assert.False(t, schemas.SelectorState("").Valid())
}

func TestTimeoutOrDefault(t *testing.T) {
	assert.Equal(t, schemas.DefaultWaitForSelectorTimeout, schemas.TimeoutOrDefault(0, schemas.DefaultWaitForSelectorTimeout))
	assert.Equal(t, 5*time.Second, schemas.TimeoutOrDefault(-1, 5*time.Second))
	assert.Equal(t, 1500*time.Millisecond, schemas.TimeoutOrDefault(1500, time.Second))
}

func TestRawSignals_Counts(t *testing.T) {
	raw := schemas.RawSignals{
		ConsoleErrors:   []schemas.ConsoleError{{Text: "a"}, {Text: "b"}},
		HTTPErrors:      []schemas.HTTPError{{URL: "https://a.test", Status: 500}},
		RequestFailures: []schemas.RequestFailure{{URL: "https://a.test/x", Failure: "net::ERR_ABORTED"}},
	}
	assert.Equal(t, 2, raw.Count(schemas.CategoryConsoleError))
	assert.Equal(t, 0, raw.Count(schemas.CategoryPageError))
	assert.Equal(t, 1, raw.Count(schemas.CategoryHTTPError))
	assert.Equal(t, 1, raw.Count(schemas.CategoryRequestFailure))
	assert.Equal(t, 0, raw.Count("bogus"))
	assert.Equal(t, 4, raw.Total())
}

func TestOverridesAndToleranceSwitches(t *testing.T) {
	o := schemas.Overrides{IgnoreHTTPErrors: true, IgnoreRequestFailures: true}
	tc := schemas.ToleranceConfig{ConsoleErrors: true, PageErrors: true}

	want := map[schemas.SignalCategory][2]bool{
		schemas.CategoryHTTPError:      {true, false},
		schemas.CategoryRequestFailure: {true, false},
		schemas.CategoryConsoleError:   {false, true},
		schemas.CategoryPageError:      {false, true},
	}
	for c, w := range want {
		assert.Equal(t, w[0], o.Ignores(c), "override %s", c)
		assert.Equal(t, w[1], tc.Tolerates(c), "toleration %s", c)
	}
	assert.False(t, o.Ignores("bogus"))
	assert.False(t, tc.Tolerates("bogus"))
}

func TestTestDefinition_Tolerance(t *testing.T) {
	var nilDef *schemas.TestDefinition
	assert.Equal(t, schemas.ToleranceConfig{}, nilDef.Tolerance())
	assert.Equal(t, schemas.ToleranceConfig{}, (&schemas.TestDefinition{}).Tolerance())

	def := &schemas.TestDefinition{Tolerate: &schemas.ToleranceConfig{HTTPStatusAllowlist: []int{404}}}
	assert.Equal(t, []int{404}, def.Tolerance().HTTPStatusAllowlist)
}

func TestRunSummary_FailedSteps(t *testing.T) {
	s := &schemas.RunSummary{Steps: []schemas.StepOutcome{{Success: true}, {Success: false}, {Success: false}}}
	assert.Equal(t, 2, s.FailedSteps())
	assert.Equal(t, 0, schemas.FailedSteps(nil))
}

func TestStepOutcome_DurationIsNotSerialized(t *testing.T) {
	o := schemas.StepOutcome{Index: 1, Step: schemas.Step{Action: schemas.Click{Selector: "#a"}}, Duration: time.Second, DurationMS: 1000}
	data, err := json.ConfigCompatibleWithStandardLibrary.Marshal(o)
	require.NoError(t, err)

	var fields map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &fields))
	assert.NotContains(t, fields, "Duration")
	assert.EqualValues(t, 1000, fields["durationMs"])
	assert.Equal(t, map[string]interface{}{"action": "click", "selector": "#a"}, fields["step"])
}
