package reporting_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/tripwire-cli/api/schemas"
	"github.com/xkilldash9x/tripwire-cli/internal/reporting"
	"github.com/xkilldash9x/tripwire-cli/internal/tolerance"
)

func TestAssemble(t *testing.T) {
	s := fixtureSummary()

	assert.Equal(t, "run-123", s.RunID)
	assert.Equal(t, "Checkout Flow", s.Name)
	assert.Equal(t, "https://shop.test", s.BaseURL)
	assert.Equal(t, fixedTime, s.Timestamp)
	assert.False(t, s.Success)
	assert.Equal(t, 1, s.FailedSteps())
	assert.Equal(t, []int{404}, s.Tolerance.HTTPStatusAllowlist)

	assert.Equal(t, schemas.CategoryCount{Raw: 2, Effective: 1}, s.Counts[schemas.CategoryHTTPError])
	assert.Equal(t, schemas.CategoryCount{Raw: 1, Effective: 1}, s.Counts[schemas.CategoryConsoleError])
	assert.False(t, s.CategoryOK[schemas.CategoryHTTPError])
	assert.False(t, s.CategoryOK[schemas.CategoryConsoleError])
	assert.True(t, s.CategoryOK[schemas.CategoryPageError])
	assert.True(t, s.CategoryOK[schemas.CategoryRequestFailure])

	require.Len(t, s.Effective.HTTPErrors, 1)
	assert.Equal(t, 500, s.Effective.HTTPErrors[0].Status)
}

func TestAssemble_EveryCategoryPresent(t *testing.T) {
	s := reporting.Assemble(reporting.AssembleInput{
		RunID:      "clean",
		Evaluation: tolerance.Evaluate(schemas.RawSignals{}, schemas.ToleranceConfig{}, schemas.Overrides{}),
	})
	assert.True(t, s.Success, "no steps and no signals is a pass")
	assert.Empty(t, s.Name)
	for _, c := range schemas.Categories {
		assert.Contains(t, s.Counts, c)
		assert.True(t, s.CategoryOK[c], c)
	}
}

func TestAssemble_DoesNotAliasInput(t *testing.T) {
	in := fixtureInput()
	s := reporting.Assemble(in)

	in.Outcomes[0].Note = "mutated"
	in.Evaluation.Effective.HTTPErrors[0].Status = 999
	in.Evaluation.OK[schemas.CategoryHTTPError] = true
	in.Definition.Tolerate.HTTPStatusAllowlist[0] = 418

	assert.Empty(t, s.Steps[0].Note)
	assert.Equal(t, 500, s.Effective.HTTPErrors[0].Status)
	assert.False(t, s.CategoryOK[schemas.CategoryHTTPError])
	assert.Equal(t, []int{404}, s.Tolerance.HTTPStatusAllowlist)
}

func TestAssemble_OverridesAreRecorded(t *testing.T) {
	in := fixtureInput()
	in.Overrides = schemas.Overrides{IgnoreHTTPErrors: true}
	s := reporting.Assemble(in)
	assert.True(t, s.Overrides.IgnoreHTTPErrors)
}
