// File: cmd/validate_test.go
package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/tripwire-cli/internal/mocks"
)

func TestValidateCmd(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeTestConfig(t, dir, "")
	def := writeFile(t, dir, "login.json", `{
  "name": "login",
  "description": "sign in with a seeded account",
  "baseUrl": "https://app.test",
  "steps": [
    {"action": "navigate", "path": "/login"},
    {"action": "fill", "selector": "#user", "text": "alice"},
    {"action": "expectText", "selector": "h1", "text": "Welcome"}
  ],
  "tolerate": {"httpStatusAllowlist": [404]}
}`)

	session := mocks.NewMockBrowserSession()
	out, err := executeCommand(t, testDeps(session, nil), "validate", def, "--config", cfgPath)
	require.NoError(t, err)

	assert.Contains(t, out, def+": login\n")
	assert.Contains(t, out, "  sign in with a seeded account\n")
	assert.Contains(t, out, "  base URL: https://app.test\n")
	assert.Contains(t, out, "    0  navigate /login\n")
	assert.Contains(t, out, "    1  fill #user\n")
	assert.Contains(t, out, "    2  expect h1 to contain \"Welcome\"\n")
	assert.Contains(t, out, "declares a tolerance policy")
	assert.Contains(t, out, "3 step(s), OK\n")
	session.AssertNotCalled(t, "Navigate", mock.Anything, mock.Anything)
}

func TestValidateCmd_Invalid(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeTestConfig(t, dir, "")
	def := writeFile(t, dir, "broken.yaml", "steps:\n  - selector: '#x'\n")

	_, err := executeCommand(t, testDeps(nil, nil), "validate", def, "--config", cfgPath)
	require.Error(t, err)
	assert.Equal(t, ExitConfigError, ExitCode(err))
}
