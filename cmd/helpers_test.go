// File: cmd/helpers_test.go
package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/tripwire-cli/api/schemas"
	"github.com/xkilldash9x/tripwire-cli/internal/config"
	"github.com/xkilldash9x/tripwire-cli/internal/mocks"
	"github.com/xkilldash9x/tripwire-cli/internal/observability"
	"github.com/xkilldash9x/tripwire-cli/internal/store"
)

// fakeStore is a mock historyStore.
type fakeStore struct {
	mock.Mock
}

func (f *fakeStore) SaveRun(ctx context.Context, summary *schemas.RunSummary) error {
	return f.Called(ctx, summary).Error(0)
}

func (f *fakeStore) EnsureSchema(ctx context.Context) error {
	return f.Called(ctx).Error(0)
}

func (f *fakeStore) RecentRuns(ctx context.Context, name string, limit int) ([]store.RunRecord, error) {
	args := f.Called(ctx, name, limit)
	records, _ := args.Get(0).([]store.RunRecord)
	return records, args.Error(1)
}

// fakeStoreProvider hands out a fixed store, or a fixed error.
type fakeStoreProvider struct {
	store   historyStore
	err     error
	created int
	closed  int
}

func (p *fakeStoreProvider) Create(context.Context, config.Interface, *zap.Logger) (historyStore, func(), error) {
	if p.err != nil {
		return nil, nil, p.err
	}
	p.created++
	return p.store, func() { p.closed++ }, nil
}

// testDeps returns dependencies whose every session comes from session.
func testDeps(session *mocks.MockBrowserSession, stores storeProvider) *dependencies {
	factory := &mocks.MockSessionFactory{}
	if session != nil {
		factory.On("NewSession", mock.Anything).Return(session, nil)
	}
	if stores == nil {
		stores = &fakeStoreProvider{}
	}
	return &dependencies{
		sessionFactory: func(config.Interface, *zap.Logger) schemas.SessionFactory { return factory },
		stores:         stores,
	}
}

// writeFile writes content to name inside dir and returns the path.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// writeTestConfig writes a config file that keeps every artifact inside dir
// and never takes failure screenshots.
func writeTestConfig(t *testing.T, dir, extra string) string {
	t.Helper()
	return writeFile(t, dir, "tripwire.yaml", `
logger:
  level: error
run:
  screenshot_dir: `+filepath.Join(dir, "shots")+`
  capture_on_failure: false
report:
  output_dir: `+filepath.Join(dir, "reports")+`
  formats: [json, junit]
  console: true
`+extra)
}

// executeCommand runs the root command built from deps with args and returns
// everything it printed.
func executeCommand(t *testing.T, deps *dependencies, args ...string) (string, error) {
	t.Helper()
	t.Cleanup(observability.ResetForTest)

	root := newRootCommand(deps)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}
