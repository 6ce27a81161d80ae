// File: internal/mocks/mocks.go
package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/xkilldash9x/tripwire-cli/api/schemas"
)

// -- Browser Session Mock --

// MockBrowserSession mocks schemas.BrowserSession. Action methods go through
// testify expectations. Event subscriptions are recorded so a test can emit
// events with the Emit* helpers; they do not need expectations.
type MockBrowserSession struct {
	mock.Mock

	mu        sync.Mutex
	console   []func(schemas.ConsoleMessage)
	exception []func(schemas.Exception)
	failed    []func(schemas.FailedRequest)
	response  []func(schemas.Response)
}

var _ schemas.BrowserSession = (*MockBrowserSession)(nil)

// NewMockBrowserSession returns an empty mock.
func NewMockBrowserSession() *MockBrowserSession {
	return &MockBrowserSession{}
}

func (m *MockBrowserSession) Navigate(ctx context.Context, url string) error {
	args := m.Called(ctx, url)
	return args.Error(0)
}

func (m *MockBrowserSession) Click(ctx context.Context, selector string) error {
	args := m.Called(ctx, selector)
	return args.Error(0)
}

func (m *MockBrowserSession) Fill(ctx context.Context, selector, text string) error {
	args := m.Called(ctx, selector, text)
	return args.Error(0)
}

func (m *MockBrowserSession) Type(ctx context.Context, selector, text string) error {
	args := m.Called(ctx, selector, text)
	return args.Error(0)
}

func (m *MockBrowserSession) PressKey(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockBrowserSession) WaitForSelector(ctx context.Context, selector string, state schemas.SelectorState, timeout time.Duration) error {
	args := m.Called(ctx, selector, state, timeout)
	return args.Error(0)
}

func (m *MockBrowserSession) ReadText(ctx context.Context, selector string) (string, error) {
	args := m.Called(ctx, selector)
	return args.String(0), args.Error(1)
}

func (m *MockBrowserSession) Screenshot(ctx context.Context, path string) error {
	args := m.Called(ctx, path)
	return args.Error(0)
}

func (m *MockBrowserSession) Close(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// --- Event subscriptions ---

func (m *MockBrowserSession) OnConsoleMessage(h func(schemas.ConsoleMessage)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.console = append(m.console, h)
}

func (m *MockBrowserSession) OnUncaughtException(h func(schemas.Exception)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exception = append(m.exception, h)
}

func (m *MockBrowserSession) OnRequestFailed(h func(schemas.FailedRequest)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failed = append(m.failed, h)
}

func (m *MockBrowserSession) OnResponse(h func(schemas.Response)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.response = append(m.response, h)
}

// Subscribed reports whether all four event subscriptions were installed.
func (m *MockBrowserSession) Subscribed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.console) > 0 && len(m.exception) > 0 && len(m.failed) > 0 && len(m.response) > 0
}

// EmitConsole delivers a console message to every subscriber.
func (m *MockBrowserSession) EmitConsole(msg schemas.ConsoleMessage) {
	m.mu.Lock()
	hs := append([]func(schemas.ConsoleMessage){}, m.console...)
	m.mu.Unlock()
	for _, h := range hs {
		h(msg)
	}
}

// EmitException delivers an uncaught exception to every subscriber.
func (m *MockBrowserSession) EmitException(e schemas.Exception) {
	m.mu.Lock()
	hs := append([]func(schemas.Exception){}, m.exception...)
	m.mu.Unlock()
	for _, h := range hs {
		h(e)
	}
}

// EmitRequestFailed delivers a network failure to every subscriber.
func (m *MockBrowserSession) EmitRequestFailed(r schemas.FailedRequest) {
	m.mu.Lock()
	hs := append([]func(schemas.FailedRequest){}, m.failed...)
	m.mu.Unlock()
	for _, h := range hs {
		h(r)
	}
}

// EmitResponse delivers a response to every subscriber.
func (m *MockBrowserSession) EmitResponse(r schemas.Response) {
	m.mu.Lock()
	hs := append([]func(schemas.Response){}, m.response...)
	m.mu.Unlock()
	for _, h := range hs {
		h(r)
	}
}

// -- Session Factory Mock --

// MockSessionFactory mocks schemas.SessionFactory.
type MockSessionFactory struct {
	mock.Mock
}

func (m *MockSessionFactory) NewSession(ctx context.Context) (schemas.BrowserSession, error) {
	args := m.Called(ctx)
	s, _ := args.Get(0).(schemas.BrowserSession)
	return s, args.Error(1)
}

// -- Run Store Mock --

// MockRunStore mocks schemas.RunStore.
type MockRunStore struct {
	mock.Mock
}

func (m *MockRunStore) SaveRun(ctx context.Context, summary *schemas.RunSummary) error {
	args := m.Called(ctx, summary)
	return args.Error(0)
}
