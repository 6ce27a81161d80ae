package schemas

import "time"

// SignalCategory tags a runtime diagnostic.
type SignalCategory string

const (
	CategoryConsoleError   SignalCategory = "consoleError"
	CategoryPageError      SignalCategory = "pageError"
	CategoryHTTPError      SignalCategory = "httpError"
	CategoryRequestFailure SignalCategory = "requestFailure"
)

// Categories lists every signal category in report order.
var Categories = []SignalCategory{
	CategoryConsoleError,
	CategoryPageError,
	CategoryHTTPError,
	CategoryRequestFailure,
}

// ConsoleError is a console message logged at error level.
type ConsoleError struct {
	Text       string    `json:"text"`
	Location   string    `json:"location,omitempty"`
	ObservedAt time.Time `json:"observedAt"`
}

// PageError is an uncaught exception thrown in the page.
type PageError struct {
	Message    string    `json:"message"`
	ObservedAt time.Time `json:"observedAt"`
}

// HTTPError is a response with a status code of 400 or above.
type HTTPError struct {
	URL        string    `json:"url"`
	Status     int       `json:"status"`
	StatusText string    `json:"statusText,omitempty"`
	ObservedAt time.Time `json:"observedAt"`
}

// RequestFailure is a request that never produced a response.
type RequestFailure struct {
	URL        string    `json:"url"`
	Method     string    `json:"method"`
	Failure    string    `json:"failure"`
	ObservedAt time.Time `json:"observedAt"`
}

// RawSignals groups the four per-category logs. Each slice is in arrival
// order; no ordering holds across slices.
type RawSignals struct {
	ConsoleErrors   []ConsoleError   `json:"consoleErrors"`
	PageErrors      []PageError      `json:"pageErrors"`
	HTTPErrors      []HTTPError      `json:"httpErrors"`
	RequestFailures []RequestFailure `json:"requestFailures"`
}

// Count returns the number of records in the given category.
func (r RawSignals) Count(c SignalCategory) int {
	switch c {
	case CategoryConsoleError:
		return len(r.ConsoleErrors)
	case CategoryPageError:
		return len(r.PageErrors)
	case CategoryHTTPError:
		return len(r.HTTPErrors)
	case CategoryRequestFailure:
		return len(r.RequestFailures)
	}
	return 0
}

// Total returns the number of records across all categories.
func (r RawSignals) Total() int {
	n := 0
	for _, c := range Categories {
		n += r.Count(c)
	}
	return n
}

// -- Browser Event Payloads --

// ConsoleMessage is delivered for every console call, whatever its level.
type ConsoleMessage struct {
	Level    string
	Text     string
	Location string
	Time     time.Time
}

// Exception is delivered for every uncaught page exception.
type Exception struct {
	Message string
	Time    time.Time
}

// FailedRequest is delivered when a request fails at the network layer.
type FailedRequest struct {
	URL     string
	Method  string
	Failure string
	Time    time.Time
}

// Response is delivered for every response the page receives.
type Response struct {
	URL        string
	Status     int
	StatusText string
	Time       time.Time
}
