// Package browser defines the automation capability surface the
// browser-driven adapters consume. Adapters depend only on the Session
// interface; the chromedp driver is one implementation of it.
package browser

import "context"

// Launcher creates isolated browser sessions. Each session owns its own
// browser instance with no shared cookies, storage, or fingerprinting
// state.
type Launcher interface {
	NewSession(ctx context.Context) (Session, error)
}

// Session is one scoped browser page. Every method honors ctx deadlines;
// callers bound each step with context.WithTimeout. Close must be safe to
// call exactly once on every exit path.
type Session interface {
	// Navigate loads the given URL and waits for the load event.
	Navigate(ctx context.Context, url string) error

	// Status returns the HTTP status of the most recent main-document
	// response, or 0 when none has been observed yet.
	Status() int

	// Title returns the current document title.
	Title(ctx context.Context) (string, error)

	// PageText returns the rendered body text of the current page.
	PageText(ctx context.Context) (string, error)

	// Evaluate runs a JavaScript expression in page context and
	// unmarshals its result into out (pass nil to discard).
	Evaluate(ctx context.Context, js string, out any) error

	// SetField assigns a value to a form field directly and fires
	// synthetic input and change events, the way single-page apps expect
	// state changes to arrive.
	SetField(ctx context.Context, selector, value string) error

	// SendKeys types keystrokes into the element matching selector.
	SendKeys(ctx context.Context, selector, keys string) error

	// Click clicks the first element matching selector.
	Click(ctx context.Context, selector string) error

	// WaitVisible blocks until an element matching selector is visible.
	WaitVisible(ctx context.Context, selector string) error

	// WaitFunc polls the given JavaScript expression until it evaluates
	// truthy.
	WaitFunc(ctx context.Context, js string) error

	// Close releases the underlying browser instance.
	Close() error
}
