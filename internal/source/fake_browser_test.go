package source

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/sunbase-energy/sitescout/internal/browser"
	"github.com/sunbase-energy/sitescout/internal/config"
)

// fakeSession scripts browser behavior for adapter tests. Evaluate
// results are keyed by a substring of the script.
type fakeSession struct {
	title    string
	pageText string
	status   int
	evals    map[string]any

	navErr  error
	waitErr error

	navigated []string
	evaled    []string
	fields    map[string]string
	keys      []string
	clicks    []string
	failClick map[string]bool

	closed int
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		evals:     map[string]any{},
		fields:    map[string]string{},
		failClick: map[string]bool{},
	}
}

func (f *fakeSession) Navigate(_ context.Context, url string) error {
	f.navigated = append(f.navigated, url)
	return f.navErr
}

func (f *fakeSession) Status() int { return f.status }

func (f *fakeSession) Title(context.Context) (string, error) { return f.title, nil }

func (f *fakeSession) PageText(context.Context) (string, error) { return f.pageText, nil }

func (f *fakeSession) Evaluate(_ context.Context, js string, out any) error {
	f.evaled = append(f.evaled, js)
	for key, val := range f.evals {
		if strings.Contains(js, key) {
			if out == nil {
				return nil
			}
			b, err := json.Marshal(val)
			if err != nil {
				return err
			}
			return json.Unmarshal(b, out)
		}
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal([]byte(`""`), out)
}

func (f *fakeSession) SetField(_ context.Context, selector, value string) error {
	f.fields[selector] = value
	return nil
}

func (f *fakeSession) SendKeys(_ context.Context, _, keys string) error {
	f.keys = append(f.keys, keys)
	return nil
}

func (f *fakeSession) Click(_ context.Context, selector string) error {
	if f.failClick[selector] {
		return errors.New("no element matches " + selector)
	}
	f.clicks = append(f.clicks, selector)
	return nil
}

func (f *fakeSession) WaitVisible(context.Context, string) error { return f.waitErr }

func (f *fakeSession) WaitFunc(context.Context, string) error { return f.waitErr }

func (f *fakeSession) Close() error {
	f.closed++
	return nil
}

// fakeLauncher hands out one scripted session and counts launches.
type fakeLauncher struct {
	sess     *fakeSession
	err      error
	launched int
}

func (l *fakeLauncher) NewSession(context.Context) (browser.Session, error) {
	l.launched++
	if l.err != nil {
		return nil, l.err
	}
	return l.sess, nil
}

// testBrowserConfig keeps step timeouts short for tests.
func testBrowserConfig() config.BrowserConfig {
	return config.BrowserConfig{Headless: true, NavTimeout: 2, WaitTimeout: 1}
}
