// Package browsertest provides in-memory fakes of the browser interfaces
// for exercising the session core without a real browser.
package browsertest

import (
	"fmt"
	"sync"

	"github.com/entrhq/sessiond/pkg/browser"
)

// FakeEngine records every opened context and lets tests script failures.
type FakeEngine struct {
	mu sync.Mutex

	// OpenErr, when set, fails the next Open call.
	OpenErr error

	// NavigateErr, when set, fails navigations on newly opened contexts.
	NavigateErr error

	// PageTitle is returned by Title on opened pages.
	PageTitle string

	// Contexts holds every context handed out, in open order.
	Contexts []*FakeContext
}

// NewFakeEngine creates a fake engine with a default page title.
func NewFakeEngine() *FakeEngine {
	return &FakeEngine{PageTitle: "Fake Page"}
}

// Open returns a new fake context bound to profileDir.
func (e *FakeEngine) Open(profileDir string, opts browser.ContextOptions) (browser.Context, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.OpenErr != nil {
		return nil, e.OpenErr
	}

	ctx := &FakeContext{
		ProfileDir: profileDir,
		page: &FakePage{
			navigateErr: e.NavigateErr,
			title:       e.PageTitle,
			url:         "about:blank",
		},
	}
	e.Contexts = append(e.Contexts, ctx)
	return ctx, nil
}

// OpenCount returns how many contexts have been opened.
func (e *FakeEngine) OpenCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.Contexts)
}

// LastContext returns the most recently opened context, or nil.
func (e *FakeEngine) LastContext() *FakeContext {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.Contexts) == 0 {
		return nil
	}
	return e.Contexts[len(e.Contexts)-1]
}

// FakeContext implements browser.Context.
type FakeContext struct {
	ProfileDir string
	Closed     bool
	page       *FakePage
}

func (c *FakeContext) Page() browser.Page {
	return c.page
}

func (c *FakeContext) CurrentURL() string {
	return c.page.url
}

func (c *FakeContext) Close() error {
	c.Closed = true
	return nil
}

// FakePage implements browser.Page, recording navigations.
type FakePage struct {
	navigateErr error
	title       string
	url         string

	// Navigations holds every URL passed to Navigate.
	Navigations []string

	// ScreenshotPaths holds every path passed to Screenshot.
	ScreenshotPaths []string
}

func (p *FakePage) Navigate(url string, opts browser.NavigateOptions) error {
	if p.navigateErr != nil {
		return fmt.Errorf("navigation failed: %w", p.navigateErr)
	}
	p.Navigations = append(p.Navigations, url)
	p.url = url
	return nil
}

func (p *FakePage) URL() string {
	return p.url
}

func (p *FakePage) Title() (string, error) {
	return p.title, nil
}

func (p *FakePage) Screenshot(path string) error {
	p.ScreenshotPaths = append(p.ScreenshotPaths, path)
	return nil
}
