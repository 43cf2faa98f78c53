package browser

import (
	"fmt"
	"io"
	"sync"

	"github.com/playwright-community/playwright-go"
)

// launchArgs disables sandboxing and automation fingerprinting so persistent
// profiles behave like a regular user's browser.
var launchArgs = []string{
	"--no-sandbox",
	"--disable-dev-shm-usage",
	"--disable-blink-features=AutomationControlled",
}

// PlaywrightEngine implements Engine on top of Playwright's Chromium with
// persistent contexts. One Playwright driver serves all contexts; contexts
// themselves are opened and closed per session operation.
type PlaywrightEngine struct {
	mu       sync.Mutex
	pw       *playwright.Playwright
	headless bool
	started  bool
}

// NewPlaywrightEngine creates an engine. Headless should be false for
// deployments where users complete logins manually.
func NewPlaywrightEngine(headless bool) *PlaywrightEngine {
	return &PlaywrightEngine{headless: headless}
}

// Start installs (if needed) and launches the Playwright driver. Must be
// called before Open. Driver output is discarded so it cannot pollute the
// service's own logs.
func (e *PlaywrightEngine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.started {
		return nil
	}

	opts := &playwright.RunOptions{
		Verbose: false,
		Stdout:  io.Discard,
		Stderr:  io.Discard,
	}

	if err := playwright.Install(opts); err != nil {
		return fmt.Errorf("failed to install playwright: %w", err)
	}

	pw, err := playwright.Run(opts)
	if err != nil {
		return fmt.Errorf("failed to start playwright: %w", err)
	}

	e.pw = pw
	e.started = true
	return nil
}

// Stop shuts down the Playwright driver. Contexts must be closed first.
func (e *PlaywrightEngine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.started {
		return nil
	}

	if err := e.pw.Stop(); err != nil {
		return fmt.Errorf("failed to stop playwright: %w", err)
	}
	e.started = false
	return nil
}

// Open launches a persistent Chromium context whose state lives in
// profileDir and returns it with one page ready.
func (e *PlaywrightEngine) Open(profileDir string, opts ContextOptions) (Context, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.started {
		return nil, fmt.Errorf("engine not started")
	}

	if opts.Viewport == nil {
		opts.Viewport = &Viewport{Width: DefaultViewportWidth, Height: DefaultViewportHeight}
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Timeout == 0 {
		opts.Timeout = DefaultTimeout
	}

	headless := opts.Headless || e.headless
	launchOpts := playwright.BrowserTypeLaunchPersistentContextOptions{
		Headless: &headless,
		Args:     launchArgs,
		Viewport: &playwright.Size{
			Width:  opts.Viewport.Width,
			Height: opts.Viewport.Height,
		},
		UserAgent: &opts.UserAgent,
	}

	context, err := e.pw.Chromium.LaunchPersistentContext(profileDir, launchOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to open profile context: %w", err)
	}

	// Persistent contexts open with one blank page; reuse it if present.
	var page playwright.Page
	if pages := context.Pages(); len(pages) > 0 {
		page = pages[0]
	} else {
		page, err = context.NewPage()
		if err != nil {
			context.Close()
			return nil, fmt.Errorf("failed to create page: %w", err)
		}
	}
	page.SetDefaultTimeout(opts.Timeout)

	return &playwrightContext{context: context, page: &playwrightPage{page: page}}, nil
}

// playwrightContext adapts a Playwright persistent context to Context.
type playwrightContext struct {
	context playwright.BrowserContext
	page    *playwrightPage
}

func (c *playwrightContext) Page() Page {
	return c.page
}

func (c *playwrightContext) CurrentURL() string {
	return c.page.URL()
}

func (c *playwrightContext) Close() error {
	_ = c.page.page.Close() // Ignore errors, continue cleanup
	if err := c.context.Close(); err != nil {
		return fmt.Errorf("failed to close context: %w", err)
	}
	return nil
}

// playwrightPage adapts a Playwright page to Page.
type playwrightPage struct {
	page playwright.Page
}

func (p *playwrightPage) Navigate(url string, opts NavigateOptions) error {
	gotoOpts := playwright.PageGotoOptions{}

	if opts.WaitUntil != "" {
		waitUntil := playwright.WaitUntilState(opts.WaitUntil)
		gotoOpts.WaitUntil = &waitUntil
	}
	if opts.Timeout > 0 {
		gotoOpts.Timeout = &opts.Timeout
	}

	if _, err := p.page.Goto(url, gotoOpts); err != nil {
		return fmt.Errorf("navigation failed: %w", err)
	}
	return nil
}

func (p *playwrightPage) URL() string {
	return p.page.URL()
}

func (p *playwrightPage) Title() (string, error) {
	title, err := p.page.Title()
	if err != nil {
		return "", fmt.Errorf("failed to read title: %w", err)
	}
	return title, nil
}

func (p *playwrightPage) Screenshot(path string) error {
	if _, err := p.page.Screenshot(playwright.PageScreenshotOptions{Path: &path}); err != nil {
		return fmt.Errorf("screenshot failed: %w", err)
	}
	return nil
}
