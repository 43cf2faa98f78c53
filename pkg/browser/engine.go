// Package browser wraps the automation engine behind small interfaces. The
// session core never inspects profile directory contents; it only asks the
// engine to open a context against a directory it controls.
package browser

// Page exposes the page operations the session core and action handlers
// need. Everything else the underlying automation library can do stays
// behind this boundary.
type Page interface {
	// Navigate loads a URL, waiting per opts before returning.
	Navigate(url string, opts NavigateOptions) error

	// URL returns the page's current URL.
	URL() string

	// Title returns the page's current title.
	Title() (string, error)

	// Screenshot captures the page to a PNG file at path.
	Screenshot(path string) error
}

// Context is an open browser profile bound to a directory. Closing it
// flushes the profile state (cookies, storage) back to that directory.
type Context interface {
	// Page returns the context's active page.
	Page() Page

	// CurrentURL returns the active page's URL.
	CurrentURL() string

	// Close closes the page and the underlying profile context. Safe to
	// call on every exit path; the profile directory remains on disk.
	Close() error
}

// Engine opens profile contexts. Implementations own the browser process;
// the session core owns the directories handed to Open.
type Engine interface {
	// Open launches a context whose durable state lives in profileDir,
	// creating profile files there on first use.
	Open(profileDir string, opts ContextOptions) (Context, error)
}
