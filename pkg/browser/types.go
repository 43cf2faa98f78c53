package browser

// Viewport represents the browser viewport dimensions.
type Viewport struct {
	Width  int
	Height int
}

// ContextOptions configures an opened profile context.
type ContextOptions struct {
	// Headless controls whether the browser runs without a visible window.
	// Manual login flows need a visible window.
	Headless bool

	// Viewport sets the initial viewport size.
	Viewport *Viewport

	// UserAgent overrides the browser user agent.
	UserAgent string

	// Timeout sets the default timeout for page operations (milliseconds).
	Timeout float64
}

// NavigateOptions configures page navigation behavior.
type NavigateOptions struct {
	// WaitUntil specifies when to consider navigation successful.
	// Valid values: "load", "domcontentloaded", "networkidle".
	WaitUntil string

	// Timeout in milliseconds (0 means default).
	Timeout float64
}

// Default values for profile contexts. Viewport and user agent mirror a
// desktop Chrome so sites treat the automated profile like the browser the
// user logged in with.
const (
	DefaultTimeout        = 30000.0 // 30 seconds in milliseconds
	DefaultViewportWidth  = 1920
	DefaultViewportHeight = 1080
	DefaultUserAgent      = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)
