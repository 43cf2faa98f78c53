// Package pathguard confines filesystem operations to a designated root
// directory. Session profile directories are derived from caller-supplied
// identifiers, so every path the service creates or deletes is checked
// against the sessions root before it is touched.
package pathguard

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Guard validates that paths stay inside a fixed root directory.
type Guard struct {
	root string
}

// NewGuard creates a guard rooted at the given directory. The root is
// resolved to an absolute, cleaned path; it does not need to exist yet.
func NewGuard(root string) (*Guard, error) {
	if root == "" {
		return nil, fmt.Errorf("guard root cannot be empty")
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve guard root: %w", err)
	}

	return &Guard{root: filepath.Clean(abs)}, nil
}

// Root returns the absolute root directory the guard enforces.
func (g *Guard) Root() string {
	return g.root
}

// Validate resolves the path and checks that it lies strictly inside the
// root. The root itself is not a valid target; operations act on entries
// under it, never on the root.
func (g *Guard) Validate(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("path cannot be empty")
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}
	abs = filepath.Clean(abs)

	if abs == g.root {
		return "", fmt.Errorf("path %q is the guarded root itself", path)
	}

	rel, err := filepath.Rel(g.root, abs)
	if err != nil {
		return "", fmt.Errorf("failed to relativize path: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes the guarded root %q", path, g.root)
	}

	return abs, nil
}
