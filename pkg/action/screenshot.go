package action

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/entrhq/sessiond/pkg/browser"
)

// ScreenshotHandler captures the current page to a timestamped PNG under a
// fixed output directory.
type ScreenshotHandler struct {
	// OutputDir receives the captured images.
	OutputDir string

	// now is the clock, overridable in tests.
	now func() time.Time
}

// NewScreenshotHandler creates the handler writing into outputDir.
func NewScreenshotHandler(outputDir string) *ScreenshotHandler {
	return &ScreenshotHandler{OutputDir: outputDir, now: time.Now}
}

// Name returns the action type.
func (h *ScreenshotHandler) Name() string {
	return "screenshot"
}

// Perform captures the page and returns the image path plus page info.
func (h *ScreenshotHandler) Perform(page browser.Page, data map[string]any) (map[string]any, error) {
	if err := os.MkdirAll(h.OutputDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create screenshot directory: %w", err)
	}

	name := fmt.Sprintf("screenshot_%s.png", h.now().Format("20060102_150405"))
	path := filepath.Join(h.OutputDir, name)

	if err := page.Screenshot(path); err != nil {
		return nil, err
	}

	title, err := page.Title()
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"screenshot_path": path,
		"page_title":      title,
		"current_url":     page.URL(),
	}, nil
}
