package action

import (
	"fmt"

	"github.com/entrhq/sessiond/pkg/browser"
)

// GetProfileHandler navigates to a profile page and reports its title and
// final URL. The target defaults to DefaultProfileURL when action data
// carries no "profile_url".
type GetProfileHandler struct {
	// DefaultProfileURL is used when the caller supplies no profile_url.
	DefaultProfileURL string
}

// NewGetProfileHandler creates the handler with a default landing page.
func NewGetProfileHandler(defaultURL string) *GetProfileHandler {
	return &GetProfileHandler{DefaultProfileURL: defaultURL}
}

// Name returns the action type.
func (h *GetProfileHandler) Name() string {
	return "get_profile"
}

// Perform navigates to the profile page and extracts basic info.
func (h *GetProfileHandler) Perform(page browser.Page, data map[string]any) (map[string]any, error) {
	profileURL := h.DefaultProfileURL
	if v, ok := data["profile_url"].(string); ok && v != "" {
		profileURL = v
	}
	if profileURL == "" {
		return nil, fmt.Errorf("profile_url is required")
	}

	if err := page.Navigate(profileURL, browser.NavigateOptions{WaitUntil: "networkidle"}); err != nil {
		return nil, err
	}

	title, err := page.Title()
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"page_title":  title,
		"current_url": page.URL(),
	}, nil
}
