package action

import (
	"fmt"

	"github.com/entrhq/sessiond/pkg/browser"
)

// PostMessageHandler stages a message post against a site's feed page.
// Submitting the post is site-specific and left to site integrations; this
// handler validates the content and brings the page to the compose surface.
type PostMessageHandler struct {
	// FeedURL is the page where composing happens.
	FeedURL string
}

// NewPostMessageHandler creates the handler for a site feed.
func NewPostMessageHandler(feedURL string) *PostMessageHandler {
	return &PostMessageHandler{FeedURL: feedURL}
}

// Name returns the action type.
func (h *PostMessageHandler) Name() string {
	return "post_message"
}

// Perform validates the message and navigates to the feed.
func (h *PostMessageHandler) Perform(page browser.Page, data map[string]any) (map[string]any, error) {
	message, _ := data["message"].(string)
	if message == "" {
		return nil, fmt.Errorf("message content is required")
	}

	if h.FeedURL != "" {
		if err := page.Navigate(h.FeedURL, browser.NavigateOptions{WaitUntil: "networkidle"}); err != nil {
			return nil, err
		}
	}

	return map[string]any{
		"content": message,
		"posted":  false,
	}, nil
}
