package client

import (
	"context"
	"net/http"
	"net/url"

	v1alpha1 "github.com/wrale/adsign/api/types/v1alpha1"
)

// Register self-registers a display. Only throttled or unavailable
// responses are retried, so a lost response never creates a second display.
func (c *Client) Register(ctx context.Context, req v1alpha1.DisplayRegistrationRequest) (*v1alpha1.DisplayRegistrationResponse, error) {
	var resp v1alpha1.DisplayRegistrationResponse
	if err := c.do(ctx, unprocessed, http.MethodPost, "/displays/register", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Login recovers the connection token of a password-protected display
func (c *Client) Login(ctx context.Context, displayID, password string) (*v1alpha1.DisplayLoginResponse, error) {
	var resp v1alpha1.DisplayLoginResponse
	req := v1alpha1.DisplayLoginRequest{DisplayID: displayID, Password: password}
	if err := c.do(ctx, idempotent, http.MethodPost, "/displays/login", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// PollStatus reads the registration state of the display owning token
func (c *Client) PollStatus(ctx context.Context, token string) (*v1alpha1.DisplayTokenStatus, error) {
	var resp v1alpha1.DisplayTokenStatus
	if err := c.do(ctx, idempotent, http.MethodGet, "/displays/token/"+url.PathEscape(token), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetPlaylist fetches the current loop of the display owning token
func (c *Client) GetPlaylist(ctx context.Context, token string) (*v1alpha1.Playlist, error) {
	var resp v1alpha1.Playlist
	if err := c.do(ctx, idempotent, http.MethodGet, "/displays/token/"+url.PathEscape(token)+"/playlist", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ReportStatus sends one heartbeat. It is never retried; the next
// heartbeat supersedes it.
func (c *Client) ReportStatus(ctx context.Context, report v1alpha1.StatusReport) (*v1alpha1.StatusAck, error) {
	var resp v1alpha1.StatusAck
	if err := c.do(ctx, once, http.MethodPost, "/displays/status", report, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
