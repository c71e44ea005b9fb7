package client

import (
	"context"
	"net/http"
	"net/url"

	v1alpha1 "github.com/wrale/adsign/api/types/v1alpha1"
)

// ListDisplays lists the caller's displays, optionally filtered by stored status
func (c *Client) ListDisplays(ctx context.Context, status string) ([]v1alpha1.Display, error) {
	p := "/displays"
	if status != "" {
		p += "?" + url.Values{"status": {status}}.Encode()
	}
	var resp v1alpha1.ListResponse[v1alpha1.Display]
	if err := c.do(ctx, idempotent, http.MethodGet, p, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// GetDisplay retrieves one display
func (c *Client) GetDisplay(ctx context.Context, displayID string) (*v1alpha1.Display, error) {
	var resp v1alpha1.Display
	if err := c.do(ctx, idempotent, http.MethodGet, "/displays/"+url.PathEscape(displayID), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CreateDisplay creates a display assigned to the caller
func (c *Client) CreateDisplay(ctx context.Context, req v1alpha1.DisplayCreateRequest) (*v1alpha1.DisplayCreateResponse, error) {
	var resp v1alpha1.DisplayCreateResponse
	if err := c.do(ctx, unprocessed, http.MethodPost, "/displays", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// UpdateDisplay patches presentation fields
func (c *Client) UpdateDisplay(ctx context.Context, displayID string, req v1alpha1.DisplayUpdateRequest) (*v1alpha1.Display, error) {
	var resp v1alpha1.Display
	if err := c.do(ctx, unprocessed, http.MethodPatch, "/displays/"+url.PathEscape(displayID), req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SetDisplayStatus switches a display to inactive, or back to offline
func (c *Client) SetDisplayStatus(ctx context.Context, displayID string, status v1alpha1.DisplayStatus) (*v1alpha1.Display, error) {
	var resp v1alpha1.Display
	req := v1alpha1.DisplayStatusUpdate{Status: status}
	if err := c.do(ctx, idempotent, http.MethodPut, "/displays/"+url.PathEscape(displayID)+"/status", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// AssignLoop makes loopID the display's current loop
func (c *Client) AssignLoop(ctx context.Context, displayID, loopID string) (*v1alpha1.Display, error) {
	var resp v1alpha1.Display
	req := v1alpha1.LoopAssignment{LoopID: loopID}
	if err := c.do(ctx, idempotent, http.MethodPut, "/displays/"+url.PathEscape(displayID)+"/loop", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DeleteDisplay removes a display
func (c *Client) DeleteDisplay(ctx context.Context, displayID string) error {
	return c.do(ctx, unprocessed, http.MethodDelete, "/displays/"+url.PathEscape(displayID), nil, nil)
}

// Summary counts the caller's displays by actual status
func (c *Client) Summary(ctx context.Context) (*v1alpha1.DisplaySummary, error) {
	var resp v1alpha1.DisplaySummary
	if err := c.do(ctx, idempotent, http.MethodGet, "/displays/summary", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
