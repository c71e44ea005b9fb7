package client

import (
	"context"
	"net/http"
	"net/url"

	v1alpha1 "github.com/wrale/adsign/api/types/v1alpha1"
)

// CreateLoop builds a loop for a display
func (c *Client) CreateLoop(ctx context.Context, req v1alpha1.LoopCreateRequest) (*v1alpha1.Loop, error) {
	var resp v1alpha1.Loop
	if err := c.do(ctx, unprocessed, http.MethodPost, "/loops", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetLoop retrieves one loop
func (c *Client) GetLoop(ctx context.Context, loopID string) (*v1alpha1.Loop, error) {
	var resp v1alpha1.Loop
	if err := c.do(ctx, idempotent, http.MethodGet, "/loops/"+url.PathEscape(loopID), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListLoops lists the loops built for a display
func (c *Client) ListLoops(ctx context.Context, displayID string) ([]v1alpha1.Loop, error) {
	var resp v1alpha1.ListResponse[v1alpha1.Loop]
	p := "/loops?" + url.Values{"display": {displayID}}.Encode()
	if err := c.do(ctx, idempotent, http.MethodGet, p, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// UpdateLoop replaces a loop's advertisements and/or rotation type
func (c *Client) UpdateLoop(ctx context.Context, loopID string, req v1alpha1.LoopUpdateRequest) (*v1alpha1.Loop, error) {
	var resp v1alpha1.Loop
	if err := c.do(ctx, unprocessed, http.MethodPatch, "/loops/"+url.PathEscape(loopID), req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DeleteLoop removes a loop
func (c *Client) DeleteLoop(ctx context.Context, loopID string) error {
	return c.do(ctx, unprocessed, http.MethodDelete, "/loops/"+url.PathEscape(loopID), nil, nil)
}

// CreateAdvertisement stores a new advertisement
func (c *Client) CreateAdvertisement(ctx context.Context, req v1alpha1.AdvertisementCreateRequest) (*v1alpha1.Advertisement, error) {
	var resp v1alpha1.Advertisement
	if err := c.do(ctx, unprocessed, http.MethodPost, "/advertisements", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListAdvertisements lists the caller's advertisements
func (c *Client) ListAdvertisements(ctx context.Context) ([]v1alpha1.Advertisement, error) {
	var resp v1alpha1.ListResponse[v1alpha1.Advertisement]
	if err := c.do(ctx, idempotent, http.MethodGet, "/advertisements", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// SetAdvertisementStatus changes whether an advertisement may play
func (c *Client) SetAdvertisementStatus(ctx context.Context, adID string, status v1alpha1.AdvertisementStatus) (*v1alpha1.Advertisement, error) {
	var resp v1alpha1.Advertisement
	req := v1alpha1.AdvertisementStatusUpdate{Status: status}
	if err := c.do(ctx, idempotent, http.MethodPut, "/advertisements/"+url.PathEscape(adID)+"/status", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
