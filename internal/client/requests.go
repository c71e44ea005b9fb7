package client

import (
	"context"
	"net/http"
	"net/url"

	v1alpha1 "github.com/wrale/adsign/api/types/v1alpha1"
)

// ListRequests lists connection requests, optionally by status
func (c *Client) ListRequests(ctx context.Context, status string) ([]v1alpha1.ConnectionRequest, error) {
	p := "/connection-requests"
	if status != "" {
		p += "?" + url.Values{"status": {status}}.Encode()
	}
	var resp v1alpha1.ListResponse[v1alpha1.ConnectionRequest]
	if err := c.do(ctx, idempotent, http.MethodGet, p, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// ApproveRequest assigns the requesting display to the caller
func (c *Client) ApproveRequest(ctx context.Context, requestID string) (*v1alpha1.Display, error) {
	var resp v1alpha1.Display
	if err := c.do(ctx, unprocessed, http.MethodPost, "/connection-requests/"+url.PathEscape(requestID)+"/approve", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RejectRequest rejects a pending request
func (c *Client) RejectRequest(ctx context.Context, requestID, reason string) (*v1alpha1.ConnectionRequest, error) {
	var resp v1alpha1.ConnectionRequest
	req := v1alpha1.RejectRequest{RejectionReason: reason}
	if err := c.do(ctx, unprocessed, http.MethodPost, "/connection-requests/"+url.PathEscape(requestID)+"/reject", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
