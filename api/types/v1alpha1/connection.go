package v1alpha1

import (
	"time"

	"github.com/google/uuid"
)

// ConnectionRequestStatus is the approval state of a registration attempt
type ConnectionRequestStatus string

const (
	ConnectionRequestPending  ConnectionRequestStatus = "pending"
	ConnectionRequestApproved ConnectionRequestStatus = "approved"
	ConnectionRequestRejected ConnectionRequestStatus = "rejected"
)

// ConnectionRequest is the approval ticket created at registration
type ConnectionRequest struct {
	TypeMeta `json:",inline"`

	ID              uuid.UUID               `json:"id"`
	DisplayID       string                  `json:"displayId"`
	DisplayName     string                  `json:"displayName,omitempty"`
	Location        string                  `json:"location,omitempty"`
	Status          ConnectionRequestStatus `json:"status"`
	RequestedAt     time.Time               `json:"requestedAt"`
	RespondedAt     *time.Time              `json:"respondedAt,omitempty"`
	RespondedBy     string                  `json:"respondedBy,omitempty"`
	RejectionReason string                  `json:"rejectionReason,omitempty"`
}

// RejectRequest optionally explains a rejection to the device
type RejectRequest struct {
	RejectionReason string `json:"rejectionReason,omitempty"`
}
