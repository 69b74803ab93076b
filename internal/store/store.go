// Package store defines the remote allocation store boundary and its
// implementations. The engine only distinguishes success from failure.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("not found")

// AllocationChange is one serialized pending allocation. Passes of zero means
// the site's allocation was removed.
type AllocationChange struct {
	OpportunityID    string `json:"opportunityId"`
	SiteID           string `json:"siteId"`
	Passes           int    `json:"passes"`
	TimeDistribution string `json:"timeDistribution"`
	OverrideReason   string `json:"overrideReason,omitempty"`
}

// ChangeBatch is one atomic commit: either every change applies or none do.
type ChangeBatch struct {
	ID            uuid.UUID          `json:"id"`
	OpportunityID string             `json:"opportunityId"`
	SubmittedAt   time.Time          `json:"submittedAt"`
	Changes       []AllocationChange `json:"changes"`
}

// BatchUpdater is the injected remote-store boundary the transaction manager
// commits through. Implementations must apply the batch atomically.
type BatchUpdater interface {
	ApplyBatch(ctx context.Context, batch ChangeBatch) error
}

// UpdaterFunc adapts a function to the BatchUpdater interface.
type UpdaterFunc func(ctx context.Context, batch ChangeBatch) error

func (f UpdaterFunc) ApplyBatch(ctx context.Context, batch ChangeBatch) error {
	return f(ctx, batch)
}
