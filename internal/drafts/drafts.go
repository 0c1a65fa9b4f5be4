// Package drafts stores saved wizard snapshots so a user can leave the
// "add property" flow and resume it later in a new session.
package drafts

import (
	"context"
	"errors"
	"time"

	"wisebox-backend/internal/geocode"
	"wisebox-backend/internal/wizard"
)

const DefaultTTL = 30 * 24 * time.Hour

var ErrNotFound = errors.New("draft not found")

type Draft struct {
	ID          string       `json:"id"`
	UserID      string       `json:"userId"`
	State       wizard.State `json:"state"`
	CurrentStep int          `json:"currentStep"`
	Pin         geocode.Pin  `json:"pin"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

// Summary is the list view of a draft.
type Summary struct {
	ID           string              `json:"id"`
	PropertyType wizard.PropertyType `json:"propertyType,omitempty"`
	Address      string              `json:"address,omitempty"`
	CurrentStep  int                 `json:"currentStep"`
	FileCount    int                 `json:"fileCount"`
	UpdatedAt    time.Time           `json:"updatedAt"`
}

func (d *Draft) Summary() Summary {
	return Summary{
		ID:           d.ID,
		PropertyType: d.State.PropertyType,
		Address:      d.State.PropertyDetails.Address,
		CurrentStep:  d.CurrentStep,
		FileCount:    d.State.FileCount(),
		UpdatedAt:    d.UpdatedAt,
	}
}

// Repository persists drafts. Save creates or overwrites and refreshes the
// expiry. ListByUser returns the newest drafts first. ReferencedObjects
// reports which blob keys a live draft still points at.
type Repository interface {
	Save(ctx context.Context, draft *Draft) error
	Get(ctx context.Context, id string) (*Draft, error)
	ListByUser(ctx context.Context, userID string) ([]*Draft, error)
	Delete(ctx context.Context, id string) error
	ReferencedObjects(ctx context.Context, keys []string) (map[string]bool, error)
}

func validate(draft *Draft) error {
	if draft == nil {
		return errors.New("draft cannot be nil")
	}
	if draft.ID == "" {
		return errors.New("draft ID cannot be empty")
	}
	if draft.UserID == "" {
		return errors.New("draft user ID cannot be empty")
	}
	return nil
}
