package consultations

import "wisebox-backend/internal/models"

type BookRequest struct {
	ServiceID  string `json:"serviceId" validate:"required"`
	Date       string `json:"date" validate:"required,date"`
	Time       string `json:"time" validate:"required,clock,halfhour"`
	PropertyID string `json:"propertyId"`
	Notes      string `json:"notes" validate:"max=1000"`
}

// BookResult carries either the stored consultation or, for the free call,
// the external scheduling link the client should open instead.
type BookResult struct {
	Consultation *models.Consultation `json:"consultation,omitempty"`
	Free         bool                 `json:"free"`
	RedirectURL  string               `json:"redirectUrl,omitempty"`
}

type Availability struct {
	Date      string   `json:"date"`
	ServiceID string   `json:"serviceId"`
	Duration  int      `json:"duration"`
	Timezone  string   `json:"timezone"`
	Slots     []string `json:"slots"`
}

type AdminStatusUpdateRequest struct {
	Status string `json:"status" validate:"required,oneof=pending_payment confirmed canceled completed"`
}

type ListFilter struct {
	UserID string
	Status string
	Date   string
}
