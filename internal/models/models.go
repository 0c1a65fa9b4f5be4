package models

import "time"

const (
	UserRoleAdmin      = "admin"
	UserRoleUser       = "user"
	UserRoleConsultant = "consultant"

	UserStatusActive    = "active"
	UserStatusSuspended = "suspended"
	UserStatusPending   = "pending"

	ConsultationPendingPayment = "pending_payment"
	ConsultationConfirmed      = "confirmed"
	ConsultationCanceled       = "canceled"
	ConsultationCompleted      = "completed"
)

var (
	UserRoles            = []string{UserRoleAdmin, UserRoleUser, UserRoleConsultant}
	UserStatuses         = []string{UserStatusActive, UserStatusSuspended, UserStatusPending}
	ConsultationStatuses = []string{ConsultationPendingPayment, ConsultationConfirmed, ConsultationCanceled, ConsultationCompleted}
)

type User struct {
	ID           string    `bson:"_id,omitempty" json:"id"`
	Name         string    `bson:"name" json:"name"`
	Email        string    `bson:"email" json:"email"`
	PasswordHash string    `bson:"passwordHash" json:"-"`
	Role         string    `bson:"role" json:"role"`
	Status       string    `bson:"status" json:"status"`
	Location     string    `bson:"location,omitempty" json:"location,omitempty"`
	Phone        string    `bson:"phone,omitempty" json:"phone,omitempty"`
	CreatedAt    time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time `bson:"updatedAt" json:"updatedAt"`
	LastActiveAt time.Time `bson:"lastActiveAt,omitempty" json:"lastActiveAt,omitempty"`
}

// Consultation is a paid booking. Free calls are never stored.
type Consultation struct {
	ID          string    `bson:"_id,omitempty" json:"id"`
	UserID      string    `bson:"userId" json:"userId"`
	PropertyID  string    `bson:"propertyId,omitempty" json:"propertyId,omitempty"`
	ServiceID   string    `bson:"serviceId" json:"serviceId"`
	ServiceName string    `bson:"serviceName" json:"serviceName"`
	Date        string    `bson:"date" json:"date"`
	Time        string    `bson:"time" json:"time"`
	Duration    int       `bson:"duration" json:"duration"`
	Price       int       `bson:"price" json:"price"`
	Notes       string    `bson:"notes,omitempty" json:"notes,omitempty"`
	Status      string    `bson:"status" json:"status"`
	CreatedAt   time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time `bson:"updatedAt" json:"updatedAt"`
}

func Contains(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}
