package users

import "wisebox-backend/internal/models"

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type LoginResponse struct {
	User         models.User `json:"user"`
	AccessToken  string      `json:"accessToken"`
	RefreshToken string      `json:"refreshToken"`
}

type CreateRequest struct {
	Name     string `json:"name" validate:"required,max=120"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Role     string `json:"role" validate:"required,oneof=admin user consultant"`
	Status   string `json:"status" validate:"omitempty,oneof=active suspended pending"`
	Location string `json:"location" validate:"max=120"`
	Phone    string `json:"phone" validate:"omitempty,phone"`
}

type RoleUpdateRequest struct {
	Role string `json:"role" validate:"required,oneof=admin user consultant"`
}

type StatusUpdateRequest struct {
	Status string `json:"status" validate:"required,oneof=active suspended pending"`
}

// ListFilter narrows the admin user list. Search matches name or email,
// ignoring case.
type ListFilter struct {
	Search string
	Role   string
	Status string
}

type Tokens struct {
	Access  string
	Refresh string
}

type SignupRequest struct {
	Name         string `json:"name" validate:"required,max=120"`
	Email        string `json:"email" validate:"required,email"`
	Password     string `json:"password" validate:"required,min=8,max=72"`
	Location     string `json:"location" validate:"max=120"`
	Phone        string `json:"phone" validate:"omitempty,phone"`
	AgreeToTerms bool   `json:"agreeToTerms" validate:"required"`
}

type VerifyRequest struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required,len=4,numeric"`
}

type EmailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type PasswordResetRequest struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}
