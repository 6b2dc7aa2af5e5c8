package auth

import (
	"github.com/freshmarket/grocery-backend/internal/users"
)

// LoginRequest captures the user credentials sent to the login endpoint.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse contains the token pair and user produced by a successful login.
type LoginResponse struct {
	AccessToken  string         `json:"access_token"`
	RefreshToken string         `json:"refresh_token"`
	User         *users.UserDTO `json:"user"`
}

// RefreshRequest pairs the (possibly expired) access token with its refresh token.
type RefreshRequest struct {
	AccessToken  string `json:"-"`
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// TokenPair is returned by a successful refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// SignupRequest registers a customer, or submits a vendor for verification.
type SignupRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=6"`
	Role      string `json:"role"`
	Name      string `json:"name"`
	StoreName string `json:"storeName"`
	OwnerName string `json:"ownerName"`
	Phone     string `json:"phone"`
}

// SignupResponse reports the created user and, for vendors, the pending request.
type SignupResponse struct {
	User           *users.UserDTO `json:"user"`
	VerificationID *uint          `json:"verification_id,omitempty"`
	Message        string         `json:"message,omitempty"`
}
