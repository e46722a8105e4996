package httpserver

import (
	"time"

	"github.com/Skotchmaster/taskhub_auth/internal/models"
	"github.com/Skotchmaster/taskhub_auth/internal/service"
)

type RegisterRequest struct {
	Username   string `json:"username"   validate:"required,min=3,max=64"`
	Email      string `json:"email"      validate:"required,email,max=255"`
	Password   string `json:"password"   validate:"required,min=6,max=72"`
	FirstName  string `json:"firstName"  validate:"required,max=100"`
	LastName   string `json:"lastName"   validate:"required,max=100"`
	Role       string `json:"role"       validate:"omitempty,oneof=ADMIN USER"`
	Department string `json:"department" validate:"max=100"`
	Position   string `json:"position"   validate:"max=100"`
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type UpdateUserRequest struct {
	Username   *string `json:"username"   validate:"omitempty,min=3,max=64"`
	Email      *string `json:"email"      validate:"omitempty,email,max=255"`
	Password   *string `json:"password"   validate:"omitempty,min=6,max=72"`
	FirstName  *string `json:"firstName"  validate:"omitempty,max=100"`
	LastName   *string `json:"lastName"   validate:"omitempty,max=100"`
	Role       *string `json:"role"       validate:"omitempty,oneof=ADMIN USER"`
	Department *string `json:"department" validate:"omitempty,max=100"`
	Position   *string `json:"position"   validate:"omitempty,max=100"`
	Avatar     *string `json:"avatar"     validate:"omitempty,max=2048"`
	Active     *bool   `json:"active"`
}

func (r UpdateUserRequest) input() service.UpdateInput {
	in := service.UpdateInput{
		Username:   r.Username,
		Email:      r.Email,
		Password:   r.Password,
		FirstName:  r.FirstName,
		LastName:   r.LastName,
		Department: r.Department,
		Position:   r.Position,
		Avatar:     r.Avatar,
		Active:     r.Active,
	}
	if r.Role != nil {
		role := models.Role(*r.Role)
		in.Role = &role
	}
	return in
}

type AuthResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	TokenType    string `json:"tokenType"`
	ID           string `json:"id"`
	Username     string `json:"username"`
	Email        string `json:"email"`
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	Role         string `json:"role"`
	Department   string `json:"department"`
	Position     string `json:"position"`
}

func newAuthResponse(res *service.AuthResult) AuthResponse {
	u := res.User
	return AuthResponse{
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
		TokenType:    res.TokenType,
		ID:           u.ID.String(),
		Username:     u.Username,
		Email:        u.Email,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		Role:         string(u.Role),
		Department:   u.Department,
		Position:     u.Position,
	}
}

type TokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	TokenType    string `json:"tokenType"`
}

type UserResponse struct {
	ID         string     `json:"id"`
	Username   string     `json:"username"`
	Email      string     `json:"email"`
	FirstName  string     `json:"firstName"`
	LastName   string     `json:"lastName"`
	Role       string     `json:"role"`
	Department string     `json:"department"`
	Position   string     `json:"position"`
	Avatar     *string    `json:"avatar,omitempty"`
	Active     bool       `json:"active"`
	LastLogin  *time.Time `json:"lastLogin,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

func newUserResponse(u *models.User) UserResponse {
	return UserResponse{
		ID:         u.ID.String(),
		Username:   u.Username,
		Email:      u.Email,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		Role:       string(u.Role),
		Department: u.Department,
		Position:   u.Position,
		Avatar:     u.Avatar,
		Active:     u.Active,
		LastLogin:  u.LastLogin,
		CreatedAt:  u.CreatedAt,
		UpdatedAt:  u.UpdatedAt,
	}
}

type UserListResponse struct {
	Total  int64          `json:"total"`
	Offset int            `json:"offset"`
	Limit  int            `json:"limit"`
	Items  []UserResponse `json:"items"`
}

type MessageResponse struct {
	Message string `json:"message"`
}
