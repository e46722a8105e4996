package service

import "errors"

var (
	ErrValidation          = errors.New("validation failed")
	ErrUsernameTaken       = errors.New("username is already taken")
	ErrEmailTaken          = errors.New("email is already in use")
	ErrInvalidCredentials  = errors.New("invalid username or password")
	ErrTokenNotFound       = errors.New("refresh token not found")
	ErrExpiredRefreshToken = errors.New("refresh token expired")
	ErrUserNotFound        = errors.New("user not found")
	ErrForbidden           = errors.New("forbidden")
)
