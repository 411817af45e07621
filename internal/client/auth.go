package client

import (
	"context"
	"net/http"

	"github.com/fentz26/taskdeck/internal/models"
)

// SignupRequest creates an account from a username and password.
type SignupRequest struct {
	FirstName string `json:"first_name" validate:"required"`
	LastName  string `json:"last_name" validate:"required"`
	Username  string `json:"username" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8"`
}

type phoneSignupRequest struct {
	PhoneNumber models.PhoneNumber `json:"phone_number"`
}

type passwordLoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type otpLoginRequest struct {
	PhoneNumber models.PhoneNumber `json:"phone_number"`
	OTPCode     string             `json:"otp_code" validate:"required,numeric,len=4"`
}

type passwordResetTokenRequest struct {
	Username string `json:"username" validate:"required,email"`
}

// ResetPasswordRequest sets a new password using an emailed reset token.
type ResetPasswordRequest struct {
	AccountID   string `json:"-" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8"`
	Token       string `json:"token" validate:"required"`
}

// Signup creates a username/password account.
func (c *Client) Signup(ctx context.Context, req SignupRequest) (*models.Account, error) {
	var account models.Account
	if err := c.do(ctx, http.MethodPost, "/accounts", "", req, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

// SendOTP creates (or finds) the account for a phone number, which makes the
// server text a one-time code to it.
func (c *Client) SendOTP(ctx context.Context, phone models.PhoneNumber) (*models.Account, error) {
	var account models.Account
	if err := c.do(ctx, http.MethodPost, "/accounts", "", phoneSignupRequest{PhoneNumber: phone}, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

// Login exchanges a username and password for an access token.
func (c *Client) Login(ctx context.Context, username, password string) (*models.AccessToken, error) {
	var tok models.AccessToken
	body := passwordLoginRequest{Username: username, Password: password}
	if err := c.do(ctx, http.MethodPost, "/access-tokens", "", body, &tok); err != nil {
		return nil, err
	}
	return &tok, nil
}

// VerifyOTP exchanges a phone number and one-time code for an access token.
func (c *Client) VerifyOTP(ctx context.Context, phone models.PhoneNumber, otp string) (*models.AccessToken, error) {
	var tok models.AccessToken
	body := otpLoginRequest{PhoneNumber: phone, OTPCode: otp}
	if err := c.do(ctx, http.MethodPost, "/access-tokens", "", body, &tok); err != nil {
		return nil, err
	}
	return &tok, nil
}

// CreatePasswordResetToken asks the server to email a reset link to username.
func (c *Client) CreatePasswordResetToken(ctx context.Context, username string) error {
	return c.do(ctx, http.MethodPost, "/password-reset-tokens", "", passwordResetTokenRequest{Username: username}, nil)
}

// ResetPassword sets a new password for the account the token was issued to.
func (c *Client) ResetPassword(ctx context.Context, req ResetPasswordRequest) error {
	return c.do(ctx, http.MethodPatch, accountPath(req.AccountID), "", req, nil)
}
