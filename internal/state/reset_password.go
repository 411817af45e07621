package state

import (
	"context"

	"github.com/fentz26/taskdeck/internal/async"
	"github.com/fentz26/taskdeck/internal/client"
)

// ResetPasswordParams identifies the account, the emailed token and the new
// password.
type ResetPasswordParams = client.ResetPasswordRequest

// ResetPassword drives the forgot-password flow.
type ResetPassword struct {
	observers observers

	sendEmail *async.Operation[string, struct{}]
	reset     *async.Operation[ResetPasswordParams, struct{}]
}

func newResetPassword(d Deps) *ResetPassword {
	r := &ResetPassword{}
	policy := async.WithPolicy(d.Policy)

	r.sendEmail = async.New(func(ctx context.Context, username string) (*struct{}, error) {
		return nil, d.API.CreatePasswordResetToken(ctx, username)
	}, policy)

	r.reset = async.New(func(ctx context.Context, params ResetPasswordParams) (*struct{}, error) {
		return nil, d.API.ResetPassword(ctx, params)
	}, policy)

	r.sendEmail.OnChange(r.observers.notify)
	r.reset.OnChange(r.observers.notify)
	return r
}

// SendForgotPasswordEmail asks the server to email a reset token to username.
func (r *ResetPassword) SendForgotPasswordEmail(ctx context.Context, username string) error {
	_, err := r.sendEmail.Invoke(ctx, username)
	return err
}

// ResetPassword sets a new password.
func (r *ResetPassword) ResetPassword(ctx context.Context, params ResetPasswordParams) error {
	_, err := r.reset.Invoke(ctx, params)
	return err
}

// IsSendForgotPasswordEmailLoading reports whether the email request is in flight.
func (r *ResetPassword) IsSendForgotPasswordEmailLoading() bool { return r.sendEmail.IsLoading() }

// SendForgotPasswordEmailError returns the last email request failure.
func (r *ResetPassword) SendForgotPasswordEmailError() *async.ErrorInfo { return r.sendEmail.Err() }

// IsResetPasswordLoading reports whether the reset is in flight.
func (r *ResetPassword) IsResetPasswordLoading() bool { return r.reset.IsLoading() }

// ResetPasswordError returns the last reset failure.
func (r *ResetPassword) ResetPasswordError() *async.ErrorInfo { return r.reset.Err() }

// OnChange registers fn for every reset-password state transition.
func (r *ResetPassword) OnChange(fn func()) { r.observers.add(fn) }
