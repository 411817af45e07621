package devserver

import (
	"context"
	"log/slog"
	"net/url"

	"github.com/fentz26/taskdeck/internal/models"
)

// Mailer delivers password reset tokens. The devserver never sends real mail.
type Mailer interface {
	SendPasswordReset(ctx context.Context, account models.Account, token string) error
}

// LogMailer writes the reset link to the log.
type LogMailer struct {
	Logger *slog.Logger
}

// SendPasswordReset implements Mailer.
func (m LogMailer) SendPasswordReset(ctx context.Context, account models.Account, token string) error {
	l := m.Logger
	if l == nil {
		l = slog.Default()
	}
	l.InfoContext(ctx, "password reset requested",
		"account_id", account.ID,
		"username", account.Username,
		"reset_link", "/accounts/"+account.ID+"/reset_password?token="+url.QueryEscape(token),
	)
	return nil
}
