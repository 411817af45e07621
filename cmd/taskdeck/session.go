package main

import (
	"context"
	"fmt"
	"io"

	"github.com/fentz26/taskdeck/internal/async"
	"github.com/fentz26/taskdeck/internal/client"
	"github.com/fentz26/taskdeck/internal/logger"
	"github.com/fentz26/taskdeck/internal/notify"
	"github.com/fentz26/taskdeck/internal/state"
	"github.com/fentz26/taskdeck/internal/storage"
)

// session is everything a command needs to talk to the API.
type session struct {
	app       *state.App
	telemetry *logger.Telemetry
	closeFn   func() error
}

func (s *session) Close() error {
	if s.closeFn == nil {
		return nil
	}
	return s.closeFn()
}

// openSession builds the state containers from cfg. Notifications go to n.
func openSession(n notify.Notifier) (*session, error) {
	policy, err := async.ParsePolicy(cfg.Async.Policy)
	if err != nil {
		return nil, usageError{err}
	}

	tokens, err := storage.Open(cfg.Storage.Backend, cfg.StorageDir())
	if err != nil {
		return nil, fmt.Errorf("open token storage: %w", err)
	}

	telemetry := logger.NewTelemetry(log)
	api := client.New(cfg.APIURL,
		client.WithTimeout(cfg.Timeout),
		client.WithLogger(log),
	)

	s := &session{
		app: state.New(state.Deps{
			API:                  api,
			Tokens:               tokens,
			Notifier:             n,
			Telemetry:            telemetry,
			Logger:               log,
			Policy:               policy,
			PageSize:             cfg.Tasks.PageSize,
			RefetchAfterMutation: cfg.Tasks.RefetchAfterMutation,
		}),
		telemetry: telemetry,
	}
	if c, ok := tokens.(io.Closer); ok {
		s.closeFn = c.Close
	}
	return s, nil
}

// withSession opens a session that prints notifications to the command's
// output, runs fn and closes the session.
func withSession(ctx context.Context, out io.Writer, fn func(ctx context.Context, s *session) error) error {
	s, err := openSession(notify.NewWriter(out))
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(ctx, s)
}

// withAccount is withSession for commands that act on the signed-in account.
// The account is fetched first because task calls need its id.
func withAccount(ctx context.Context, out io.Writer, fn func(ctx context.Context, s *session) error) error {
	return withSession(ctx, out, func(ctx context.Context, s *session) error {
		if !s.app.Auth.IsUserAuthenticated() {
			return &state.PreconditionError{Code: "ERR_NOT_SIGNED_IN", Message: "Not signed in. Run 'taskdeck login' first."}
		}
		if _, err := s.app.Account.GetAccountDetails(ctx); err != nil {
			return err
		}
		return fn(ctx, s)
	})
}
