// Package state holds the application state containers. Each container wraps
// API calls in async operations and owns one slice of client-side state.
package state

import (
	"context"
	"log/slog"
	"sync"

	"github.com/fentz26/taskdeck/internal/async"
	"github.com/fentz26/taskdeck/internal/client"
	"github.com/fentz26/taskdeck/internal/logger"
	"github.com/fentz26/taskdeck/internal/models"
	"github.com/fentz26/taskdeck/internal/notify"
	"github.com/fentz26/taskdeck/internal/storage"
)

// DefaultPageSize is used when neither the caller nor Deps picks a page size.
const DefaultPageSize = 10

// API is the remote surface the containers call. *client.Client implements it.
type API interface {
	Signup(ctx context.Context, req client.SignupRequest) (*models.Account, error)
	SendOTP(ctx context.Context, phone models.PhoneNumber) (*models.Account, error)
	Login(ctx context.Context, username, password string) (*models.AccessToken, error)
	VerifyOTP(ctx context.Context, phone models.PhoneNumber, otp string) (*models.AccessToken, error)
	CreatePasswordResetToken(ctx context.Context, username string) error
	ResetPassword(ctx context.Context, req client.ResetPasswordRequest) error

	GetAccount(ctx context.Context, tok models.AccessToken) (*models.Account, error)

	ListTasks(ctx context.Context, token, accountID string, page, size int) (*models.TaskPage, error)
	GetTask(ctx context.Context, token, accountID, taskID string) (*models.Task, error)
	CreateTask(ctx context.Context, token, accountID string, in models.TaskInput) (*models.Task, error)
	UpdateTask(ctx context.Context, token, accountID, taskID string, in models.TaskInput) (*models.Task, error)
	DeleteTask(ctx context.Context, token, accountID, taskID string) error
}

// Deps are the collaborators and settings every container is built from.
type Deps struct {
	API       API
	Tokens    storage.TokenStore
	Notifier  notify.Notifier
	Telemetry logger.Sink
	Logger    *slog.Logger

	Policy               async.Policy
	PageSize             int
	RefetchAfterMutation bool
}

// App is the explicitly constructed set of containers.
type App struct {
	Auth          *Auth
	Account       *Account
	Tasks         *Tasks
	ResetPassword *ResetPassword
}

// New wires the containers. Tasks read the account id from Account.
func New(d Deps) *App {
	if d.Notifier == nil {
		d.Notifier = notify.Nop{}
	}
	if d.Telemetry == nil {
		d.Telemetry = nopSink{}
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.PageSize < 1 {
		d.PageSize = DefaultPageSize
	}

	account := newAccount(d)
	return &App{
		Auth:          newAuth(d),
		Account:       account,
		Tasks:         newTasks(d, account.ID),
		ResetPassword: newResetPassword(d),
	}
}

// OnChange registers fn on every container.
func (a *App) OnChange(fn func()) {
	a.Auth.OnChange(fn)
	a.Account.OnChange(fn)
	a.Tasks.OnChange(fn)
	a.ResetPassword.OnChange(fn)
}

type nopSink struct{}

func (nopSink) SetUser(models.Identity) {}

// observers fans a change out to registered listeners.
type observers struct {
	mu  sync.Mutex
	fns []func()
}

func (o *observers) add(fn func()) {
	o.mu.Lock()
	o.fns = append(o.fns, fn)
	o.mu.Unlock()
}

func (o *observers) notify() {
	o.mu.Lock()
	fns := make([]func(), len(o.fns))
	copy(fns, o.fns)
	o.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// accessToken loads the persisted token, mapping absence to
// ErrAccessTokenNotFound.
func accessToken(store storage.TokenStore) (*models.AccessToken, error) {
	tok, err := store.Get()
	if err != nil {
		return nil, err
	}
	if tok == nil {
		return nil, ErrAccessTokenNotFound
	}
	return tok, nil
}
