package state

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/fentz26/taskdeck/internal/client"
	"github.com/fentz26/taskdeck/internal/models"
	"github.com/fentz26/taskdeck/internal/notify"
	"github.com/fentz26/taskdeck/internal/storage"
)

// fakeAPI is an in-memory backend. Tasks are kept newest first.
type fakeAPI struct {
	mu       sync.Mutex
	account  models.Account
	password string
	tasks    []models.Task
	nextID   int
	calls    int

	listResult *models.TaskPage
	// listHook runs before ListTasks reads any state, outside f.mu. A non-nil
	// error fails the call.
	listHook  func(ctx context.Context) error
	resetReqs []client.ResetPasswordRequest
	emails    []string
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		account:  models.Account{ID: "acc-1", FirstName: "Ada", LastName: "Lovelace", Username: "ada@example.com"},
		password: "correct horse",
	}
}

func notFound(id string) error {
	return &client.APIError{
		Status:  http.StatusNotFound,
		Code:    "TASK_ERR_01",
		Message: fmt.Sprintf("Task with id %s not found.", id),
	}
}

func (f *fakeAPI) token() *models.AccessToken {
	return &models.AccessToken{AccountID: f.account.ID, Token: "tok-" + f.account.ID, ExpiresAt: "2030-01-01T00:00:00Z"}
}

func (f *fakeAPI) Signup(ctx context.Context, req client.SignupRequest) (*models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return &models.Account{ID: "acc-2", FirstName: req.FirstName, LastName: req.LastName, Username: req.Username}, nil
}

func (f *fakeAPI) SendOTP(ctx context.Context, phone models.PhoneNumber) (*models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return &models.Account{ID: "acc-3", PhoneNumber: &phone}, nil
}

func (f *fakeAPI) Login(ctx context.Context, username, password string) (*models.AccessToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if username != f.account.Username || password != f.password {
		return nil, &client.APIError{Status: http.StatusUnauthorized, Code: "ACCOUNT_ERR_03", Message: "Incorrect password."}
	}
	return f.token(), nil
}

func (f *fakeAPI) VerifyOTP(ctx context.Context, phone models.PhoneNumber, otp string) (*models.AccessToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if otp != "1111" {
		return nil, &client.APIError{Status: http.StatusBadRequest, Code: "OTP_ERR_01", Message: "Please provide the correct OTP to login."}
	}
	return f.token(), nil
}

func (f *fakeAPI) CreatePasswordResetToken(ctx context.Context, username string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.emails = append(f.emails, username)
	return nil
}

func (f *fakeAPI) ResetPassword(ctx context.Context, req client.ResetPasswordRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if req.Token != "reset-ok" {
		return &client.APIError{Status: http.StatusBadRequest, Code: "ACCOUNT_ERR_04", Message: "Password reset link is invalid."}
	}
	f.resetReqs = append(f.resetReqs, req)
	return nil
}

func (f *fakeAPI) GetAccount(ctx context.Context, tok models.AccessToken) (*models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	acc := f.account
	return &acc, nil
}

func (f *fakeAPI) ListTasks(ctx context.Context, token, accountID string, page, size int) (*models.TaskPage, error) {
	f.mu.Lock()
	f.calls++
	hook := f.listHook
	f.mu.Unlock()
	if hook != nil {
		if err := hook(ctx); err != nil {
			return nil, err
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listResult != nil {
		res := *f.listResult
		return &res, nil
	}
	start := (page - 1) * size
	end := start + size
	if start > len(f.tasks) {
		start = len(f.tasks)
	}
	if end > len(f.tasks) {
		end = len(f.tasks)
	}
	items := make([]models.Task, end-start)
	copy(items, f.tasks[start:end])
	return &models.TaskPage{
		Items:            items,
		PaginationParams: models.PaginationParams{Page: page, Size: size, Offset: start},
		TotalCount:       len(f.tasks),
		TotalPages:       (len(f.tasks) + size - 1) / size,
	}, nil
}

func (f *fakeAPI) GetTask(ctx context.Context, token, accountID, taskID string) (*models.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	for _, t := range f.tasks {
		if t.ID == taskID {
			return &t, nil
		}
	}
	return nil, notFound(taskID)
}

func (f *fakeAPI) CreateTask(ctx context.Context, token, accountID string, in models.TaskInput) (*models.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.nextID++
	t := models.Task{ID: fmt.Sprintf("t%d", f.nextID), AccountID: accountID, Title: in.Title, Description: in.Description}
	f.tasks = append([]models.Task{t}, f.tasks...)
	return &t, nil
}

func (f *fakeAPI) UpdateTask(ctx context.Context, token, accountID, taskID string, in models.TaskInput) (*models.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	for i, t := range f.tasks {
		if t.ID == taskID {
			f.tasks[i].Title = in.Title
			f.tasks[i].Description = in.Description
			updated := f.tasks[i]
			return &updated, nil
		}
	}
	return nil, notFound(taskID)
}

func (f *fakeAPI) DeleteTask(ctx context.Context, token, accountID, taskID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	for i, t := range f.tasks {
		if t.ID == taskID {
			f.tasks = append(f.tasks[:i], f.tasks[i+1:]...)
			return nil
		}
	}
	return notFound(taskID)
}

func (f *fakeAPI) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeSink struct {
	users []models.Identity
}

func (s *fakeSink) SetUser(id models.Identity) { s.users = append(s.users, id) }

type fixture struct {
	api      *fakeAPI
	tokens   *storage.MemoryStore
	notifier *notify.Recorder
	sink     *fakeSink
	app      *App
}

func newFixture(opts ...func(*Deps)) *fixture {
	f := &fixture{
		api:      newFakeAPI(),
		tokens:   storage.NewMemoryStore(),
		notifier: &notify.Recorder{},
		sink:     &fakeSink{},
	}
	d := Deps{API: f.api, Tokens: f.tokens, Notifier: f.notifier, Telemetry: f.sink}
	for _, opt := range opts {
		opt(&d)
	}
	f.app = New(d)
	return f
}

// signedIn logs in and loads the account so task calls have an account id.
func (f *fixture) signedIn(ctx context.Context) error {
	if _, err := f.app.Auth.Login(ctx, "ada@example.com", "correct horse"); err != nil {
		return err
	}
	_, err := f.app.Account.GetAccountDetails(ctx)
	return err
}
