package devserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fentz26/taskdeck/internal/client"
	"github.com/fentz26/taskdeck/internal/models"
	"github.com/fentz26/taskdeck/internal/state"
	"github.com/fentz26/taskdeck/internal/storage"
	"github.com/fentz26/taskdeck/internal/store"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type captureMailer struct {
	mu     sync.Mutex
	tokens map[string]string
}

func (m *captureMailer) SendPasswordReset(ctx context.Context, account models.Account, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tokens == nil {
		m.tokens = map[string]string{}
	}
	m.tokens[account.ID] = token
	return nil
}

func (m *captureMailer) token(accountID string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tokens[accountID]
}

func newTestServer(t *testing.T, opts ...Option) (*httptest.Server, *captureMailer) {
	t.Helper()

	st, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	cfg := DefaultConfig()
	cfg.Secret = testSecret
	cfg.BcryptCost = bcrypt.MinCost

	mailer := &captureMailer{}
	srv, err := New(st, cfg, append([]Option{WithMailer(mailer)}, opts...)...)
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, mailer
}

func decodeError(t *testing.T, resp *http.Response) apiError {
	t.Helper()
	var body apiError
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode error body: %v", err)
	}
	return body
}

func TestNewRejectsShortSecret(t *testing.T) {
	st, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer st.Close()

	cfg := DefaultConfig()
	cfg.Secret = "short"
	if _, err := New(st, cfg); err == nil {
		t.Error("Expected an error for a short secret")
	}

	cfg.Secret = ""
	if _, err := New(st, cfg); err != nil {
		t.Errorf("Expected a random secret to be generated, got %v", err)
	}
}

func TestHealthEndpoint_OK(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
	var health healthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if !health.OK || health.DB != "ok" {
		t.Errorf("Unexpected health response: %+v", health)
	}
}

func TestTasksRequireAuthorization(t *testing.T) {
	ts, _ := newTestServer(t)

	tests := []struct {
		name   string
		header string
		code   string
	}{
		{"missing header", "", CodeAuthHeaderNotFound},
		{"wrong scheme", "Basic abc", CodeInvalidAuthHeader},
		{"garbage token", "Bearer not-a-jwt", CodeAccessTokenInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/accounts/acc-1/tasks", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusUnauthorized {
				t.Errorf("Expected status 401, got %d", resp.StatusCode)
			}
			if body := decodeError(t, resp); body.Code != tt.code {
				t.Errorf("Expected code %s, got %s", tt.code, body.Code)
			}
		})
	}
}

func TestTokenForAnotherAccountIsRejected(t *testing.T) {
	ts, _ := newTestServer(t)
	ctx := context.Background()
	c := client.New(ts.URL + "/api")

	if _, err := c.Signup(ctx, client.SignupRequest{FirstName: "Ada", LastName: "Lovelace", Username: "ada@example.com", Password: "password1"}); err != nil {
		t.Fatalf("Signup failed: %v", err)
	}
	tok, err := c.Login(ctx, "ada@example.com", "password1")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	_, err = c.ListTasks(ctx, tok.Token, "someone-else", 1, 10)
	if !client.IsUnauthorized(err) {
		t.Fatalf("Expected 401, got %v", err)
	}
	if code := apiCode(err); code != CodeUnauthorizedAccess {
		t.Errorf("Expected code %s, got %s", CodeUnauthorizedAccess, code)
	}
}

func TestExpiredToken(t *testing.T) {
	now := time.Now()
	ts, _ := newTestServer(t, WithClock(func() time.Time { return now }))
	ctx := context.Background()
	c := client.New(ts.URL + "/api")

	if _, err := c.Signup(ctx, client.SignupRequest{FirstName: "Ada", LastName: "Lovelace", Username: "ada@example.com", Password: "password1"}); err != nil {
		t.Fatalf("Signup failed: %v", err)
	}
	tok, err := c.Login(ctx, "ada@example.com", "password1")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	now = now.Add(48 * time.Hour)
	_, err = c.GetAccount(ctx, *tok)
	if apiCode(err) != CodeAccessTokenExpired {
		t.Errorf("Expected code %s, got %v", CodeAccessTokenExpired, err)
	}
}

func TestSignupAndLoginErrors(t *testing.T) {
	ts, _ := newTestServer(t)
	ctx := context.Background()
	c := client.New(ts.URL + "/api")

	req := client.SignupRequest{FirstName: "Ada", LastName: "Lovelace", Username: "ada@example.com", Password: "password1"}
	if _, err := c.Signup(ctx, req); err != nil {
		t.Fatalf("Signup failed: %v", err)
	}
	if _, err := c.Signup(ctx, req); apiCode(err) != CodeAccountUsernameExists {
		t.Errorf("Expected %s for a duplicate username, got %v", CodeAccountUsernameExists, err)
	}

	if _, err := c.Login(ctx, "ada@example.com", "wrong-password"); apiCode(err) != CodeInvalidCredentials {
		t.Errorf("Expected %s for a wrong password, got %v", CodeInvalidCredentials, err)
	}
	if _, err := c.Login(ctx, "nobody@example.com", "password1"); apiCode(err) != CodeAccountNotFound {
		t.Errorf("Expected %s for an unknown username, got %v", CodeAccountNotFound, err)
	}
}

func TestCreateTaskValidation(t *testing.T) {
	ts, _ := newTestServer(t)
	ctx := context.Background()
	c := client.New(ts.URL + "/api")
	tok := signup(t, c)

	_, err := c.CreateTask(ctx, tok.Token, tok.AccountID, models.TaskInput{Title: "A"})
	if apiCode(err) != CodeTaskBadRequest {
		t.Errorf("Expected %s for a missing description, got %v", CodeTaskBadRequest, err)
	}

	resp, err := http.Get(ts.URL + "/api/accounts/" + tok.AccountID + "/tasks?page=0")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("Expected the auth check before query validation, got %d", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/accounts/"+tok.AccountID+"/tasks?page=0", nil)
	req.Header.Set("Authorization", "Bearer "+tok.Token)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if body := decodeError(t, resp); body.Message != "Page must be greater than 0" {
		t.Errorf("Unexpected message: %q", body.Message)
	}
}

func TestMissingTaskReturnsCodeAndMessage(t *testing.T) {
	ts, _ := newTestServer(t)
	c := client.New(ts.URL + "/api")
	tok := signup(t, c)

	err := c.DeleteTask(context.Background(), tok.Token, tok.AccountID, "t9")
	if !client.IsNotFound(err) {
		t.Fatalf("Expected 404, got %v", err)
	}
	var apiErr *client.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected *client.APIError, got %T", err)
	}
	if apiErr.Code != CodeTaskNotFound || apiErr.Message != "Task with id t9 not found." {
		t.Errorf("Unexpected error body: %+v", apiErr)
	}
}

func TestPasswordReset(t *testing.T) {
	ts, mailer := newTestServer(t)
	ctx := context.Background()
	c := client.New(ts.URL + "/api")
	tok := signup(t, c)

	if err := c.CreatePasswordResetToken(ctx, "ada@example.com"); err != nil {
		t.Fatalf("CreatePasswordResetToken failed: %v", err)
	}
	resetToken := mailer.token(tok.AccountID)
	if resetToken == "" {
		t.Fatal("Expected the mailer to receive a token")
	}

	err := c.ResetPassword(ctx, client.ResetPasswordRequest{AccountID: tok.AccountID, NewPassword: "new-password", Token: "wrong"})
	if apiCode(err) != CodeAccountBadRequest {
		t.Errorf("Expected %s for a wrong token, got %v", CodeAccountBadRequest, err)
	}

	err = c.ResetPassword(ctx, client.ResetPasswordRequest{AccountID: tok.AccountID, NewPassword: "new-password", Token: resetToken})
	if err != nil {
		t.Fatalf("ResetPassword failed: %v", err)
	}

	err = c.ResetPassword(ctx, client.ResetPasswordRequest{AccountID: tok.AccountID, NewPassword: "newer-password", Token: resetToken})
	if apiCode(err) != CodeResetTokenNotFound {
		t.Errorf("Expected %s once the token is used, got %v", CodeResetTokenNotFound, err)
	}

	if _, err := c.Login(ctx, "ada@example.com", "password1"); err == nil {
		t.Error("Old password should no longer work")
	}
	if _, err := c.Login(ctx, "ada@example.com", "new-password"); err != nil {
		t.Errorf("Login with new password failed: %v", err)
	}
}

// TestEndToEnd drives the state containers against the devserver.
func TestEndToEnd(t *testing.T) {
	ts, _ := newTestServer(t)
	ctx := context.Background()

	app := state.New(state.Deps{
		API:    client.New(ts.URL + "/api"),
		Tokens: storage.NewMemoryStore(),
	})

	phone := models.PhoneNumber{CountryCode: "+1", Number: "5555550100"}
	if _, err := app.Auth.SendOTP(ctx, phone); err != nil {
		t.Fatalf("SendOTP failed: %v", err)
	}
	if _, err := app.Auth.VerifyOTP(ctx, phone, "0000"); err == nil {
		t.Fatal("Expected a wrong OTP to fail")
	}
	if _, err := app.Auth.VerifyOTP(ctx, phone, DevOTPCode); err != nil {
		t.Fatalf("VerifyOTP failed: %v", err)
	}
	if !app.Auth.IsUserAuthenticated() {
		t.Fatal("Expected to be authenticated after VerifyOTP")
	}

	acc, err := app.Account.GetAccountDetails(ctx)
	if err != nil {
		t.Fatalf("GetAccountDetails failed: %v", err)
	}
	if acc.PhoneNumber == nil || acc.PhoneNumber.Number != phone.Number {
		t.Errorf("Unexpected account: %+v", acc)
	}

	for i := 0; i < 23; i++ {
		if _, err := app.Tasks.CreateTask(ctx, models.TaskInput{Title: "task", Description: strings.Repeat("x", i+1)}); err != nil {
			t.Fatalf("CreateTask failed: %v", err)
		}
	}

	if err := app.Tasks.FetchTasks(ctx, 2, 5); err != nil {
		t.Fatalf("FetchTasks failed: %v", err)
	}
	list := app.Tasks.List()
	if list.CurrentPage != 2 || list.PageSize != 5 || list.TotalPages != 5 || list.TotalCount != 23 || len(list.Items) != 5 {
		t.Errorf("Unexpected page: %+v", list)
	}

	target := list.Items[0].ID
	if ok, err := app.Tasks.DeleteTask(ctx, target); err != nil || !ok {
		t.Fatalf("DeleteTask failed: %v, %v", ok, err)
	}
	if _, err := app.Tasks.DeleteTask(ctx, target); err == nil {
		t.Error("Expected the second delete to fail")
	}
	if got := app.Tasks.Error(); got == nil || got.Code != CodeTaskNotFound {
		t.Errorf("Expected combined error %s, got %+v", CodeTaskNotFound, got)
	}

	if err := app.Auth.Logout(); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	if app.Auth.IsUserAuthenticated() {
		t.Error("Expected to be unauthenticated after Logout")
	}
}

func apiCode(err error) string {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return ""
}

func signup(t *testing.T, c *client.Client) *models.AccessToken {
	t.Helper()
	ctx := context.Background()
	if _, err := c.Signup(ctx, client.SignupRequest{FirstName: "Ada", LastName: "Lovelace", Username: "ada@example.com", Password: "password1"}); err != nil {
		t.Fatalf("Signup failed: %v", err)
	}
	tok, err := c.Login(ctx, "ada@example.com", "password1")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	return tok
}
