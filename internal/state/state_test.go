package state

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fentz26/taskdeck/internal/async"
	"github.com/fentz26/taskdeck/internal/client"
	"github.com/fentz26/taskdeck/internal/models"
	"github.com/fentz26/taskdeck/internal/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoginPersistsToken(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	assert.False(t, f.app.Auth.IsUserAuthenticated())

	tok, err := f.app.Auth.Login(ctx, "ada@example.com", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, "acc-1", tok.AccountID)

	stored, err := f.tokens.Get()
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, *tok, *stored)
	assert.True(t, f.app.Auth.IsUserAuthenticated())
	assert.Equal(t, tok, f.app.Auth.LoginState().Result)
}

func TestLoginFailureRecordsServerError(t *testing.T) {
	f := newFixture()

	_, err := f.app.Auth.Login(context.Background(), "ada@example.com", "wrong")
	require.Error(t, err)
	assert.Equal(t, "Incorrect password.", err.Error())
	assert.True(t, client.IsUnauthorized(err))

	st := f.app.Auth.LoginState()
	require.NotNil(t, st.Error)
	assert.Equal(t, "ACCOUNT_ERR_03", st.Error.Code)
	assert.False(t, st.IsLoading)
	assert.False(t, f.app.Auth.IsUserAuthenticated())
}

func TestLogoutAlwaysUnauthenticates(t *testing.T) {
	tokens := []models.AccessToken{
		{AccountID: "a", Token: "t", ExpiresAt: models.NewTimestamp(time.Now().Add(time.Hour))},
		{AccountID: "b", Token: "expired", ExpiresAt: models.NewTimestamp(time.Now().Add(-time.Hour))},
		{},
	}
	for _, tok := range tokens {
		f := newFixture()
		require.NoError(t, f.tokens.Set(tok))
		require.True(t, f.app.Auth.IsUserAuthenticated(), "presence alone means authenticated")

		require.NoError(t, f.app.Auth.Logout())
		assert.False(t, f.app.Auth.IsUserAuthenticated())
	}
	assert.Zero(t, newFixture().api.callCount())
}

func TestOTPFlow(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	phone := models.PhoneNumber{CountryCode: "+1", Number: "5555550100"}

	acc, err := f.app.Auth.SendOTP(ctx, phone)
	require.NoError(t, err)
	assert.Equal(t, phone, *acc.PhoneNumber)

	_, err = f.app.Auth.VerifyOTP(ctx, phone, "0000")
	require.Error(t, err)
	assert.Equal(t, "OTP_ERR_01", f.app.Auth.VerifyOTPState().Error.Code)
	assert.False(t, f.app.Auth.IsUserAuthenticated())

	_, err = f.app.Auth.VerifyOTP(ctx, phone, "1111")
	require.NoError(t, err)
	assert.Nil(t, f.app.Auth.VerifyOTPState().Error)
	assert.True(t, f.app.Auth.IsUserAuthenticated())
}

func TestSignup(t *testing.T) {
	f := newFixture()
	acc, err := f.app.Auth.Signup(context.Background(), client.SignupRequest{
		FirstName: "Grace", LastName: "Hopper", Username: "grace@example.com", Password: "cobol-rules",
	})
	require.NoError(t, err)
	assert.Equal(t, "Grace", acc.FirstName)
	assert.Equal(t, acc, f.app.Auth.SignupState().Result)
	assert.False(t, f.app.Auth.IsUserAuthenticated(), "signup does not sign in")
}

func TestGetAccountDetailsWithoutTokenSkipsNetwork(t *testing.T) {
	f := newFixture()

	_, err := f.app.Account.GetAccountDetails(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAccessTokenNotFound)
	assert.Equal(t, "Access token not found", err.Error())
	assert.Equal(t, "ERR_ACCESS_TOKEN_NOT_FOUND", f.app.Account.Error().Code)
	assert.Zero(t, f.api.callCount())
	assert.Empty(t, f.app.Account.ID())
}

func TestGetAccountDetailsReportsIdentity(t *testing.T) {
	f := newFixture()
	require.NoError(t, f.signedIn(context.Background()))

	acc := f.app.Account.AccountDetails()
	assert.Equal(t, "acc-1", acc.ID)
	assert.Equal(t, "Ada Lovelace", models.DisplayName(acc))
	assert.False(t, f.app.Account.IsLoading())
	assert.Nil(t, f.app.Account.Error())

	require.Len(t, f.sink.users, 1)
	assert.Equal(t, models.Identity{ID: "acc-1", Name: "Ada Lovelace", Username: "ada@example.com"}, f.sink.users[0])
}

func TestTasksRequireAccountID(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	_, err := f.app.Auth.Login(ctx, "ada@example.com", "correct horse")
	require.NoError(t, err)
	calls := f.api.callCount()

	err = f.app.Tasks.FetchTasks(ctx, 1, 10)
	assert.ErrorIs(t, err, ErrAccountIDUnavailable)
	_, err = f.app.Tasks.CreateTask(ctx, models.TaskInput{Title: "A"})
	assert.ErrorIs(t, err, ErrAccountIDUnavailable)
	assert.Equal(t, calls, f.api.callCount())

	require.NotNil(t, f.app.Tasks.Error())
	assert.Equal(t, "ERR_ACCOUNT_ID_UNAVAILABLE", f.app.Tasks.Error().Code)
}

func TestFetchTasksReplacesPaginationFromServer(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	require.NoError(t, f.signedIn(ctx))

	items := make([]models.Task, 5)
	for i := range items {
		items[i] = models.Task{ID: string(rune('a' + i)), AccountID: "acc-1", Title: "task"}
	}
	f.api.listResult = &models.TaskPage{
		Items:            items,
		PaginationParams: models.PaginationParams{Page: 2, Size: 5, Offset: 5},
		TotalCount:       23,
		TotalPages:       5,
	}

	require.NoError(t, f.app.Tasks.FetchTasks(ctx, 2, 5))

	list := f.app.Tasks.List()
	assert.Equal(t, 2, list.CurrentPage)
	assert.Equal(t, 5, list.PageSize)
	assert.Equal(t, 5, list.TotalPages)
	assert.Equal(t, 23, list.TotalCount)
	assert.Len(t, list.Items, 5)
	assert.False(t, f.app.Tasks.IsLoading())
}

func TestFetchTasksDefaults(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	require.NoError(t, f.signedIn(ctx))

	require.NoError(t, f.app.Tasks.FetchTasks(ctx, 0, 0))
	list := f.app.Tasks.List()
	assert.Equal(t, 1, list.CurrentPage)
	assert.Equal(t, DefaultPageSize, list.PageSize)
	assert.Empty(t, list.Items)
	assert.NotNil(t, list.Items)
}

func TestTaskLifecycle(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	require.NoError(t, f.signedIn(ctx))

	f.api.tasks = []models.Task{
		{ID: "x2", AccountID: "acc-1", Title: "existing-2"},
		{ID: "x1", AccountID: "acc-1", Title: "existing-1"},
	}

	require.NoError(t, f.app.Tasks.FetchTasks(ctx, 1, 10))
	require.Equal(t, 2, f.app.Tasks.List().TotalCount)
	assert.False(t, f.app.Tasks.Stale())

	// create prepends and bumps the count
	created, err := f.app.Tasks.CreateTask(ctx, models.TaskInput{Title: "A", Description: "B"})
	require.NoError(t, err)
	assert.Equal(t, "t1", created.ID)
	list := f.app.Tasks.List()
	assert.Equal(t, "t1", list.Items[0].ID)
	assert.Equal(t, 3, list.TotalCount)
	assert.True(t, f.app.Tasks.Stale())

	// update replaces exactly one entry in place
	f.app.Tasks.SetCurrentTask(created)
	before := f.app.Tasks.Items()
	_, err = f.app.Tasks.UpdateTask(ctx, "t1", models.TaskInput{Title: "C", Description: "D"})
	require.NoError(t, err)
	after := f.app.Tasks.Items()
	require.Len(t, after, len(before))
	matches := 0
	for i, it := range after {
		if it.ID == "t1" {
			matches++
			assert.Equal(t, "C", it.Title)
			assert.Equal(t, "D", it.Description)
			continue
		}
		assert.Equal(t, before[i], it)
	}
	assert.Equal(t, 1, matches)
	require.NotNil(t, f.app.Tasks.CurrentTask())
	assert.Equal(t, "C", f.app.Tasks.CurrentTask().Title)

	// delete removes the entry and clears the current task
	ok, err := f.app.Tasks.DeleteTask(ctx, "t1")
	require.NoError(t, err)
	assert.True(t, ok)
	list = f.app.Tasks.List()
	assert.Equal(t, 2, list.TotalCount)
	for _, it := range list.Items {
		assert.NotEqual(t, "t1", it.ID)
	}
	assert.Nil(t, f.app.Tasks.CurrentTask())

	// deleting again hits a 404 and leaves the list alone
	ok, err = f.app.Tasks.DeleteTask(ctx, "t1")
	require.Error(t, err)
	assert.False(t, ok)
	assert.True(t, client.IsNotFound(err))
	assert.Equal(t, list, f.app.Tasks.List())
	require.NotNil(t, f.app.Tasks.Error())
	assert.Equal(t, "TASK_ERR_01", f.app.Tasks.Error().Code)

	assert.Equal(t, []notify.Message{
		{Kind: notify.KindSuccess, Text: "Task created successfully!"},
		{Kind: notify.KindSuccess, Text: "Task updated successfully!"},
		{Kind: notify.KindSuccess, Text: "Task deleted successfully!"},
	}, f.notifier.Messages())

	// a fresh fetch clears the stale flag
	require.NoError(t, f.app.Tasks.FetchTasks(ctx, 1, 10))
	assert.False(t, f.app.Tasks.Stale())
}

func TestFetchTaskDoesNotTouchList(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	require.NoError(t, f.signedIn(ctx))
	_, err := f.app.Tasks.CreateTask(ctx, models.TaskInput{Title: "A"})
	require.NoError(t, err)
	before := f.app.Tasks.List()

	task, err := f.app.Tasks.FetchTask(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "A", task.Title)
	assert.Equal(t, before, f.app.Tasks.List())

	_, err = f.app.Tasks.FetchTask(ctx, "missing")
	require.Error(t, err)
	assert.Nil(t, f.app.Tasks.Error(), "single fetch failures stay out of the combined error")
}

func TestRefetchAfterMutation(t *testing.T) {
	f := newFixture(func(d *Deps) {
		d.RefetchAfterMutation = true
		d.PageSize = 2
	})
	ctx := context.Background()
	require.NoError(t, f.signedIn(ctx))

	for _, title := range []string{"A", "B", "C"} {
		_, err := f.app.Tasks.CreateTask(ctx, models.TaskInput{Title: title})
		require.NoError(t, err)
	}

	list := f.app.Tasks.List()
	assert.False(t, f.app.Tasks.Stale())
	assert.Equal(t, 3, list.TotalCount)
	assert.Equal(t, 2, list.TotalPages)
	require.Len(t, list.Items, 2, "the re-fetched page honours the page size")
	assert.Equal(t, "C", list.Items[0].Title)
}

func TestCombinedErrorOrderAndClear(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.app.Tasks.ReportError(errors.New("usage: rm <id>"))
	require.NotNil(t, f.app.Tasks.Error())
	assert.Equal(t, "usage: rm <id>", f.app.Tasks.Error().Message)

	// fetch errors win over the locally reported one
	require.Error(t, f.app.Tasks.FetchTasks(ctx, 1, 10))
	assert.Equal(t, "ERR_ACCOUNT_ID_UNAVAILABLE", f.app.Tasks.Error().Code)

	f.app.Tasks.ClearError()
	assert.Nil(t, f.app.Tasks.Error())
}

func TestRejectConcurrentPolicyReachesContainers(t *testing.T) {
	f := newFixture(func(d *Deps) { d.Policy = async.RejectConcurrent })
	ctx := context.Background()
	require.NoError(t, f.signedIn(ctx))

	entered := make(chan struct{})
	release := make(chan struct{})
	f.api.listHook = func(context.Context) error {
		close(entered)
		<-release
		return nil
	}

	done := make(chan error, 1)
	go func() { done <- f.app.Tasks.FetchTasks(ctx, 1, 10) }()
	<-entered

	err := f.app.Tasks.FetchTasks(ctx, 2, 10)
	assert.ErrorIs(t, err, async.ErrInFlight)
	assert.True(t, f.app.Tasks.IsLoading(), "the first call is still running")

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, 1, f.app.Tasks.List().CurrentPage)

	f.api.mu.Lock()
	f.api.listHook = nil
	f.api.mu.Unlock()
	require.NoError(t, f.app.Tasks.FetchTasks(ctx, 2, 10), "a call after the first finished is accepted")
}

func TestCancelPreviousDropsSupersededPage(t *testing.T) {
	f := newFixture(func(d *Deps) { d.Policy = async.CancelPrevious })
	ctx := context.Background()
	require.NoError(t, f.signedIn(ctx))

	for _, title := range []string{"A", "B"} {
		_, err := f.app.Tasks.CreateTask(ctx, models.TaskInput{Title: title})
		require.NoError(t, err)
	}

	entered := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	f.api.listHook = func(context.Context) error {
		if calls.Add(1) == 1 {
			// answers after being superseded, ignoring its context
			close(entered)
			<-release
			return nil
		}
		return errors.New("backend unavailable")
	}

	done := make(chan error, 1)
	go func() { done <- f.app.Tasks.FetchTasks(ctx, 2, 1) }()
	<-entered

	require.Error(t, f.app.Tasks.FetchTasks(ctx, 1, 1))
	close(release)
	assert.ErrorIs(t, <-done, context.Canceled)

	list := f.app.Tasks.List()
	assert.NotEqual(t, 2, list.CurrentPage, "the superseded page must not be applied")
	require.Len(t, list.Items, 2)
	assert.Equal(t, "B", list.Items[0].Title)
	require.NotNil(t, f.app.Tasks.Error())
	assert.Equal(t, "backend unavailable", f.app.Tasks.Error().Message)
}

func TestResetPassword(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	require.NoError(t, f.app.ResetPassword.SendForgotPasswordEmail(ctx, "ada@example.com"))
	assert.Equal(t, []string{"ada@example.com"}, f.api.emails)
	assert.Nil(t, f.app.ResetPassword.SendForgotPasswordEmailError())

	err := f.app.ResetPassword.ResetPassword(ctx, ResetPasswordParams{AccountID: "acc-1", NewPassword: "new-secret", Token: "bad"})
	require.Error(t, err)
	assert.Equal(t, "ACCOUNT_ERR_04", f.app.ResetPassword.ResetPasswordError().Code)

	err = f.app.ResetPassword.ResetPassword(ctx, ResetPasswordParams{AccountID: "acc-1", NewPassword: "new-secret", Token: "reset-ok"})
	require.NoError(t, err)
	assert.Nil(t, f.app.ResetPassword.ResetPasswordError())
	assert.False(t, f.app.ResetPassword.IsResetPasswordLoading())
	require.Len(t, f.api.resetReqs, 1)
}

func TestAppOnChange(t *testing.T) {
	f := newFixture()
	var n int
	f.app.OnChange(func() { n++ })

	require.NoError(t, f.signedIn(context.Background()))
	require.NoError(t, f.app.Auth.Logout())
	assert.GreaterOrEqual(t, n, 5)
}
