package state

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/fentz26/taskdeck/internal/async"
	"github.com/fentz26/taskdeck/internal/models"
	"github.com/fentz26/taskdeck/internal/notify"
	"github.com/fentz26/taskdeck/internal/storage"
)

// TaskList is the in-memory page of tasks plus the pagination metadata the
// server returned with it.
type TaskList struct {
	Items       []models.Task
	TotalCount  int
	TotalPages  int
	CurrentPage int
	PageSize    int
}

type pageArgs struct {
	page, size int
}

type updateArgs struct {
	id    string
	input models.TaskInput
}

// Tasks owns one account's task list.
//
// Create, update and delete patch the loaded page in place instead of
// re-fetching it, so TotalCount and TotalPages can drift from the server
// until the next FetchTasks. Stale reports when that may have happened.
type Tasks struct {
	api       API
	tokens    storage.TokenStore
	notifier  notify.Notifier
	logger    *slog.Logger
	accountID func() string
	refetch   bool
	observers observers

	mu       sync.Mutex
	list     TaskList
	current  *models.Task
	stale    bool
	localErr *async.ErrorInfo

	fetch    *async.Operation[pageArgs, models.TaskPage]
	fetchOne *async.Operation[string, models.Task]
	create   *async.Operation[models.TaskInput, models.Task]
	update   *async.Operation[updateArgs, models.Task]
	remove   *async.Operation[string, bool]
}

func newTasks(d Deps, accountID func() string) *Tasks {
	t := &Tasks{
		api:       d.API,
		tokens:    d.Tokens,
		notifier:  d.Notifier,
		logger:    d.Logger,
		accountID: accountID,
		refetch:   d.RefetchAfterMutation,
		list:      TaskList{Items: []models.Task{}, CurrentPage: 1, PageSize: d.PageSize},
	}
	policy := async.WithPolicy(d.Policy)

	t.fetch = async.New(t.fetchPage, policy)
	t.fetchOne = async.New(t.fetchTask, policy)
	t.create = async.New(t.createTask, policy)
	t.update = async.New(t.updateTask, policy)
	t.remove = async.New(t.deleteTask, policy)

	t.fetch.OnChange(t.observers.notify)
	t.fetchOne.OnChange(t.observers.notify)
	t.create.OnChange(t.observers.notify)
	t.update.OnChange(t.observers.notify)
	t.remove.OnChange(t.observers.notify)
	return t
}

// session resolves the account id and token every task call needs.
func (t *Tasks) session() (token, accountID string, err error) {
	accountID = t.accountID()
	if accountID == "" {
		return "", "", ErrAccountIDUnavailable
	}
	tok, err := accessToken(t.tokens)
	if err != nil {
		return "", "", err
	}
	return tok.Token, accountID, nil
}

func (t *Tasks) fetchPage(ctx context.Context, args pageArgs) (*models.TaskPage, error) {
	token, accountID, err := t.session()
	if err != nil {
		return nil, err
	}
	page, err := t.api.ListTasks(ctx, token, accountID, args.page, args.size)
	if err != nil {
		return nil, err
	}

	items := make([]models.Task, len(page.Items))
	copy(items, page.Items)

	err = t.apply(ctx, func() {
		t.list = TaskList{
			Items:       items,
			TotalCount:  page.TotalCount,
			TotalPages:  page.TotalPages,
			CurrentPage: page.PaginationParams.Page,
			PageSize:    page.PaginationParams.Size,
		}
		t.stale = false
	})
	if err != nil {
		return nil, err
	}
	return page, nil
}

// apply runs mutate under t.mu unless ctx was cancelled by a superseding call.
// The check happens under the lock so a superseded result is never written.
func (t *Tasks) apply(ctx context.Context, mutate func()) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	mutate()
	return nil
}

func (t *Tasks) fetchTask(ctx context.Context, id string) (*models.Task, error) {
	token, accountID, err := t.session()
	if err != nil {
		return nil, err
	}
	return t.api.GetTask(ctx, token, accountID, id)
}

func (t *Tasks) createTask(ctx context.Context, in models.TaskInput) (*models.Task, error) {
	token, accountID, err := t.session()
	if err != nil {
		return nil, err
	}
	task, err := t.api.CreateTask(ctx, token, accountID, in)
	if err != nil {
		return nil, err
	}

	err = t.apply(ctx, func() {
		t.list.Items = append([]models.Task{*task}, t.list.Items...)
		t.list.TotalCount++
		t.stale = true
	})
	if err != nil {
		return nil, err
	}

	t.notifier.Success("Task created successfully!")
	return task, nil
}

func (t *Tasks) updateTask(ctx context.Context, args updateArgs) (*models.Task, error) {
	token, accountID, err := t.session()
	if err != nil {
		return nil, err
	}
	task, err := t.api.UpdateTask(ctx, token, accountID, args.id, args.input)
	if err != nil {
		return nil, err
	}

	err = t.apply(ctx, func() {
		items := make([]models.Task, len(t.list.Items))
		for i, it := range t.list.Items {
			if it.ID == args.id {
				it = *task
			}
			items[i] = it
		}
		t.list.Items = items
		if t.current != nil && t.current.ID == args.id {
			updated := *task
			t.current = &updated
		}
		t.stale = true
	})
	if err != nil {
		return nil, err
	}

	t.notifier.Success("Task updated successfully!")
	return task, nil
}

func (t *Tasks) deleteTask(ctx context.Context, id string) (*bool, error) {
	token, accountID, err := t.session()
	if err != nil {
		return nil, err
	}
	if err := t.api.DeleteTask(ctx, token, accountID, id); err != nil {
		return nil, err
	}

	err = t.apply(ctx, func() {
		items := make([]models.Task, 0, len(t.list.Items))
		for _, it := range t.list.Items {
			if it.ID != id {
				items = append(items, it)
			}
		}
		t.list.Items = items
		t.list.TotalCount--
		if t.current != nil && t.current.ID == id {
			t.current = nil
		}
		t.stale = true
	})
	if err != nil {
		return nil, err
	}

	t.notifier.Success("Task deleted successfully!")
	ok := true
	return &ok, nil
}

// FetchTasks loads one page and replaces the list and its pagination
// wholesale. page < 1 means the first page, size < 1 the configured size.
func (t *Tasks) FetchTasks(ctx context.Context, page, size int) error {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = t.defaultSize()
	}
	_, err := t.fetch.Invoke(ctx, pageArgs{page: page, size: size})
	return err
}

// FetchTask loads a single task. The list is not touched.
func (t *Tasks) FetchTask(ctx context.Context, id string) (*models.Task, error) {
	return t.fetchOne.Invoke(ctx, id)
}

// CreateTask creates a task and prepends it to the loaded page.
func (t *Tasks) CreateTask(ctx context.Context, in models.TaskInput) (*models.Task, error) {
	task, err := t.create.Invoke(ctx, in)
	if err != nil {
		return nil, err
	}
	t.afterMutation(ctx)
	return task, nil
}

// UpdateTask updates a task and replaces it in the loaded page.
func (t *Tasks) UpdateTask(ctx context.Context, id string, in models.TaskInput) (*models.Task, error) {
	task, err := t.update.Invoke(ctx, updateArgs{id: id, input: in})
	if err != nil {
		return nil, err
	}
	t.afterMutation(ctx)
	return task, nil
}

// DeleteTask deletes a task and drops it from the loaded page.
func (t *Tasks) DeleteTask(ctx context.Context, id string) (bool, error) {
	ok, err := t.remove.Invoke(ctx, id)
	if err != nil {
		return false, err
	}
	t.afterMutation(ctx)
	return ok != nil && *ok, nil
}

// afterMutation re-fetches the current page when configured to.
func (t *Tasks) afterMutation(ctx context.Context) {
	if !t.refetch {
		return
	}
	list := t.List()
	err := t.FetchTasks(ctx, list.CurrentPage, list.PageSize)
	if err != nil && !errors.Is(err, async.ErrInFlight) {
		t.logger.Warn("refetch after mutation failed", "error", err)
	}
}

func (t *Tasks) defaultSize() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.list.PageSize
}

// SetCurrentTask selects the task shown in detail. nil clears it.
func (t *Tasks) SetCurrentTask(task *models.Task) {
	t.mu.Lock()
	if task == nil {
		t.current = nil
	} else {
		c := *task
		t.current = &c
	}
	t.mu.Unlock()
	t.observers.notify()
}

// CurrentTask returns the selected task, if any.
func (t *Tasks) CurrentTask() *models.Task {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current == nil {
		return nil
	}
	c := *t.current
	return &c
}

// ReportError records a failure raised by the caller rather than by an API
// call. It surfaces through Error like any other failure.
func (t *Tasks) ReportError(err error) {
	info := async.Normalize(err)
	t.mu.Lock()
	t.localErr = &info
	t.mu.Unlock()
	t.observers.notify()
}

// ClearError drops every recorded failure.
func (t *Tasks) ClearError() {
	t.mu.Lock()
	t.localErr = nil
	t.mu.Unlock()
	t.fetch.ClearError()
	t.create.ClearError()
	t.update.ClearError()
	t.remove.ClearError()
}

// Error returns the first failure of fetch, create, update, delete and the
// locally reported error, in that order.
func (t *Tasks) Error() *async.ErrorInfo {
	for _, e := range []*async.ErrorInfo{t.fetch.Err(), t.create.Err(), t.update.Err(), t.remove.Err()} {
		if e != nil {
			return e
		}
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.localErr
}

// List returns a copy of the loaded page.
func (t *Tasks) List() TaskList {
	t.mu.Lock()
	defer t.mu.Unlock()
	l := t.list
	l.Items = make([]models.Task, len(t.list.Items))
	copy(l.Items, t.list.Items)
	return l
}

// Items returns the loaded tasks.
func (t *Tasks) Items() []models.Task { return t.List().Items }

// Stale reports whether the list was patched locally since the last fetch.
func (t *Tasks) Stale() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stale
}

// IsLoading reports whether a page is being fetched.
func (t *Tasks) IsLoading() bool { return t.fetch.IsLoading() }

// IsCreating reports whether a create is in flight.
func (t *Tasks) IsCreating() bool { return t.create.IsLoading() }

// IsUpdating reports whether an update is in flight.
func (t *Tasks) IsUpdating() bool { return t.update.IsLoading() }

// IsDeleting reports whether a delete is in flight.
func (t *Tasks) IsDeleting() bool { return t.remove.IsLoading() }

// OnChange registers fn for every task state transition.
func (t *Tasks) OnChange(fn func()) { t.observers.add(fn) }
