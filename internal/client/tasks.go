package client

import (
	"context"
	"net/http"

	"github.com/fentz26/taskdeck/internal/models"
)

// GetAccount fetches the account the access token belongs to.
func (c *Client) GetAccount(ctx context.Context, tok models.AccessToken) (*models.Account, error) {
	var account models.Account
	if err := c.do(ctx, http.MethodGet, accountPath(tok.AccountID), tok.Token, nil, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

// ListTasks fetches one page of an account's tasks.
func (c *Client) ListTasks(ctx context.Context, token, accountID string, page, size int) (*models.TaskPage, error) {
	var result models.TaskPage
	if err := c.do(ctx, http.MethodGet, tasksPath(accountID)+pageQuery(page, size), token, nil, &result); err != nil {
		return nil, err
	}
	if result.Items == nil {
		result.Items = []models.Task{}
	}
	return &result, nil
}

// GetTask fetches a single task.
func (c *Client) GetTask(ctx context.Context, token, accountID, taskID string) (*models.Task, error) {
	var task models.Task
	if err := c.do(ctx, http.MethodGet, taskPath(accountID, taskID), token, nil, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// CreateTask creates a new task.
func (c *Client) CreateTask(ctx context.Context, token, accountID string, in models.TaskInput) (*models.Task, error) {
	var task models.Task
	if err := c.do(ctx, http.MethodPost, tasksPath(accountID), token, in, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// UpdateTask replaces a task's title and description.
func (c *Client) UpdateTask(ctx context.Context, token, accountID, taskID string, in models.TaskInput) (*models.Task, error) {
	var task models.Task
	if err := c.do(ctx, http.MethodPatch, taskPath(accountID, taskID), token, in, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// DeleteTask deletes a task.
func (c *Client) DeleteTask(ctx context.Context, token, accountID, taskID string) error {
	return c.do(ctx, http.MethodDelete, taskPath(accountID, taskID), token, nil, nil)
}
