package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/fentz26/taskdeck/internal/models"
	"github.com/spf13/cobra"
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage tasks",
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks, newest first",
	RunE:  runTaskList,
}

var taskShowCmd = &cobra.Command{
	Use:   "show [task-id]",
	Short: "Show task details",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskShow,
}

var taskAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a new task",
	RunE:  runTaskAdd,
}

var taskEditCmd = &cobra.Command{
	Use:   "edit [task-id]",
	Short: "Change a task's title and description",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskEdit,
}

var taskRmCmd = &cobra.Command{
	Use:     "rm [task-id]",
	Aliases: []string{"delete"},
	Short:   "Delete a task",
	Args:    cobra.ExactArgs(1),
	RunE:    runTaskRm,
}

var (
	taskTitle string
	taskDesc  string
	page      int
	pageSize  int
)

func init() {
	taskCmd.AddCommand(taskListCmd, taskShowCmd, taskAddCmd, taskEditCmd, taskRmCmd)

	taskListCmd.Flags().IntVar(&page, "page", 1, "Page to show")
	taskListCmd.Flags().IntVar(&pageSize, "size", 0, "Tasks per page (default from config)")

	for _, c := range []*cobra.Command{taskAddCmd, taskEditCmd} {
		c.Flags().StringVar(&taskTitle, "title", "", "Task title (required)")
		c.Flags().StringVar(&taskDesc, "desc", "", "Task description (required)")
		c.MarkFlagRequired("title")
		c.MarkFlagRequired("desc")
	}
}

func runTaskList(cmd *cobra.Command, args []string) error {
	return withAccount(cmd.Context(), cmd.OutOrStdout(), func(ctx context.Context, s *session) error {
		if err := s.app.Tasks.FetchTasks(ctx, page, pageSize); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		list := s.app.Tasks.List()
		if len(list.Items) == 0 {
			fmt.Fprintln(out, "No tasks found")
			return nil
		}

		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTITLE\tDESCRIPTION")
		for _, t := range list.Items {
			fmt.Fprintf(w, "%s\t%s\t%s\n", t.ID, truncate(t.Title, 40), truncate(t.Description, 50))
		}
		w.Flush()
		fmt.Fprintf(out, "\nPage %d of %d (%d tasks)\n", list.CurrentPage, max(list.TotalPages, 1), list.TotalCount)
		return nil
	})
}

func runTaskShow(cmd *cobra.Command, args []string) error {
	return withAccount(cmd.Context(), cmd.OutOrStdout(), func(ctx context.Context, s *session) error {
		task, err := s.app.Tasks.FetchTask(ctx, args[0])
		if err != nil {
			return err
		}
		printTask(cmd, task)
		return nil
	})
}

func runTaskAdd(cmd *cobra.Command, args []string) error {
	return withAccount(cmd.Context(), cmd.OutOrStdout(), func(ctx context.Context, s *session) error {
		task, err := s.app.Tasks.CreateTask(ctx, models.TaskInput{Title: taskTitle, Description: taskDesc})
		if err != nil {
			return err
		}
		printTask(cmd, task)
		return nil
	})
}

func runTaskEdit(cmd *cobra.Command, args []string) error {
	return withAccount(cmd.Context(), cmd.OutOrStdout(), func(ctx context.Context, s *session) error {
		task, err := s.app.Tasks.UpdateTask(ctx, args[0], models.TaskInput{Title: taskTitle, Description: taskDesc})
		if err != nil {
			return err
		}
		printTask(cmd, task)
		return nil
	})
}

func runTaskRm(cmd *cobra.Command, args []string) error {
	return withAccount(cmd.Context(), cmd.OutOrStdout(), func(ctx context.Context, s *session) error {
		_, err := s.app.Tasks.DeleteTask(ctx, args[0])
		return err
	})
}

func printTask(cmd *cobra.Command, t *models.Task) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "ID:          %s\n", t.ID)
	fmt.Fprintf(out, "Title:       %s\n", t.Title)
	fmt.Fprintf(out, "Description: %s\n", t.Description)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
