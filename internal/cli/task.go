package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ankittk/signoff/internal/config"
	"github.com/ankittk/signoff/internal/identity"
	"github.com/ankittk/signoff/internal/store"
	"github.com/ankittk/signoff/internal/store/driver"
	"github.com/ankittk/signoff/pkg/client"
	"github.com/ankittk/signoff/pkg/models"
)

// taskAPI is what task commands need; *client.Client and localTasks both satisfy it.
type taskAPI interface {
	CreateTask(ctx context.Context, req models.CreateTaskRequest) (string, error)
	GetTask(ctx context.Context, name, user string) (*models.Task, error)
	ListTasks(ctx context.Context) ([]models.Task, error)
	AddComment(ctx context.Context, name, comment, user string) (string, error)
	AddRecommendation(ctx context.Context, name, recommendation, user string) (string, error)
	ClearComments(ctx context.Context, name, user string) (string, error)
}

var _ taskAPI = (*client.Client)(nil)

// localTasks runs task commands directly against the configured store.
type localTasks struct {
	st store.Store
}

func (l localTasks) CreateTask(ctx context.Context, req models.CreateTaskRequest) (string, error) {
	t := store.Task{
		Name:        req.TaskName,
		Approver1:   req.Approver1,
		Approver2:   req.Approver2,
		Approver3:   req.Approver3,
		Description: req.TaskDescription,
	}
	if err := l.st.CreateTask(ctx, t); err != nil {
		return "", err
	}
	return store.MessageAdded(t.Name), nil
}

func (l localTasks) GetTask(ctx context.Context, name, user string) (*models.Task, error) {
	t, err := l.st.GetTask(ctx, name, user)
	if err != nil {
		return nil, err
	}
	m := t.Model()
	return &m, nil
}

func (l localTasks) ListTasks(ctx context.Context) ([]models.Task, error) {
	tasks, err := l.st.ListTasks(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.Task, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.Model())
	}
	return out, nil
}

func (l localTasks) AddComment(ctx context.Context, name, comment, user string) (string, error) {
	if err := l.st.AddComment(ctx, name, comment, user); err != nil {
		return "", err
	}
	return store.MessageCommentAdded(name), nil
}

func (l localTasks) AddRecommendation(ctx context.Context, name, recommendation, user string) (string, error) {
	if err := l.st.AddRecommendation(ctx, name, recommendation, user); err != nil {
		return "", err
	}
	return store.MessageRecommendationAdded(name), nil
}

func (l localTasks) ClearComments(ctx context.Context, name, user string) (string, error) {
	if err := l.st.ClearComments(ctx, name, user); err != nil {
		return "", err
	}
	return store.MessageCommentsCleared(name), nil
}

// remoteFlags select a running server instead of the local store.
type remoteFlags struct {
	server string
	apiKey string
}

// openTasks returns the task API for cmd and a func to release it.
func (f *remoteFlags) openTasks(cmd *cobra.Command) (taskAPI, func(), error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	if f.server != "" {
		key := f.apiKey
		if key == "" {
			key = cfg.APIKey
		}
		return client.New(strings.TrimRight(f.server, "/"), key), func() {}, nil
	}
	st, err := driver.Open(cmd.Context(), driver.Options{
		Driver:  cfg.DBDriver,
		DataDir: cfg.DataDir,
		DSN:     cfg.DBURL,
		Logger:  settingsFrom(cmd).log,
	})
	if err != nil {
		return nil, nil, err
	}
	return localTasks{st: st}, func() { _ = st.Close() }, nil
}

// resolveUser falls back to the saved identity when --user is not given.
func resolveUser(cmd *cobra.Command, user string) string {
	if cmd.Flags().Changed("user") {
		return user
	}
	return identity.DefaultUser(config.MustHomeFrom(cmd.Context()))
}

func requireUser(cmd *cobra.Command, user string) (string, error) {
	u := resolveUser(cmd, user)
	if strings.TrimSpace(u) == "" {
		return "", errors.New("--user is required (or save a default with `signoff identity detect`)")
	}
	return u, nil
}

func newTaskCmd() *cobra.Command {
	rf := &remoteFlags{}
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Create and review tasks",
	}
	cmd.PersistentFlags().StringVar(&rf.server, "server", "", "Use a running server (e.g. http://127.0.0.1:5000) instead of the local store")
	cmd.PersistentFlags().StringVar(&rf.apiKey, "api-key", "", "API key for --server (default: SIGNOFF_API_KEY)")

	cmd.AddCommand(newTaskCreateCmd(rf))
	cmd.AddCommand(newTaskGetCmd(rf))
	cmd.AddCommand(newTaskListCmd(rf))
	cmd.AddCommand(newTaskCommentCmd(rf))
	cmd.AddCommand(newTaskRecommendCmd(rf))
	cmd.AddCommand(newTaskClearCommentsCmd(rf))
	return cmd
}

func newTaskCreateCmd(rf *remoteFlags) *cobra.Command {
	var req models.CreateTaskRequest
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a task with up to three approvers",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(req.TaskName) == "" {
				return errors.New("--name is required")
			}
			api, done, err := rf.openTasks(cmd)
			if err != nil {
				return err
			}
			defer done()

			msg, err := api.CreateTask(cmd.Context(), req)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), msg)
			return nil
		},
	}
	cmd.Flags().StringVar(&req.TaskName, "name", "", "Task name (unique)")
	cmd.Flags().StringVar(&req.Approver1, "approver1", "", "First approver")
	cmd.Flags().StringVar(&req.Approver2, "approver2", "", "Second approver")
	cmd.Flags().StringVar(&req.Approver3, "approver3", "", "Third approver")
	cmd.Flags().StringVar(&req.TaskDescription, "description", "", "Task description")
	return cmd
}

func newTaskGetCmd(rf *remoteFlags) *cobra.Command {
	var user string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "get NAME",
		Short: "Show a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, done, err := rf.openTasks(cmd)
			if err != nil {
				return err
			}
			defer done()

			t, err := api.GetTask(cmd.Context(), args[0], resolveUser(cmd, user))
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), t)
			}
			printTask(cmd.OutOrStdout(), *t)
			return nil
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "Requesting user (default: saved identity)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the task as JSON")
	return cmd
}

func newTaskListCmd(rf *remoteFlags) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			api, done, err := rf.openTasks(cmd)
			if err != nil {
				return err
			}
			defer done()

			tasks, err := api.ListTasks(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), tasks)
			}
			out := cmd.OutOrStdout()
			if len(tasks) == 0 {
				_, _ = fmt.Fprintln(out, "No tasks")
				return nil
			}
			for _, t := range tasks {
				rec := t.Recommendation
				if rec == "" {
					rec = "-"
				}
				_, _ = fmt.Fprintf(out, "%s\tapprovers=%s\tcomments=%d\trecommendation=%s\n",
					t.TaskName, strings.Join(approvers(t), ","), len(t.Comments), rec)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print tasks as a JSON array")
	return cmd
}

func newTaskCommentCmd(rf *remoteFlags) *cobra.Command {
	var text, user string
	cmd := &cobra.Command{
		Use:   "comment NAME",
		Short: "Add a comment to a task (approvers only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := requireUser(cmd, user)
			if err != nil {
				return err
			}
			api, done, err := rf.openTasks(cmd)
			if err != nil {
				return err
			}
			defer done()

			msg, err := api.AddComment(cmd.Context(), args[0], text, u)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), msg)
			return nil
		},
	}
	cmd.Flags().StringVar(&text, "text", "", "Comment text")
	cmd.Flags().StringVar(&user, "user", "", "Commenting approver (default: saved identity)")
	return cmd
}

func newTaskRecommendCmd(rf *remoteFlags) *cobra.Command {
	var text, user string
	cmd := &cobra.Command{
		Use:   "recommend NAME",
		Short: "Set the task recommendation (approvers only); replaces any previous one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := requireUser(cmd, user)
			if err != nil {
				return err
			}
			api, done, err := rf.openTasks(cmd)
			if err != nil {
				return err
			}
			defer done()

			msg, err := api.AddRecommendation(cmd.Context(), args[0], text, u)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), msg)
			return nil
		},
	}
	cmd.Flags().StringVar(&text, "text", "", "Recommendation text")
	cmd.Flags().StringVar(&user, "user", "", "Recommending approver (default: saved identity)")
	return cmd
}

func newTaskClearCommentsCmd(rf *remoteFlags) *cobra.Command {
	var user string
	cmd := &cobra.Command{
		Use:   "clear-comments NAME",
		Short: "Remove all comments from a task (approvers only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := requireUser(cmd, user)
			if err != nil {
				return err
			}
			api, done, err := rf.openTasks(cmd)
			if err != nil {
				return err
			}
			defer done()

			msg, err := api.ClearComments(cmd.Context(), args[0], u)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), msg)
			return nil
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "Approver clearing the comments (default: saved identity)")
	return cmd
}

func approvers(t models.Task) []string {
	var out []string
	for _, a := range []string{t.Approver1, t.Approver2, t.Approver3} {
		if a != "" {
			out = append(out, a)
		}
	}
	return out
}

func printTask(w io.Writer, t models.Task) {
	_, _ = fmt.Fprintf(w, "Task: %s\n", t.TaskName)
	if t.TaskDescription != "" {
		_, _ = fmt.Fprintf(w, "Description: %s\n", t.TaskDescription)
	}
	_, _ = fmt.Fprintf(w, "Approvers: %s\n", strings.Join(approvers(t), ", "))
	if len(t.Comments) == 0 {
		_, _ = fmt.Fprintln(w, "Comments: none")
	} else {
		_, _ = fmt.Fprintln(w, "Comments:")
		for _, c := range t.Comments {
			text, user, ok := store.ParseComment(c)
			if !ok {
				_, _ = fmt.Fprintf(w, "  %s\n", c)
				continue
			}
			_, _ = fmt.Fprintf(w, "  %s: %s\n", user, text)
		}
	}
	if t.DecisionMaker != "" || t.Recommendation != "" {
		_, _ = fmt.Fprintf(w, "Recommendation: %s (by %s)\n", t.Recommendation, t.DecisionMaker)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
