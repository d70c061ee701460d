package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/ankittk/signoff/internal/store"
	"github.com/ankittk/signoff/pkg/models"
)

type handlers struct {
	store store.Store
	hub   *SSEHub
	log   *slog.Logger
}

// fail writes err with the status code of its kind. Internal failures are logged.
func (h *handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := store.StatusCode(err)
	if code >= http.StatusInternalServerError {
		h.log.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "err", err)
	}
	writeJSONError(w, code, err.Error())
}

func (h *handlers) published(w http.ResponseWriter, name, op, msg string) {
	h.hub.PublishJSON(models.Event{Type: models.EventTaskUpdate, Task: name, Op: op})
	writeMessage(w, http.StatusOK, msg)
}

func (h *handlers) createTask(w http.ResponseWriter, r *http.Request) {
	var body models.CreateTaskRequest
	if !decodeBody(w, r, &body) {
		return
	}
	t := store.Task{
		Name:        body.TaskName,
		Approver1:   body.Approver1,
		Approver2:   body.Approver2,
		Approver3:   body.Approver3,
		Description: body.TaskDescription,
	}
	if err := h.store.CreateTask(r.Context(), t); err != nil {
		h.fail(w, r, err)
		return
	}
	h.published(w, t.Name, "create", store.MessageAdded(t.Name))
}

func (h *handlers) listTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.store.ListTasks(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := make([]models.Task, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.Model())
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handlers) getTask(w http.ResponseWriter, r *http.Request) {
	t, err := h.store.GetTask(r.Context(), taskName(r), r.URL.Query().Get("user"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t.Model())
}

func (h *handlers) addComment(w http.ResponseWriter, r *http.Request) {
	var body models.CommentRequest
	if !decodeBody(w, r, &body) || !requireUser(w, body.User) {
		return
	}
	name := taskName(r)
	if err := h.store.AddComment(r.Context(), name, body.Comment, body.User); err != nil {
		h.fail(w, r, err)
		return
	}
	h.published(w, name, "comment", store.MessageCommentAdded(name))
}

func (h *handlers) addRecommendation(w http.ResponseWriter, r *http.Request) {
	var body models.RecommendationRequest
	if !decodeBody(w, r, &body) || !requireUser(w, body.User) {
		return
	}
	name := taskName(r)
	if err := h.store.AddRecommendation(r.Context(), name, body.Recommendation, body.User); err != nil {
		h.fail(w, r, err)
		return
	}
	h.published(w, name, "recommend", store.MessageRecommendationAdded(name))
}

func (h *handlers) clearComments(w http.ResponseWriter, r *http.Request) {
	user := r.URL.Query().Get("user")
	if !requireUser(w, user) {
		return
	}
	name := taskName(r)
	if err := h.store.ClearComments(r.Context(), name, user); err != nil {
		h.fail(w, r, err)
		return
	}
	h.published(w, name, "clear_comments", store.MessageCommentsCleared(name))
}
