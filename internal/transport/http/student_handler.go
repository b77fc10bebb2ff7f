package http

import (
	"errors"
	"net/http"
	"strconv"

	"exam-delivery-service/internal/app"
	"exam-delivery-service/internal/domain"
	"github.com/go-chi/chi/v5"
)

// StudentHandler exposes the student use cases under /api/students/{userID}.
type StudentHandler struct {
	exam *app.ExamService
}

func NewStudentHandler(exam *app.ExamService) *StudentHandler {
	return &StudentHandler{exam: exam}
}

func (h *StudentHandler) Routes(r chi.Router) {
	r.Get("/dashboard", h.dashboard)
	r.Get("/history", h.history)
	r.Get("/review/{setID}", h.review)
	r.Get("/bookmarks", h.bookmarks)
	r.Post("/bookmarks", h.toggleBookmark)
	r.Route("/attempt", func(ar chi.Router) {
		ar.Get("/", h.snapshot)
		ar.Post("/", h.start)
		ar.Delete("/", h.exit)
		ar.Post("/answers", h.choose)
		ar.Post("/submit", h.submit)
		ar.Post("/retry", h.retry)
		ar.Post("/retake", h.retake)
	})
}

func userID(r *http.Request) string {
	return chi.URLParam(r, "userID")
}

func (h *StudentHandler) dashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.exam.Dashboard(r.Context(), userID(r))
	if err != nil {
		writeDomainErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *StudentHandler) history(w http.ResponseWriter, r *http.Request) {
	rows, err := h.exam.History(r.Context(), userID(r))
	if err != nil {
		writeDomainErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (h *StudentHandler) review(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	incorrectOnly, _ := strconv.ParseBool(q.Get("incorrectOnly"))
	review, err := h.exam.Review(r.Context(), userID(r), chi.URLParam(r, "setID"), app.ReviewFilter{
		Query:         q.Get("q"),
		IncorrectOnly: incorrectOnly,
	})
	if err != nil {
		writeDomainErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, review)
}

func (h *StudentHandler) bookmarks(w http.ResponseWriter, r *http.Request) {
	list, err := h.exam.Bookmarks(r.Context(), userID(r))
	if err != nil {
		writeDomainErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *StudentHandler) toggleBookmark(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SetID      string `json:"setId"`
		QuestionID string `json:"questionId"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	on, err := h.exam.ToggleBookmark(r.Context(), userID(r), req.SetID, req.QuestionID)
	if err != nil {
		writeDomainErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"bookmarked": on})
}

func (h *StudentHandler) snapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.exam.Snapshot(r.Context(), userID(r)))
}

func (h *StudentHandler) start(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AssignmentID string `json:"assignmentId"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	snap, err := h.exam.StartAttempt(r.Context(), userID(r), req.AssignmentID)
	if err != nil {
		writeDomainErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, snap)
}

func (h *StudentHandler) choose(w http.ResponseWriter, r *http.Request) {
	var req choosePayload
	if !decodeJSON(w, r, &req) {
		return
	}
	snap, err := h.exam.Choose(r.Context(), userID(r), req.QuestionID, req.OptionIndex)
	if err != nil {
		writeDomainErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// resultResponse carries the graded result even when saving it failed.
type resultResponse struct {
	Result       app.AttemptResult `json:"result"`
	PersistError string            `json:"persistError,omitempty"`
}

func (h *StudentHandler) writeResult(w http.ResponseWriter, r *http.Request, result app.AttemptResult, err error) {
	if errors.Is(err, domain.ErrPersistFailed) {
		writeJSON(w, http.StatusServiceUnavailable, resultResponse{Result: result, PersistError: err.Error()})
		return
	}
	if err != nil {
		writeDomainErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resultResponse{Result: result})
}

func (h *StudentHandler) submit(w http.ResponseWriter, r *http.Request) {
	result, err := h.exam.Submit(r.Context(), userID(r))
	h.writeResult(w, r, result, err)
}

func (h *StudentHandler) retry(w http.ResponseWriter, r *http.Request) {
	result, err := h.exam.RetryPersist(r.Context(), userID(r))
	h.writeResult(w, r, result, err)
}

func (h *StudentHandler) retake(w http.ResponseWriter, r *http.Request) {
	snap, err := h.exam.Retake(r.Context(), userID(r))
	if err != nil {
		writeDomainErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, snap)
}

func (h *StudentHandler) exit(w http.ResponseWriter, r *http.Request) {
	if err := h.exam.Exit(r.Context(), userID(r)); err != nil {
		writeDomainErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
