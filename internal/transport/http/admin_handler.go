package http

import (
	"net/http"

	"exam-delivery-service/internal/app"
	"exam-delivery-service/internal/domain"
	"github.com/go-chi/chi/v5"
)

const actorHeader = "X-Actor"

// AdminHandler exposes the administrator use cases under /api/admin.
type AdminHandler struct {
	admin *app.AdminService
}

func NewAdminHandler(admin *app.AdminService) *AdminHandler {
	return &AdminHandler{admin: admin}
}

func (h *AdminHandler) Routes(r chi.Router) {
	r.Get("/sets", h.listSets)
	r.Post("/sets", h.createSet)
	r.Route("/sets/{setID}", func(sr chi.Router) {
		sr.Get("/", h.getSet)
		sr.Patch("/", h.renameSet)
		sr.Delete("/", h.deleteSet)
		sr.Post("/questions/mcq", h.addMCQ)
		sr.Post("/questions/paragraph", h.addParagraph)
		sr.Delete("/questions/{questionID}", h.deleteQuestion)
		sr.Post("/questions/duplicate", h.duplicateQuestions)
		sr.Post("/questions/move", h.moveQuestions)
		sr.Post("/questions/delete", h.deleteQuestions)
		sr.Get("/question-rates", h.questionRates)
	})
	r.Post("/assignments", h.assign)
	r.Get("/students", h.students)
	r.Patch("/students/{userID}/status", h.setStatus)
	r.Get("/settings", h.settings)
	r.Put("/settings", h.saveSettings)
	r.Get("/audit", h.auditLog)
	r.Delete("/audit", h.clearAudit)
	r.Get("/analytics", h.analytics)
}

func actor(r *http.Request) string {
	if a := r.Header.Get(actorHeader); a != "" {
		return a
	}
	return "admin"
}

type nameRequest struct {
	Name string `json:"name"`
}

type bulkRequest struct {
	TargetSetID string   `json:"targetSetId"`
	QuestionIDs []string `json:"questionIds"`
}

type bulkResponse struct {
	QuestionIDs []string `json:"questionIds"`
}

func (h *AdminHandler) listSets(w http.ResponseWriter, r *http.Request) {
	sets, err := h.admin.Sets(r.Context())
	if err != nil {
		writeDomainErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sets)
}

func (h *AdminHandler) createSet(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	set, err := h.admin.CreateSet(r.Context(), actor(r), req.Name)
	if err != nil {
		writeDomainErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, set)
}

func (h *AdminHandler) getSet(w http.ResponseWriter, r *http.Request) {
	set, err := h.admin.Set(r.Context(), chi.URLParam(r, "setID"))
	if err != nil {
		writeDomainErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, set)
}

func (h *AdminHandler) renameSet(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.admin.RenameSet(r.Context(), actor(r), chi.URLParam(r, "setID"), req.Name); err != nil {
		writeDomainErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) deleteSet(w http.ResponseWriter, r *http.Request) {
	if err := h.admin.DeleteSet(r.Context(), actor(r), chi.URLParam(r, "setID")); err != nil {
		writeDomainErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) addMCQ(w http.ResponseWriter, r *http.Request) {
	var in app.MCQInput
	if !decodeJSON(w, r, &in) {
		return
	}
	q, err := h.admin.AddMCQ(r.Context(), actor(r), chi.URLParam(r, "setID"), in)
	if err != nil {
		writeDomainErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, q)
}

func (h *AdminHandler) addParagraph(w http.ResponseWriter, r *http.Request) {
	var in app.ParagraphInput
	if !decodeJSON(w, r, &in) {
		return
	}
	q, err := h.admin.AddParagraph(r.Context(), actor(r), chi.URLParam(r, "setID"), in)
	if err != nil {
		writeDomainErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, q)
}

func (h *AdminHandler) deleteQuestion(w http.ResponseWriter, r *http.Request) {
	err := h.admin.DeleteQuestion(r.Context(), actor(r), chi.URLParam(r, "setID"), chi.URLParam(r, "questionID"))
	if err != nil {
		writeDomainErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) duplicateQuestions(w http.ResponseWriter, r *http.Request) {
	var req bulkRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ids, err := h.admin.DuplicateQuestions(r.Context(), actor(r), chi.URLParam(r, "setID"), req.TargetSetID, req.QuestionIDs)
	if err != nil {
		writeDomainErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bulkResponse{QuestionIDs: ids})
}

func (h *AdminHandler) moveQuestions(w http.ResponseWriter, r *http.Request) {
	var req bulkRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ids, err := h.admin.MoveQuestions(r.Context(), actor(r), chi.URLParam(r, "setID"), req.TargetSetID, req.QuestionIDs)
	if err != nil {
		writeDomainErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bulkResponse{QuestionIDs: ids})
}

func (h *AdminHandler) deleteQuestions(w http.ResponseWriter, r *http.Request) {
	var req bulkRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.admin.DeleteQuestions(r.Context(), actor(r), chi.URLParam(r, "setID"), req.QuestionIDs); err != nil {
		writeDomainErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) questionRates(w http.ResponseWriter, r *http.Request) {
	rates, err := h.admin.QuestionRates(r.Context(), chi.URLParam(r, "setID"))
	if err != nil {
		writeDomainErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rates)
}

func (h *AdminHandler) assign(w http.ResponseWriter, r *http.Request) {
	var in app.AssignInput
	if !decodeJSON(w, r, &in) {
		return
	}
	result, err := h.admin.AssignSet(r.Context(), actor(r), in)
	if err != nil {
		writeDomainErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *AdminHandler) students(w http.ResponseWriter, r *http.Request) {
	users, err := h.admin.Students(r.Context())
	if err != nil {
		writeDomainErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *AdminHandler) setStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status domain.UserStatus `json:"status"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.admin.SetUserStatus(r.Context(), actor(r), chi.URLParam(r, "userID"), req.Status); err != nil {
		writeDomainErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) settings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.admin.Settings(r.Context())
	if err != nil {
		writeDomainErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (h *AdminHandler) saveSettings(w http.ResponseWriter, r *http.Request) {
	var settings domain.Settings
	if !decodeJSON(w, r, &settings) {
		return
	}
	if err := h.admin.SaveSettings(r.Context(), actor(r), settings); err != nil {
		writeDomainErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (h *AdminHandler) auditLog(w http.ResponseWriter, r *http.Request) {
	entries, err := h.admin.AuditLog(r.Context())
	if err != nil {
		writeDomainErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *AdminHandler) clearAudit(w http.ResponseWriter, r *http.Request) {
	if err := h.admin.ClearAuditLog(r.Context()); err != nil {
		writeDomainErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) analytics(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	result, err := h.admin.Analytics(r.Context(), app.AttemptFilter{
		UserID: q.Get("userId"),
		SetID:  q.Get("setId"),
	})
	if err != nil {
		writeDomainErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
