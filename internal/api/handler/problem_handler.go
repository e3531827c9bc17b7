package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"tohomc/internal/app/service"
	"tohomc/internal/common"
	"tohomc/internal/domain/model"

	"github.com/go-chi/chi/v5"
)

// multipartOverhead covers form boundaries and the kind field on top of the image itself.
const multipartOverhead = 1 << 20

type ProblemHandler struct {
	problemService *service.ProblemService
	maxImageBytes  int64
}

func NewProblemHandler(ps *service.ProblemService, maxImageBytes int64) *ProblemHandler {
	return &ProblemHandler{problemService: ps, maxImageBytes: maxImageBytes}
}

// RegisterRoutes mounts the archive of ended contests.
func (h *ProblemHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.listArchive) // GET /api/v1/problems
}

// RegisterContestRoutes mounts problem routes under /contests/{contestID}.
func (h *ProblemHandler) RegisterContestRoutes(r chi.Router) {
	r.Route("/problems/{problemID}", func(pr chi.Router) {
		pr.Get("/", h.getProblem)
		pr.Put("/", h.updateProblem)
		pr.Get("/explanation", h.getExplanation)
		pr.Post("/images", h.uploadImage)
		pr.Delete("/images/{kind}", h.removeImage)
	})
}

func (h *ProblemHandler) listArchive(w http.ResponseWriter, r *http.Request) {
	problems, err := h.problemService.Archive(r.Context())
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, problems)
}

func (h *ProblemHandler) getProblem(w http.ResponseWriter, r *http.Request) {
	username, ok := currentUsername(w, r)
	if !ok {
		return
	}
	problem, err := h.problemService.Get(r.Context(), username, chi.URLParam(r, "contestID"), chi.URLParam(r, "problemID"))
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, problem)
}

func (h *ProblemHandler) updateProblem(w http.ResponseWriter, r *http.Request) {
	username, ok := currentUsername(w, r)
	if !ok {
		return
	}
	var req service.UpdateProblemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}

	problem, err := h.problemService.Update(r.Context(), username, chi.URLParam(r, "contestID"), chi.URLParam(r, "problemID"), req)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, problem)
}

func (h *ProblemHandler) getExplanation(w http.ResponseWriter, r *http.Request) {
	username, ok := currentUsername(w, r)
	if !ok {
		return
	}
	explanation, err := h.problemService.Explanation(r.Context(), username, chi.URLParam(r, "contestID"), chi.URLParam(r, "problemID"))
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, explanation)
}

// uploadImage expects multipart/form-data with a "kind" field and a "file" part.
func (h *ProblemHandler) uploadImage(w http.ResponseWriter, r *http.Request) {
	username, ok := currentUsername(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxImageBytes+multipartOverhead)
	if err := r.ParseMultipartForm(h.maxImageBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			common.RespondWithError(w, http.StatusRequestEntityTooLarge, "Image too large")
			return
		}
		common.RespondWithError(w, http.StatusBadRequest, "Invalid multipart form: "+err.Error())
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Missing file: "+err.Error())
		return
	}
	defer file.Close()

	// One byte past the limit is enough for the service to reject oversize files.
	data, err := io.ReadAll(io.LimitReader(file, h.maxImageBytes+1))
	if err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Failed to read file: "+err.Error())
		return
	}

	kind := model.ImageKind(r.FormValue("kind"))
	if kind == "" {
		kind = model.ImageKindProblem
	}
	problem, err := h.problemService.UploadImage(r.Context(), username, chi.URLParam(r, "contestID"), chi.URLParam(r, "problemID"), kind, header.Filename, data)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, problem)
}

func (h *ProblemHandler) removeImage(w http.ResponseWriter, r *http.Request) {
	username, ok := currentUsername(w, r)
	if !ok {
		return
	}
	kind := model.ImageKind(chi.URLParam(r, "kind"))
	problem, err := h.problemService.RemoveImage(r.Context(), username, chi.URLParam(r, "contestID"), chi.URLParam(r, "problemID"), kind)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, problem)
}
