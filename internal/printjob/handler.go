package printjob

import (
	"encoding/base64"
	"encoding/json"
	"net/http"

	"trattoria-be/internal/logger"
	"trattoria-be/internal/utils"
)

// Handler exposes the three-verb polling protocol plus registration and the
// operational status surface.
type Handler struct {
	svc Service
}

func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

// Mount attaches the print routes to the mux.
func (h *Handler) Mount(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/printer/{mac}/job", h.retrieve)
	mux.HandleFunc("POST /api/printer/{mac}/confirm", h.confirm)
	mux.HandleFunc("POST /api/printer/{mac}/register", h.register)
	mux.HandleFunc("POST /api/printjobs", h.enqueue)
	mux.HandleFunc("GET /api/printjobs/status", h.status)
}

type jobResponse struct {
	JobID   string `json:"job_id"`
	Dialect string `json:"dialect"`
	// Payload is base64 so arbitrary printer command bytes survive JSON.
	Payload string `json:"payload"`
}

func (h *Handler) retrieve(w http.ResponseWriter, r *http.Request) {
	mac := r.PathValue("mac")
	ctx := logger.WithPrinter(r.Context(), mac)

	job, err := h.svc.Retrieve(ctx, mac)
	if err != nil {
		utils.WriteJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if job == nil {
		// "No job" is a valid answer, not an error.
		w.WriteHeader(http.StatusNoContent)
		return
	}

	utils.WriteJSON(w, http.StatusOK, jobResponse{
		JobID:   job.ID,
		Dialect: job.Dialect,
		Payload: base64.StdEncoding.EncodeToString(job.Payload),
	})
}

type confirmRequest struct {
	JobID string `json:"job_id"`
}

func (h *Handler) confirm(w http.ResponseWriter, r *http.Request) {
	mac := r.PathValue("mac")
	ctx := logger.WithPrinter(r.Context(), mac)

	var req confirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.JobID == "" {
		utils.WriteJSONError(w, "job_id is required", http.StatusBadRequest)
		return
	}

	// Stale identifiers are acknowledged all the same; the job is gone
	// either way.
	h.svc.Confirm(ctx, mac, req.JobID)
	utils.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type registerRequest struct {
	Dialect string `json:"dialect"`
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	mac := r.PathValue("mac")
	ctx := logger.WithPrinter(r.Context(), mac)

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteJSONError(w, "invalid body", http.StatusBadRequest)
		return
	}

	reg := h.svc.Register(ctx, mac, req.Dialect)
	utils.WriteJSON(w, http.StatusOK, reg)
}

type enqueueRequest struct {
	PrinterMAC string `json:"printer_mac"`
	Dialect    string `json:"dialect"`
	Payload    string `json:"payload"` // base64
}

func (h *Handler) enqueue(w http.ResponseWriter, r *http.Request) {
	var req enqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteJSONError(w, "invalid body", http.StatusBadRequest)
		return
	}

	payload, err := base64.StdEncoding.DecodeString(req.Payload)
	if err != nil {
		utils.WriteJSONError(w, "payload must be base64", http.StatusBadRequest)
		return
	}

	ctx := logger.WithPrinter(r.Context(), req.PrinterMAC)
	jobID, err := h.svc.Enqueue(ctx, req.PrinterMAC, req.Dialect, payload)
	if err != nil {
		utils.WriteJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	utils.WriteJSON(w, http.StatusCreated, map[string]string{"job_id": jobID})
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	utils.WriteJSON(w, http.StatusOK, h.svc.Status(r.Context()))
}
