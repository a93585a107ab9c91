// Package server provides the HTTP API: agent lifecycle control and the
// studio endpoints for image generation and resume analysis.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/inkwell/inkwell/internal/agent"
	"github.com/inkwell/inkwell/internal/imagen"
	"github.com/inkwell/inkwell/internal/resume"
	"github.com/inkwell/inkwell/internal/store"
)

// Handler holds the services behind the HTTP API.
type Handler struct {
	agents agent.Service
	images *imagen.Service
	resume *resume.Analyzer
	repo   store.Repository
}

func NewHandler(agents agent.Service, images *imagen.Service, analyzer *resume.Analyzer, repo store.Repository) *Handler {
	return &Handler{agents: agents, images: images, resume: analyzer, repo: repo}
}

// Router builds the chi router with all routes registered.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.Recoverer)

	r.Get("/healthz", h.Health)
	r.Route("/api", func(r chi.Router) {
		r.Route("/agents/{conversation}", func(r chi.Router) {
			r.Post("/start", h.StartAgent)
			r.Post("/stop", h.StopAgent)
			r.Get("/status", h.AgentStatus)
		})
		r.Post("/images", h.GenerateImage)
		r.Get("/images", h.ListImages)
		r.Post("/resumes", h.AnalyzeResume)
		r.Get("/resumes/{id}", h.GetResume)
	})
	return r
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// Health reports process and store health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			Error(w, http.StatusServiceUnavailable, "store unavailable")
			return
		}
	}
	JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// StartAgent brings up the agent for a conversation.
func (h *Handler) StartAgent(w http.ResponseWriter, r *http.Request) {
	conversation := chi.URLParam(r, "conversation")
	if conversation == "" {
		Error(w, http.StatusBadRequest, "conversation is required")
		return
	}
	if err := h.agents.Start(r.Context(), conversation); err != nil {
		slog.Error("agent start failed", "conversation", conversation, "err", err)
		Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	JSON(w, http.StatusOK, map[string]string{
		"conversation": conversation,
		"status":       string(h.agents.Status(conversation)),
	})
}

// StopAgent tears down the agent for a conversation.
func (h *Handler) StopAgent(w http.ResponseWriter, r *http.Request) {
	conversation := chi.URLParam(r, "conversation")
	if err := h.agents.Stop(r.Context(), conversation); err != nil {
		Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	JSON(w, http.StatusOK, map[string]string{
		"conversation": conversation,
		"status":       string(h.agents.Status(conversation)),
	})
}

// AgentStatus reports the lifecycle state of a conversation's agent.
func (h *Handler) AgentStatus(w http.ResponseWriter, r *http.Request) {
	conversation := chi.URLParam(r, "conversation")
	JSON(w, http.StatusOK, map[string]string{
		"conversation": conversation,
		"status":       string(h.agents.Status(conversation)),
	})
}

// GenerateImage creates one image from a prompt.
func (h *Handler) GenerateImage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Prompt string `json:"prompt"`
		Size   string `json:"size"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	rec, err := h.images.Generate(r.Context(), req.Prompt, req.Size)
	if err != nil {
		if req.Prompt == "" {
			Error(w, http.StatusBadRequest, err.Error())
			return
		}
		slog.Error("image generation failed", "err", err)
		Error(w, http.StatusBadGateway, err.Error())
		return
	}
	JSON(w, http.StatusCreated, rec)
}

// ListImages returns recent image records.
func (h *Handler) ListImages(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, _ = strconv.Atoi(v)
	}
	images, err := h.images.List(r.Context(), limit)
	if err != nil {
		Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	if images == nil {
		images = []store.ImageRecord{}
	}
	JSON(w, http.StatusOK, map[string]any{"images": images})
}

// AnalyzeResume runs the rubric on raw text or a fetched URL.
func (h *Handler) AnalyzeResume(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
		URL  string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	rec, err := h.resume.Analyze(r.Context(), req.Text, req.URL)
	if err != nil {
		if req.Text == "" && req.URL == "" || req.Text != "" && req.URL != "" {
			Error(w, http.StatusBadRequest, err.Error())
			return
		}
		slog.Error("resume analysis failed", "err", err)
		Error(w, http.StatusBadGateway, err.Error())
		return
	}
	JSON(w, http.StatusCreated, rec)
}

// GetResume returns one stored analysis.
func (h *Handler) GetResume(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, err := h.resume.Get(r.Context(), id)
	if err != nil {
		Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	if rec == nil {
		Error(w, http.StatusNotFound, "resume not found")
		return
	}
	JSON(w, http.StatusOK, rec)
}
