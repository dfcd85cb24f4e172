package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/revlab/sessiond/internal/assistant"
	"github.com/revlab/sessiond/internal/config"
	"github.com/revlab/sessiond/internal/discovery"
	"github.com/revlab/sessiond/internal/event"
	"github.com/revlab/sessiond/internal/library"
	"github.com/revlab/sessiond/internal/metrics"
	"github.com/revlab/sessiond/internal/report"
	"github.com/revlab/sessiond/internal/scholar"
	"github.com/revlab/sessiond/internal/session"
	"github.com/revlab/sessiond/internal/store"
)

// Handler holds all HTTP handler dependencies. The scholar client and the
// assistant are optional: without keys the corresponding endpoints return 503
// and the rest of the service keeps working.
type Handler struct {
	mgr     *session.Manager
	loader  *config.Loader
	archive *store.Archive
	scholar *scholar.Client
	ai      assistant.Generator
	libs    *library.Registry
	mux     *http.ServeMux
}

// New creates an HTTP handler and registers all routes.
func New(mgr *session.Manager, loader *config.Loader, archive *store.Archive, sc *scholar.Client, ai assistant.Generator) http.Handler {
	h := &Handler{
		mgr:     mgr,
		loader:  loader,
		archive: archive,
		scholar: sc,
		ai:      ai,
		libs:    library.NewRegistry(loader.Config().Logging.Dir),
		mux:     http.NewServeMux(),
	}

	h.mux.HandleFunc("POST /v1/sessions", h.startSession)
	h.mux.HandleFunc("POST /v1/sessions/{id}/events", h.recordEvent)
	h.mux.HandleFunc("POST /v1/sessions/{id}/finalize", h.finalizeSession)
	h.mux.HandleFunc("DELETE /v1/sessions/{id}", h.deleteSession)
	h.mux.HandleFunc("GET /v1/sessions/{id}/report", h.sessionReport)
	h.mux.HandleFunc("GET /v1/sessions/{id}/events.csv", h.exportCSV)
	h.mux.HandleFunc("GET /v1/sessions/{id}/papers", h.listPapers)
	h.mux.HandleFunc("POST /v1/sessions/{id}/papers", h.addPaper)
	h.mux.HandleFunc("DELETE /v1/sessions/{id}/papers/{paper}", h.removePaper)
	h.mux.HandleFunc("GET /v1/participants", h.listParticipants)
	h.mux.HandleFunc("GET /v1/tasks", h.listTasks)
	h.mux.HandleFunc("POST /v1/tasks/reload", h.reloadTasks)
	h.mux.HandleFunc("GET /v1/search", h.searchPapers)
	h.mux.HandleFunc("POST /v1/discover", h.discover)
	h.mux.HandleFunc("POST /v1/chat", h.chat)
	h.mux.HandleFunc("POST /v1/summaries", h.summarize)
	h.mux.HandleFunc("GET /healthz", h.healthz)
	h.mux.Handle("GET /metrics", promhttp.Handler())

	return loggingMiddleware(h.mux)
}

func (h *Handler) builder() *report.Builder {
	cfg := h.loader.Config()
	return &report.Builder{
		Tasks:   cfg.Tasks,
		IdleCap: time.Duration(cfg.Logging.IdleCapSeconds) * time.Second,
	}
}

// POST /v1/sessions — begin a participant session.
func (h *Handler) startSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ParticipantName string `json:"participant_name"`
		ParticipantInfo string `json:"participant_info"`
		TaskID          string `json:"task_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %s", err))
		return
	}
	if req.TaskID != "" {
		if _, ok := h.loader.Config().Task(req.TaskID); !ok {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown task id %q", req.TaskID))
			return
		}
	}
	s := h.mgr.Start(req.ParticipantName, req.ParticipantInfo, req.TaskID)
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"participant_id": s.ID(),
		"started_at":     s.StartedAt(),
	})
}

// POST /v1/sessions/{id}/events — record one event. Recording is fail-soft:
// a persistence failure still returns 200, with a warning field, because the
// in-memory record was kept.
func (h *Handler) recordEvent(w http.ResponseWriter, r *http.Request) {
	s, err := h.mgr.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	var req struct {
		Type   string                 `json:"event_type"`
		TaskID string                 `json:"task_id"`
		Value  map[string]interface{} `json:"event_value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %s", err))
		return
	}
	if req.Type == "" {
		writeError(w, http.StatusBadRequest, "event_type is required")
		return
	}

	out := s.Record(req.Type, req.TaskID, req.Value)
	resp := map[string]interface{}{
		"recorded":   true,
		"recognized": out.Recognized,
		"timestamp":  out.Event.Timestamp,
	}
	if out.AfterFinalize {
		resp["after_finalize"] = true
	}
	writeJSON(w, http.StatusOK, withWarning(resp, out.PersistErr, "event kept in memory but not persisted"))
}

// POST /v1/sessions/{id}/finalize — close the session and archive it.
// Idempotent; repeated calls return the same end time.
func (h *Handler) finalizeSession(w http.ResponseWriter, r *http.Request) {
	s, err := h.mgr.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	endedAt := s.Finalize()

	resp := map[string]interface{}{"ended_at": endedAt}
	if h.archive != nil {
		err := h.archive.ArchiveSession(r.Context(), s.Snapshot())
		resp["archived"] = err == nil
		resp = withWarning(resp, err, "session not archived")
	}
	writeJSON(w, http.StatusOK, resp)
}

// DELETE /v1/sessions/{id} — finalize, archive, and evict a session from the
// active set. Reports and CSV exports keep working afterwards, served from
// the archive; further event recording returns 404.
func (h *Handler) deleteSession(w http.ResponseWriter, r *http.Request) {
	s, err := h.mgr.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	endedAt := s.Finalize()
	if h.archive != nil {
		// Eviction without a durable copy would lose the session; keep it
		// active if archiving fails.
		if err := h.archive.ArchiveSession(r.Context(), s.Snapshot()); err != nil {
			writeError(w, http.StatusInternalServerError,
				fmt.Sprintf("session not evicted, archive failed: %s", err))
			return
		}
	}
	h.mgr.Remove(s.ID())
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ended_at": endedAt,
		"evicted":  true,
	})
}

// GET /v1/participants — all archived participant ids, for post-hoc analysis
// tooling.
func (h *Handler) listParticipants(w http.ResponseWriter, r *http.Request) {
	ids := []string{}
	if h.archive != nil {
		var err error
		ids, err = h.archive.Participants(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if ids == nil {
			ids = []string{}
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"participants": ids})
}

// GET /v1/sessions/{id}/report — the derived aggregate, recomputed on every
// call. Falls back to the archive for finalized, evicted sessions.
func (h *Handler) sessionReport(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.snapshot(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.builder().Build(snap))
}

// GET /v1/sessions/{id}/events.csv — raw event rows for analysis tooling.
func (h *Handler) exportCSV(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.snapshot(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.csv", snap.ParticipantID))
	if err := report.WriteCSV(w, snap.Events); err != nil {
		// Headers are already sent; log and let the truncated body signal failure.
		slog.Warn("csv export failed mid-stream", "participant", snap.ParticipantID, "err", err)
	}
}

// snapshot resolves a session snapshot from the active set or the archive,
// writing the error response itself when the participant is unknown.
func (h *Handler) snapshot(w http.ResponseWriter, r *http.Request) (session.Snapshot, bool) {
	id := r.PathValue("id")
	if s, err := h.mgr.Get(id); err == nil {
		return s.Snapshot(), true
	}
	if h.archive != nil {
		snap, err := h.archive.LoadSession(r.Context(), id)
		switch {
		case err == nil:
			return snap, true
		case !errors.Is(err, sql.ErrNoRows):
			writeError(w, http.StatusInternalServerError, err.Error())
			return session.Snapshot{}, false
		}
	}
	writeError(w, http.StatusNotFound, session.ErrNotFound.Error())
	return session.Snapshot{}, false
}

// GET /v1/sessions/{id}/papers — the participant's knowledge base.
func (h *Handler) listPapers(w http.ResponseWriter, r *http.Request) {
	if _, err := h.mgr.Get(r.PathValue("id")); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	col, err := h.libs.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"papers": col.Papers()})
}

// POST /v1/sessions/{id}/papers — add a paper to the knowledge base. Records
// a paper_select event when the paper was actually added; duplicates are
// reported but not re-recorded.
func (h *Handler) addPaper(w http.ResponseWriter, r *http.Request) {
	s, err := h.mgr.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	var paper scholar.Paper
	if err := json.NewDecoder(r.Body).Decode(&paper); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %s", err))
		return
	}
	if paper.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}
	col, err := h.libs.Get(s.ID())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	added, saveErr := col.Add(paper)
	resp := map[string]interface{}{"added": added, "total": len(col.Papers())}
	if added {
		s.Record(event.PaperSelect, "", map[string]interface{}{
			"paper_id": paper.ID,
			"title":    paper.Title,
		})
	}
	writeJSON(w, http.StatusOK, withWarning(resp, saveErr, "collection kept in memory but not persisted"))
}

// DELETE /v1/sessions/{id}/papers/{paper} — drop a paper from the knowledge
// base, recording a paper_remove event.
func (h *Handler) removePaper(w http.ResponseWriter, r *http.Request) {
	s, err := h.mgr.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	col, err := h.libs.Get(s.ID())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	paperID := r.PathValue("paper")
	title := ""
	if p, ok := col.Find(paperID); ok {
		title = p.Title
	}
	removed, saveErr := col.Remove(paperID)
	if !removed {
		writeError(w, http.StatusNotFound, fmt.Sprintf("paper %q not in collection", paperID))
		return
	}
	s.Record(event.PaperRemove, "", map[string]interface{}{"paper_id": paperID, "title": title})

	resp := map[string]interface{}{"removed": true}
	writeJSON(w, http.StatusOK, withWarning(resp, saveErr, "collection kept in memory but not persisted"))
}

// GET /v1/tasks — current task definitions and tool tutorials.
func (h *Handler) listTasks(w http.ResponseWriter, r *http.Request) {
	cfg := h.loader.Config()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"version":   cfg.Version,
		"tasks":     cfg.Tasks,
		"tutorials": cfg.Tutorials,
	})
}

// POST /v1/tasks/reload — hot-reload the study config from disk. The loader
// rejects an invalid file and keeps the previous config live.
func (h *Handler) reloadTasks(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.loader.Reload()
	if err != nil {
		if errors.Is(err, config.ErrInvalid) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
		} else {
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"reloaded":    true,
		"tasks_count": len(cfg.Tasks),
	})
}

// GET /v1/search — proxy a Semantic Scholar query. When a session id is
// supplied the query is recorded as a search_query event.
func (h *Handler) searchPapers(w http.ResponseWriter, r *http.Request) {
	if h.scholar == nil {
		writeError(w, http.StatusServiceUnavailable, "paper search is not configured")
		return
	}
	query := r.URL.Query().Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, "query parameter q is required")
		return
	}
	limit := h.loader.Config().Server.SearchLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	papers, err := h.scholar.Search(r.Context(), query, limit)
	if err != nil {
		if errors.Is(err, scholar.ErrRateLimited) {
			writeError(w, http.StatusTooManyRequests, err.Error())
			return
		}
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	if sid := r.URL.Query().Get("session"); sid != "" {
		if s, err := h.mgr.Get(sid); err == nil {
			s.Record(event.SearchQuery, "", map[string]interface{}{
				"query":       query,
				"num_results": len(papers),
			})
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"query":  query,
		"papers": papers,
	})
}

// POST /v1/discover — run the AI discovery pipeline for a session, recording
// the ai_call / ai_output_generated pair around it.
func (h *Handler) discover(w http.ResponseWriter, r *http.Request) {
	if h.ai == nil || h.scholar == nil {
		writeError(w, http.StatusServiceUnavailable, "AI discovery is not configured")
		return
	}
	var req struct {
		ParticipantID string `json:"participant_id"`
		Description   string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %s", err))
		return
	}
	if req.Description == "" {
		writeError(w, http.StatusBadRequest, "description is required")
		return
	}
	s, err := h.mgr.Get(req.ParticipantID)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	s.Record(event.AICall, "", map[string]interface{}{
		"feature":      "deep_research",
		"input_length": len(req.Description),
	})

	pipe := &discovery.Pipeline{Assistant: h.ai, Searcher: h.scholar}
	result, err := pipe.Run(r.Context(), req.Description)
	if err != nil {
		metrics.AssistantCalls.WithLabelValues("deep_research", "error").Inc()
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	metrics.AssistantCalls.WithLabelValues("deep_research", "ok").Inc()

	s.Record(event.AIOutputGenerated, "", map[string]interface{}{
		"feature":     "deep_research",
		"num_results": len(result.Papers),
	})

	writeJSON(w, http.StatusOK, result)
}

// POST /v1/chat — ask the assistant a question about one paper, recording
// the chat_message_sent / ai_call / ai_output_generated trail.
func (h *Handler) chat(w http.ResponseWriter, r *http.Request) {
	if h.ai == nil {
		writeError(w, http.StatusServiceUnavailable, "AI assistant is not configured")
		return
	}
	var req struct {
		ParticipantID string        `json:"participant_id"`
		Paper         scholar.Paper `json:"paper"`
		Question      string        `json:"question"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %s", err))
		return
	}
	if req.Question == "" || req.Paper.Title == "" {
		writeError(w, http.StatusBadRequest, "question and paper.title are required")
		return
	}
	s, err := h.mgr.Get(req.ParticipantID)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	s.Record(event.ChatMessageSent, "", map[string]interface{}{
		"paper_id": req.Paper.ID,
		"length":   len(req.Question),
	})
	s.Record(event.AICall, "", map[string]interface{}{"feature": "paper_chat"})

	answer, err := h.ai.Generate(r.Context(), assistant.ChatPrompt(req.Paper, req.Question))
	if err != nil {
		metrics.AssistantCalls.WithLabelValues("paper_chat", "error").Inc()
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	metrics.AssistantCalls.WithLabelValues("paper_chat", "ok").Inc()

	s.Record(event.AIOutputGenerated, "", map[string]interface{}{
		"feature": "paper_chat",
		"length":  len(answer),
	})
	writeJSON(w, http.StatusOK, map[string]interface{}{"answer": answer})
}

// POST /v1/summaries — generate a multi-paper summary (overview, gaps,
// methodology comparison, or key findings).
func (h *Handler) summarize(w http.ResponseWriter, r *http.Request) {
	if h.ai == nil {
		writeError(w, http.StatusServiceUnavailable, "AI assistant is not configured")
		return
	}
	var req struct {
		ParticipantID string          `json:"participant_id"`
		Kind          string          `json:"kind"`
		Papers        []scholar.Paper `json:"papers"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %s", err))
		return
	}
	if len(req.Papers) == 0 {
		writeError(w, http.StatusBadRequest, "at least one paper is required")
		return
	}
	s, err := h.mgr.Get(req.ParticipantID)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	kind := assistant.SummaryKind(req.Kind)

	s.Record(event.AICall, "", map[string]interface{}{
		"feature":    "ai_summary",
		"kind":       req.Kind,
		"num_papers": len(req.Papers),
	})

	summary, err := h.ai.Generate(r.Context(), assistant.SummaryPrompt(kind, req.Papers))
	if err != nil {
		metrics.AssistantCalls.WithLabelValues("ai_summary", "error").Inc()
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	metrics.AssistantCalls.WithLabelValues("ai_summary", "ok").Inc()

	s.Record(event.AIOutputGenerated, "", map[string]interface{}{
		"feature": "ai_summary",
		"length":  len(summary),
	})
	writeJSON(w, http.StatusOK, map[string]interface{}{"summary": summary})
}

// GET /healthz — liveness probe.
func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
