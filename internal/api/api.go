// Package api exposes the quiz engine over HTTP for a browser front-end.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/p-n-ai/pai-quiz/internal/progress"
	"github.com/p-n-ai/pai-quiz/internal/quiz"
	"github.com/p-n-ai/pai-quiz/internal/report"
)

const (
	maxBodyBytes = 1 << 16
	readyTimeout = 2 * time.Second
)

// Progress is the slice of the progress store the API reads directly.
type Progress interface {
	All() map[string]progress.Record
	HealthCheck(ctx context.Context) error
}

// Config holds the API's collaborators. Stream is optional.
type Config struct {
	Engine    *quiz.Engine
	Progress  Progress
	Questions report.Source
	Stream    http.Handler
}

// Handler serves the quiz API.
type Handler struct {
	engine    *quiz.Engine
	progress  Progress
	questions report.Source
	stream    http.Handler
}

// New creates the API handler.
func New(cfg Config) *Handler {
	return &Handler{
		engine:    cfg.Engine,
		progress:  cfg.Progress,
		questions: cfg.Questions,
		stream:    cfg.Stream,
	}
}

// Routes registers all endpoints on a new mux.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealthz)
	mux.HandleFunc("GET /readyz", h.handleReadyz)

	mux.HandleFunc("GET /api/subjects", h.handleSubjects)
	mux.HandleFunc("POST /api/subjects/{subject}/reset", h.handleReset)
	mux.HandleFunc("GET /api/progress/export.xlsx", h.handleExport)

	mux.HandleFunc("GET /api/quiz", h.handleView)
	mux.HandleFunc("GET /api/quiz/reveal", h.handleReveal)
	mux.HandleFunc("POST /api/quiz/start", h.handleStart)
	mux.HandleFunc("POST /api/quiz/answer", h.handleAnswer)
	mux.HandleFunc("POST /api/quiz/goto", h.handleGoTo)
	mux.HandleFunc("POST /api/quiz/next", h.viewAfter(h.engine.Next))
	mux.HandleFunc("POST /api/quiz/previous", h.viewAfter(h.engine.Previous))
	mux.HandleFunc("POST /api/quiz/bookmark", h.handleBookmark)
	mux.HandleFunc("POST /api/quiz/finish", h.handleFinish)
	mux.HandleFunc("POST /api/quiz/review", h.viewAfter(h.engine.Review))
	mux.HandleFunc("POST /api/quiz/restart", h.viewAfter(h.engine.Restart))
	mux.HandleFunc("POST /api/quiz/home", h.viewAfter(func() error {
		h.engine.GoBackHome()
		return nil
	}))

	if h.stream != nil {
		mux.Handle("GET /ws", h.stream)
	}
	return mux
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	if err := h.progress.HealthCheck(ctx); err != nil {
		slog.Warn("readiness check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (h *Handler) handleSubjects(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"subjects": h.engine.Subjects(r.URL.Query().Get("q")),
	})
}

type resetRequest struct {
	Confirm bool `json:"confirm"`
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if !decode(w, r, &req) {
		return
	}
	if !req.Confirm {
		writeJSON(w, http.StatusBadRequest, errorBody("reset requires confirm=true"))
		return
	}
	h.engine.ResetSubjectProgress(r.PathValue("subject"))
	writeJSON(w, http.StatusOK, h.engine.View())
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="quiz-progress.xlsx"`)
	if err := report.Write(w, h.questions, h.progress.All()); err != nil {
		slog.Error("progress export failed", "error", err)
		http.Error(w, "export failed", http.StatusInternalServerError)
	}
}

func (h *Handler) handleView(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.View())
}

func (h *Handler) handleReveal(w http.ResponseWriter, r *http.Request) {
	answer, err := h.engine.RevealAnswer()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"answer": answer})
}

type startRequest struct {
	Subject string `json:"subject"`
}

func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.engine.Start(req.Subject); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.engine.View())
}

// answerRequest carries either an explicit option for questionIndex or a
// 1-based option position on the current question.
type answerRequest struct {
	QuestionIndex *int   `json:"questionIndex"`
	Option        string `json:"option"`
	Position      int    `json:"position"`
}

type answerResponse struct {
	Answer quiz.AnswerRecord `json:"answer"`
	View   quiz.View         `json:"view"`
}

func (h *Handler) handleAnswer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if !decode(w, r, &req) {
		return
	}

	var (
		rec quiz.AnswerRecord
		err error
	)
	switch {
	case req.Position != 0:
		rec, err = h.engine.AnswerOption(req.Position)
	case req.QuestionIndex != nil:
		rec, err = h.engine.Answer(*req.QuestionIndex, req.Option)
	default:
		writeJSON(w, http.StatusBadRequest, errorBody("questionIndex or position is required"))
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, answerResponse{Answer: rec, View: h.engine.View()})
}

type gotoRequest struct {
	QuestionIndex int `json:"questionIndex"`
}

func (h *Handler) handleGoTo(w http.ResponseWriter, r *http.Request) {
	var req gotoRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.engine.GoTo(req.QuestionIndex); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.engine.View())
}

func (h *Handler) handleBookmark(w http.ResponseWriter, r *http.Request) {
	on, err := h.engine.ToggleBookmark()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookmarked": on, "view": h.engine.View()})
}

func (h *Handler) handleFinish(w http.ResponseWriter, r *http.Request) {
	score, err := h.engine.Finish()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, score)
}

// viewAfter runs a body-less command and replies with the resulting view.
func (h *Handler) viewAfter(op func() error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := op(); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, h.engine.View())
	}
}

// StatusFor maps engine errors to HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, quiz.ErrUnknownSubject):
		return http.StatusNotFound
	case errors.Is(err, quiz.ErrIndexOutOfRange):
		return http.StatusBadRequest
	case errors.Is(err, quiz.ErrNoActiveSession),
		errors.Is(err, quiz.ErrNotCurrentQuestion),
		errors.Is(err, quiz.ErrReadOnly),
		errors.Is(err, quiz.ErrInvalidState):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "error", err)
	}
	writeJSON(w, status, errorBody(err.Error()))
}

func errorBody(msg string) map[string]string {
	return map[string]string{"error": msg}
}

// decode reads a JSON body into v. An empty body leaves v zeroed.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	writeJSON(w, http.StatusBadRequest, errorBody(fmt.Sprintf("invalid request body: %v", err)))
	return false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to write response", "error", err)
	}
}
