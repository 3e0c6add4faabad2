package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/p-n-ai/pai-quiz/internal/api"
	"github.com/p-n-ai/pai-quiz/internal/progress"
	"github.com/p-n-ai/pai-quiz/internal/questionbank"
	"github.com/p-n-ai/pai-quiz/internal/quiz"
	"github.com/p-n-ai/pai-quiz/internal/report"
)

type failingProgress struct {
	*progress.Store
}

func (failingProgress) HealthCheck(context.Context) error {
	return errors.New("connection refused")
}

type testServer struct {
	mux   *http.ServeMux
	store *progress.Store
}

func newServer(t *testing.T) *testServer {
	t.Helper()
	bank := questionbank.New(map[string][]questionbank.Question{
		"Networks": {
			{Text: "Layer of IP?", Options: []string{"Network", "Transport"}, Answer: "Network"},
			{Text: "TCP port of HTTP?", Options: []string{"21", "80"}, Answer: "80"},
		},
	})
	store := progress.NewStore(progress.NewMemoryBackend())
	engine := quiz.NewEngine(quiz.EngineConfig{
		Questions: bank,
		Store:     store,
		NewTicker: (&quiz.ManualClock{}).NewTicker,
	})
	t.Cleanup(engine.Close)

	h := api.New(api.Config{
		Engine:    engine,
		Progress:  store,
		Questions: bank,
	})
	return &testServer{mux: h.Routes(), store: store}
}

func (s *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestHealthEndpoints(t *testing.T) {
	srv := newServer(t)

	tests := []struct {
		name       string
		path       string
		wantStatus int
		wantBody   string
	}{
		{
			name:       "healthz returns 200",
			path:       "/healthz",
			wantStatus: http.StatusOK,
			wantBody:   `{"status":"ok"}`,
		},
		{
			name:       "readyz returns 200",
			path:       "/readyz",
			wantStatus: http.StatusOK,
			wantBody:   `{"status":"ready"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := srv.do(t, http.MethodGet, tt.path, "")

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if got := strings.TrimSpace(rec.Body.String()); got != tt.wantBody {
				t.Errorf("body = %q, want %q", got, tt.wantBody)
			}
		})
	}
}

func TestReadyz_BackendDown(t *testing.T) {
	store := progress.NewStore(nil)
	h := api.New(api.Config{
		Engine:    quiz.NewEngine(quiz.EngineConfig{}),
		Progress:  failingProgress{store},
		Questions: questionbank.Empty(),
	})

	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestQuizFlow(t *testing.T) {
	srv := newServer(t)

	rec := srv.do(t, http.MethodPost, "/api/quiz/start", `{"subject":"Networks"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("start status = %d body = %s", rec.Code, rec.Body)
	}
	view := decodeBody[quiz.View](t, rec)
	if view.State != quiz.StateActive || view.Question == nil || view.Question.Text != "Layer of IP?" {
		t.Errorf("start view = %+v", view)
	}

	rec = srv.do(t, http.MethodPost, "/api/quiz/answer", `{"questionIndex":0,"option":"Network"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("answer status = %d body = %s", rec.Code, rec.Body)
	}
	ans := decodeBody[struct {
		Answer quiz.AnswerRecord `json:"answer"`
		View   quiz.View         `json:"view"`
	}](t, rec)
	if !ans.Answer.IsCorrect || ans.View.Live.Correct != 1 {
		t.Errorf("answer response = %+v", ans)
	}

	if rec := srv.do(t, http.MethodPost, "/api/quiz/next", ""); rec.Code != http.StatusOK {
		t.Fatalf("next status = %d", rec.Code)
	}

	rec = srv.do(t, http.MethodGet, "/api/quiz/reveal", "")
	if got := decodeBody[map[string]string](t, rec)["answer"]; got != "80" {
		t.Errorf("reveal = %q, want 80", got)
	}

	rec = srv.do(t, http.MethodPost, "/api/quiz/answer", `{"position":1}`)
	ans = decodeBody[struct {
		Answer quiz.AnswerRecord `json:"answer"`
		View   quiz.View         `json:"view"`
	}](t, rec)
	if ans.Answer.SelectedOption != "21" || ans.Answer.IsCorrect {
		t.Errorf("position answer = %+v", ans.Answer)
	}

	rec = srv.do(t, http.MethodPost, "/api/quiz/bookmark", "")
	if got := decodeBody[map[string]any](t, rec)["bookmarked"]; got != true {
		t.Errorf("bookmarked = %v, want true", got)
	}

	rec = srv.do(t, http.MethodPost, "/api/quiz/finish", "")
	score := decodeBody[quiz.Score](t, rec)
	if score.Percentage != 50 || score.TotalQuestions != 2 {
		t.Errorf("score = %+v", score)
	}

	if rec := srv.do(t, http.MethodPost, "/api/quiz/review", ""); rec.Code != http.StatusOK {
		t.Errorf("review status = %d", rec.Code)
	}
	if rec := srv.do(t, http.MethodPost, "/api/quiz/restart", ""); rec.Code != http.StatusOK {
		t.Errorf("restart status = %d", rec.Code)
	}

	rec = srv.do(t, http.MethodPost, "/api/quiz/home", "")
	if view := decodeBody[quiz.View](t, rec); view.State != quiz.StateHome {
		t.Errorf("home state = %q", view.State)
	}
}

func TestErrorMapping(t *testing.T) {
	srv := newServer(t)

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		setup      bool
		wantStatus int
	}{
		{"unknown subject", http.MethodPost, "/api/quiz/start", `{"subject":"Astronomy"}`, false, http.StatusNotFound},
		{"no session", http.MethodPost, "/api/quiz/next", "", false, http.StatusConflict},
		{"reveal without session", http.MethodGet, "/api/quiz/reveal", "", false, http.StatusConflict},
		{"malformed body", http.MethodPost, "/api/quiz/start", `{`, false, http.StatusBadRequest},
		{"goto out of range", http.MethodPost, "/api/quiz/goto", `{"questionIndex":9}`, true, http.StatusBadRequest},
		{"not current question", http.MethodPost, "/api/quiz/answer", `{"questionIndex":1,"option":"80"}`, true, http.StatusConflict},
		{"answer without target", http.MethodPost, "/api/quiz/answer", `{}`, true, http.StatusBadRequest},
		{"review while active", http.MethodPost, "/api/quiz/review", "", true, http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv.do(t, http.MethodPost, "/api/quiz/home", "")
			if tt.setup {
				srv.do(t, http.MethodPost, "/api/quiz/start", `{"subject":"Networks"}`)
			}
			rec := srv.do(t, tt.method, tt.path, tt.body)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body)
			}
			if _, ok := decodeBody[map[string]string](t, rec)["error"]; !ok {
				t.Error("error body missing")
			}
		})
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{quiz.ErrUnknownSubject, http.StatusNotFound},
		{fmt.Errorf("wrapped: %w", quiz.ErrIndexOutOfRange), http.StatusBadRequest},
		{quiz.ErrNoActiveSession, http.StatusConflict},
		{quiz.ErrNotCurrentQuestion, http.StatusConflict},
		{quiz.ErrReadOnly, http.StatusConflict},
		{quiz.ErrInvalidState, http.StatusConflict},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := api.StatusFor(tt.err); got != tt.want {
			t.Errorf("StatusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestSubjects(t *testing.T) {
	srv := newServer(t)

	rec := srv.do(t, http.MethodGet, "/api/subjects?q=NET", "")
	body := decodeBody[struct {
		Subjects []quiz.SubjectCard `json:"subjects"`
	}](t, rec)
	if len(body.Subjects) != 1 || body.Subjects[0].Name != "Networks" || body.Subjects[0].Total != 2 {
		t.Errorf("subjects = %+v", body.Subjects)
	}

	rec = srv.do(t, http.MethodGet, "/api/subjects?q=biology", "")
	body = decodeBody[struct {
		Subjects []quiz.SubjectCard `json:"subjects"`
	}](t, rec)
	if len(body.Subjects) != 0 {
		t.Errorf("subjects = %+v, want none", body.Subjects)
	}
}

func TestResetRequiresConfirmation(t *testing.T) {
	srv := newServer(t)
	srv.do(t, http.MethodPost, "/api/quiz/start", `{"subject":"Networks"}`)
	srv.do(t, http.MethodPost, "/api/quiz/answer", `{"questionIndex":0,"option":"Network"}`)

	rec := srv.do(t, http.MethodPost, "/api/subjects/Networks/reset", `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unconfirmed reset status = %d, want 400", rec.Code)
	}
	if _, ok := srv.store.Get("Networks"); !ok {
		t.Fatal("unconfirmed reset must keep progress")
	}

	rec = srv.do(t, http.MethodPost, "/api/subjects/Networks/reset", `{"confirm":true}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("reset status = %d", rec.Code)
	}
	if _, ok := srv.store.Get("Networks"); ok {
		t.Error("confirmed reset should delete progress")
	}
	if view := decodeBody[quiz.View](t, rec); view.Live.Attempted != 0 {
		t.Errorf("live stats after reset = %+v", view.Live)
	}
}

func TestExport(t *testing.T) {
	srv := newServer(t)
	srv.do(t, http.MethodPost, "/api/quiz/start", `{"subject":"Networks"}`)
	srv.do(t, http.MethodPost, "/api/quiz/answer", `{"questionIndex":0,"option":"Network"}`)

	rec := srv.do(t, http.MethodGet, "/api/progress/export.xlsx", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.Contains(ct, "spreadsheetml") {
		t.Errorf("Content-Type = %q", ct)
	}

	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	if err != nil {
		t.Fatalf("OpenReader() error = %v", err)
	}
	defer f.Close()
	got, err := f.GetCellValue(report.SheetSummary, "D2")
	if err != nil {
		t.Fatal(err)
	}
	if got != "1" {
		t.Errorf("attempted = %q, want 1", got)
	}
}
