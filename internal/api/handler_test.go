//nolint:revive // "api" package name is intentionally concise for this layer.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ashureev/vid-companion/internal/domain"
	"github.com/ashureev/vid-companion/internal/session"
	"github.com/ashureev/vid-companion/internal/store"
	"github.com/go-chi/chi/v5"
)

func TestJSON(t *testing.T) {
	w := httptest.NewRecorder()
	data := map[string]string{"foo": "bar"}

	JSON(w, http.StatusOK, data)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	var got map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if got["foo"] != "bar" {
		t.Errorf("Expected foo=bar, got %v", got["foo"])
	}
}

type fakeController struct {
	mu        sync.Mutex
	state     session.State
	submitErr error
	startErr  error
	submitted []string
	starts    int
}

func (f *fakeController) State() session.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeController) StartNewSessionAsync(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	f.starts++
	return nil
}

func (f *fakeController) SubmitAsync(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return f.submitErr
	}
	f.submitted = append(f.submitted, text)
	return nil
}

type fakeJournal struct {
	store.NoopJournal
	records []*domain.Exchange
	pingErr error
	gotSID  string
	gotLim  int
}

func (j *fakeJournal) RecentExchanges(_ context.Context, sessionID string, limit int) ([]*domain.Exchange, error) {
	j.gotSID, j.gotLim = sessionID, limit
	return j.records, nil
}

func (j *fakeJournal) Ping(context.Context) error { return j.pingErr }

type rendererCount int

func (n rendererCount) Len() int { return int(n) }

func newTestRouter(ctrl Controller, journal store.Journal) http.Handler {
	base := NewHandler(context.Background(), ctrl, journal, rendererCount(2), nil)
	r := chi.NewRouter()
	NewChatHandler(base).RegisterRoutes(r)
	r.Get("/health", base.Health)
	return r
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestGetState(t *testing.T) {
	t.Parallel()

	ctrl := &fakeController{state: session.State{
		Version:         4,
		Phase:           session.PhaseAwaitingReply,
		Busy:            true,
		Speaking:        true,
		ActiveSessionID: "sess-1",
		Messages:        []domain.Message{{ID: "m1", Text: "Hello!", Sender: domain.SenderAssistant}},
		LastError:       "start exchange failed: connection refused",
		LastErrorKind:   domain.ExchangeStart,
	}}
	rec := do(t, newTestRouter(ctrl, nil), http.MethodGet, "/api/state", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var got map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got["phase"] != "awaiting_reply" || got["speaking"] != true || got["session_id"] != "sess-1" {
		t.Fatalf("unexpected state body %v", got)
	}
	if got["last_error_kind"] != "start" || got["last_error"] == "" {
		t.Fatalf("expected the last failure in the state body, got %v", got)
	}
	msgs, ok := got["messages"].([]any)
	if !ok || len(msgs) != 1 {
		t.Fatalf("unexpected messages %v", got["messages"])
	}
}

func TestSubmitMessageStatusCodes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		body string
		want int
	}{
		{"accepted", nil, `{"text":"hello"}`, http.StatusAccepted},
		{"busy", session.ErrBusy, `{"text":"hello"}`, http.StatusConflict},
		{"no session", session.ErrNoActiveSession, `{"text":"hello"}`, http.StatusConflict},
		{"empty", session.ErrEmptyMessage, `{"text":"  "}`, http.StatusBadRequest},
		{"bad json", nil, `{"text":`, http.StatusBadRequest},
		{"unexpected", errors.New("boom"), `{"text":"hello"}`, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctrl := &fakeController{submitErr: tt.err}
			rec := do(t, newTestRouter(ctrl, nil), http.MethodPost, "/api/messages", tt.body)
			if rec.Code != tt.want {
				t.Fatalf("expected %d, got %d: %s", tt.want, rec.Code, rec.Body.String())
			}
			if tt.want == http.StatusAccepted && (len(ctrl.submitted) != 1 || ctrl.submitted[0] != "hello") {
				t.Fatalf("expected text forwarded, got %v", ctrl.submitted)
			}
		})
	}
}

func TestStartSession(t *testing.T) {
	t.Parallel()

	ctrl := &fakeController{}
	h := newTestRouter(ctrl, nil)
	if rec := do(t, h, http.MethodPost, "/api/sessions", ""); rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}
	if ctrl.starts != 1 {
		t.Fatalf("expected one start, got %d", ctrl.starts)
	}

	ctrl.startErr = session.ErrBusy
	if rec := do(t, h, http.MethodPost, "/api/sessions", ""); rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 while a start is pending, got %d", rec.Code)
	}
}

func TestListExchanges(t *testing.T) {
	t.Parallel()

	started := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	journal := &fakeJournal{records: []*domain.Exchange{{
		ID:         "ex-1",
		Kind:       domain.ExchangeAsk,
		SessionID:  "sess-1",
		Query:      "hi",
		Reply:      "hello",
		Outcome:    domain.OutcomeOK,
		StartedAt:  started,
		FinishedAt: started.Add(1500 * time.Millisecond),
	}}}
	h := newTestRouter(&fakeController{}, journal)

	rec := do(t, h, http.MethodGet, "/api/exchanges?session_id=sess-1&limit=10000", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if journal.gotSID != "sess-1" || journal.gotLim != maxExchangeLimit {
		t.Fatalf("unexpected journal query sid=%q limit=%d", journal.gotSID, journal.gotLim)
	}

	var body struct {
		Exchanges []exchangeView `json:"exchanges"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Exchanges) != 1 || body.Exchanges[0].DurationMS != 1500 || body.Exchanges[0].Kind != "ask" {
		t.Fatalf("unexpected exchanges %+v", body.Exchanges)
	}

	if rec := do(t, h, http.MethodGet, "/api/exchanges?limit=-1", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a bad limit, got %d", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	t.Parallel()

	journal := &fakeJournal{}
	h := newTestRouter(&fakeController{}, journal)
	rec := do(t, h, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" || body["renderers"] != float64(2) {
		t.Fatalf("unexpected health body %v", body)
	}

	journal.pingErr = errors.New("disk gone")
	if rec := do(t, h, http.MethodGet, "/health", ""); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 with a broken journal, got %d", rec.Code)
	}
}
