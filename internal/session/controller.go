package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ashureev/vid-companion/internal/config"
	"github.com/ashureev/vid-companion/internal/conversation"
	"github.com/ashureev/vid-companion/internal/domain"
	"github.com/ashureev/vid-companion/internal/store"
	"github.com/google/uuid"
)

// Transport is the part of the backend client the controller needs.
type Transport interface {
	StartSession(ctx context.Context) (string, error)
	Ask(ctx context.Context, sessionID, query string) (string, error)
}

// Options configures a Controller. Zero values fall back to defaults.
type Options struct {
	Greeting string
	Fallback string
	Recorder store.ExchangeRecorder
	Logger   *slog.Logger
}

// Listener is called with a fresh snapshot after every state change.
// Listeners run synchronously and must not call back into the Controller.
type Listener func(State)

// exchange is one outstanding round trip. Its fields are fixed when it starts;
// completion handlers read the captured session id from here, never from the store.
type exchange struct {
	id        string
	kind      domain.ExchangeKind
	sessionID string
	query     string
	startedAt time.Time
}

// Controller drives session creation and message submission.
type Controller struct {
	transport Transport
	store     *conversation.Store
	recorder  store.ExchangeRecorder
	greeting  string
	fallback  string
	logger    *slog.Logger

	mu      sync.Mutex
	gate    *exchange // nil when idle
	version uint64
	lastErr *ExchangeError

	notifyMu  sync.Mutex
	listeners []Listener

	wg sync.WaitGroup
}

// NewController creates a controller over conv that talks to the backend through t.
func NewController(t Transport, conv *conversation.Store, opts Options) *Controller {
	if opts.Greeting == "" {
		opts.Greeting = config.DefaultGreeting
	}
	if opts.Fallback == "" {
		opts.Fallback = config.DefaultFallback
	}
	if opts.Recorder == nil {
		opts.Recorder = store.NoopJournal{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Controller{
		transport: t,
		store:     conv,
		recorder:  opts.Recorder,
		greeting:  opts.Greeting,
		fallback:  opts.Fallback,
		logger:    opts.Logger,
	}
}

// AddListener registers l for state changes.
func (c *Controller) AddListener(l Listener) {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()
	c.listeners = append(c.listeners, l)
}

// State returns a snapshot of the controller and the active session.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Busy reports whether an exchange owns the gate.
func (c *Controller) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gate != nil
}

// Speaking reports whether the gate is held by an ask exchange.
// A session start never counts as speaking.
func (c *Controller) Speaking() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gate != nil && c.gate.kind == domain.ExchangeAsk
}

// StartNewSession asks the backend for a new session and makes it active.
// It may preempt a pending ask; that ask still delivers its reply to its own session.
// A failure leaves the chat history untouched and is returned as an *ExchangeError.
func (c *Controller) StartNewSession(ctx context.Context) error {
	ex, err := c.beginStart()
	if err != nil {
		return err
	}
	return c.completeStart(ctx, ex)
}

// StartNewSessionAsync admits a session start like StartNewSession and runs the
// exchange on its own goroutine. Only admission errors are returned; a failed
// exchange is reported through State.LastError.
func (c *Controller) StartNewSessionAsync(ctx context.Context) error {
	ex, err := c.beginStart()
	if err != nil {
		return err
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		_ = c.completeStart(ctx, ex)
	}()
	return nil
}

// Submit sends text to the backend within the active session.
//
// The user message is appended immediately. The reply, or the fallback text if
// the exchange fails, is appended to the session that was active when Submit was
// called, even if another session has become active since. Transport failures are
// recovered here and never returned.
func (c *Controller) Submit(ctx context.Context, text string) error {
	ex, err := c.beginAsk(text)
	if err != nil {
		return err
	}
	c.completeAsk(ctx, ex)
	return nil
}

// SubmitAsync admits text like Submit and waits for the reply on its own goroutine.
func (c *Controller) SubmitAsync(ctx context.Context, text string) error {
	ex, err := c.beginAsk(text)
	if err != nil {
		return err
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.completeAsk(ctx, ex)
	}()
	return nil
}

// Wait blocks until every exchange started by an Async method has completed.
func (c *Controller) Wait() {
	c.wg.Wait()
}

func (c *Controller) beginStart() (*exchange, error) {
	c.mu.Lock()
	if c.gate != nil && c.gate.kind == domain.ExchangeStart {
		c.mu.Unlock()
		return nil, ErrBusy
	}
	preempted := c.gate
	ex := c.acquireLocked(domain.ExchangeStart, "", "")
	c.mu.Unlock()

	if preempted != nil {
		c.logger.Info("Session start preempts pending reply",
			"pending_session_id", preempted.sessionID,
			"pending_exchange_id", preempted.id,
		)
	}
	c.notify()
	return ex, nil
}

func (c *Controller) completeStart(ctx context.Context, ex *exchange) error {
	sessionID, err := c.transport.StartSession(ctx)

	c.mu.Lock()
	if err == nil {
		c.store.CreateSessionWithID(sessionID, c.greeting)
	}
	c.setOutcomeLocked(ex, err)
	owned := c.releaseLocked(ex)
	c.mu.Unlock()
	c.notify()

	c.record(ctx, ex, sessionID, "", err, !owned)

	if err != nil {
		c.logger.Error("Failed to start new session", "exchange_id", ex.id, "error", err)
		return &ExchangeError{Kind: ex.kind, Err: err}
	}
	c.logger.Info("Session started", "session_id", sessionID, "exchange_id", ex.id)
	return nil
}

func (c *Controller) beginAsk(text string) (*exchange, error) {
	c.mu.Lock()
	sessionID, ok := c.store.ActiveSessionID()
	if !ok {
		c.mu.Unlock()
		return nil, ErrNoActiveSession
	}
	if c.gate != nil {
		c.mu.Unlock()
		return nil, ErrBusy
	}
	query := strings.TrimSpace(text)
	if query == "" {
		c.mu.Unlock()
		return nil, ErrEmptyMessage
	}

	c.mustAppendLocked(sessionID, domain.NewMessage(domain.SenderUser, query))
	ex := c.acquireLocked(domain.ExchangeAsk, sessionID, query)
	c.mu.Unlock()
	c.notify()
	return ex, nil
}

func (c *Controller) completeAsk(ctx context.Context, ex *exchange) {
	reply, err := c.transport.Ask(ctx, ex.sessionID, ex.query)
	answer := reply
	if err != nil {
		c.logger.Warn("Ask exchange failed, substituting fallback reply",
			"session_id", ex.sessionID,
			"exchange_id", ex.id,
			"error", err,
		)
		answer = c.fallback
	}

	c.mu.Lock()
	c.mustAppendLocked(ex.sessionID, domain.NewMessage(domain.SenderAssistant, answer))
	c.setOutcomeLocked(ex, err)
	owned := c.releaseLocked(ex)
	c.mu.Unlock()
	c.notify()

	c.record(ctx, ex, ex.sessionID, reply, err, !owned)
}

func (c *Controller) acquireLocked(kind domain.ExchangeKind, sessionID, query string) *exchange {
	ex := &exchange{
		id:        uuid.NewString(),
		kind:      kind,
		sessionID: sessionID,
		query:     query,
		startedAt: time.Now(),
	}
	c.gate = ex
	c.version++
	return ex
}

// releaseLocked clears the gate if ex still owns it and reports whether it did.
func (c *Controller) releaseLocked(ex *exchange) bool {
	c.version++
	if c.gate != ex {
		return false
	}
	c.gate = nil
	return true
}

// setOutcomeLocked records a failure for State.LastError or clears it on success.
func (c *Controller) setOutcomeLocked(ex *exchange, err error) {
	if err != nil {
		c.lastErr = &ExchangeError{Kind: ex.kind, Err: err}
		return
	}
	c.lastErr = nil
}

func (c *Controller) mustAppendLocked(sessionID string, msg domain.Message) {
	if err := c.store.AppendMessage(sessionID, msg); err != nil {
		// Sessions are never removed, so a captured id must still resolve.
		panic(fmt.Sprintf("session: %v", err))
	}
	c.version++
}

func (c *Controller) snapshotLocked() State {
	st := State{
		Version:  c.version,
		Phase:    PhaseIdle,
		Busy:     c.gate != nil,
		Messages: c.store.ActiveMessages(),
	}
	if c.gate != nil {
		switch c.gate.kind {
		case domain.ExchangeStart:
			st.Phase = PhaseAwaitingSessionStart
		case domain.ExchangeAsk:
			st.Phase = PhaseAwaitingReply
			st.Speaking = true
		}
	}
	st.ActiveSessionID, _ = c.store.ActiveSessionID()
	if c.lastErr != nil {
		st.LastError = c.lastErr.Error()
		st.LastErrorKind = c.lastErr.Kind
	}
	return st
}

// notify delivers a snapshot taken while holding notifyMu, so listeners observe
// non-decreasing versions even when exchanges complete on different goroutines.
func (c *Controller) notify() {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	if len(c.listeners) == 0 {
		return
	}
	st := c.State()
	for _, l := range c.listeners {
		l(st)
	}
}

func (c *Controller) record(ctx context.Context, ex *exchange, sessionID, reply string, err error, preempted bool) {
	rec := &domain.Exchange{
		ID:         ex.id,
		Kind:       ex.kind,
		SessionID:  sessionID,
		Query:      ex.query,
		Reply:      reply,
		Outcome:    domain.OutcomeOK,
		Preempted:  preempted,
		StartedAt:  ex.startedAt,
		FinishedAt: time.Now(),
	}
	if err != nil {
		rec.Outcome = domain.OutcomeTransportFailure
		rec.Error = err.Error()
	}

	// The exchange may have failed because ctx was cancelled; the record is still wanted.
	if recErr := c.recorder.RecordExchange(context.WithoutCancel(ctx), rec); recErr != nil {
		c.logger.Warn("Failed to record exchange", "exchange_id", ex.id, "kind", ex.kind, "error", recErr)
	}
}
