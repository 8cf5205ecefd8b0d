package avatar

import (
	"context"
	"log/slog"
	"sync"
)

// Synchronizer switches between the idle and talk clips.
//
// At most one clip plays at any instant. Applying the same speaking value twice
// issues no mixer calls. When the talk clip is missing the avatar stays idle.
type Synchronizer struct {
	mixer  Mixer
	logger *slog.Logger

	mu       sync.Mutex
	speaking bool
	playing  string

	mailbox chan bool
}

// NewSynchronizer creates a synchronizer driving m. Nothing plays until the
// first OnSpeakingChanged or Refresh.
func NewSynchronizer(m Mixer, logger *slog.Logger) *Synchronizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Synchronizer{
		mixer:   m,
		logger:  logger,
		mailbox: make(chan bool, 1),
	}
}

// OnSpeakingChanged applies speaking synchronously.
func (s *Synchronizer) OnSpeakingChanged(speaking bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.speaking = speaking
	s.applyLocked()
}

// Refresh re-applies the latest speaking value, for example after the
// renderer finished loading clips.
func (s *Synchronizer) Refresh() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applyLocked()
}

// Playing returns the clip currently playing, or "" if none.
func (s *Synchronizer) Playing() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing
}

// Speaking returns the last applied speaking value.
func (s *Synchronizer) Speaking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.speaking
}

// Notify queues speaking for Run without blocking. A value still waiting in
// the mailbox is replaced, so only the latest one is applied.
func (s *Synchronizer) Notify(speaking bool) {
	for {
		select {
		case s.mailbox <- speaking:
			return
		default:
		}

		select {
		case stale := <-s.mailbox:
			s.logger.Debug("Coalesced speaking update", "dropped", stale, "latest", speaking)
		default:
		}
	}
}

// Run applies queued values until ctx is done.
func (s *Synchronizer) Run(ctx context.Context) error {
	s.logger.Info("Avatar synchronizer started")
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Avatar synchronizer stopping")
			return nil
		case speaking := <-s.mailbox:
			s.OnSpeakingChanged(speaking)
		}
	}
}

func (s *Synchronizer) applyLocked() {
	want := ClipIdle
	if s.speaking && s.mixer.Has(ClipTalk) {
		want = ClipTalk
	}
	if !s.mixer.Has(want) {
		want = ""
	}
	if want == s.playing {
		return
	}

	if s.playing != "" {
		s.mixer.Stop(s.playing)
	}
	if want != "" {
		s.mixer.Play(want)
	}
	s.logger.Debug("Avatar clip switched", "from", s.playing, "to", want, "speaking", s.speaking)
	s.playing = want
}
