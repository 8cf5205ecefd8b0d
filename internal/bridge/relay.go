package bridge

import (
	"sync"

	"github.com/ashureev/vid-companion/internal/avatar"
)

var _ avatar.Mixer = (*ClipRelay)(nil)

// ClipRelay is the avatar mixer of the remote renderers. Clip availability
// comes from the renderers' latest "clips" report; every play or stop
// broadcasts the resulting selection through the hub.
type ClipRelay struct {
	hub *Hub

	mu      sync.Mutex
	loaded  map[string]bool
	current string
}

// NewClipRelay creates a relay with no clips loaded.
func NewClipRelay(hub *Hub) *ClipRelay {
	return &ClipRelay{hub: hub, loaded: make(map[string]bool)}
}

// SetLoaded replaces the set of available clips.
func (r *ClipRelay) SetLoaded(clips []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loaded = make(map[string]bool, len(clips))
	for _, c := range clips {
		r.loaded[c] = true
	}
}

// Has implements avatar.Mixer.
func (r *ClipRelay) Has(clip string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loaded[clip]
}

// Play implements avatar.Mixer.
func (r *ClipRelay) Play(clip string) {
	r.mu.Lock()
	if !r.loaded[clip] {
		r.mu.Unlock()
		return
	}
	r.current = clip
	r.mu.Unlock()

	r.hub.BroadcastClip(newClipMessage(clip))
}

// Stop implements avatar.Mixer.
func (r *ClipRelay) Stop(clip string) {
	r.mu.Lock()
	if !r.loaded[clip] {
		r.mu.Unlock()
		return
	}
	if r.current != clip {
		r.mu.Unlock()
		return
	}
	r.current = ""
	r.mu.Unlock()

	r.hub.BroadcastClip(newClipMessage(""))
}

// Current returns the clip last played and not yet stopped, or "".
func (r *ClipRelay) Current() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}
