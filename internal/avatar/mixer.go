// Package avatar keeps the avatar's animation in step with the controller's
// speaking flag.
package avatar

// Clip names the renderer is expected to provide.
const (
	ClipIdle = "idle"
	ClipTalk = "talk"
)

// Mixer is the animation capability of a loaded avatar model.
// Has reports whether a clip is available; Play and Stop on a missing clip are no-ops.
type Mixer interface {
	Has(clip string) bool
	Play(clip string)
	Stop(clip string)
}
