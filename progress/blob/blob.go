package blob

import "time"

// Phase represents a step in a blob handle's lifecycle.
type Phase int

const (
	PhaseOpen    Phase = iota // Handle opened; Found tells whether the file existed.
	PhaseReload               // Cached copy reloaded after a Dirty acquisition.
	PhaseCommit               // Write view committed to disk; Err set on failure.
	PhaseDiscard              // Write view released without commit.
	PhasePoison               // A panic escaped a write; the cached copy is unusable.
)

func (p Phase) String() string {
	switch p {
	case PhaseOpen:
		return "open"
	case PhaseReload:
		return "reload"
	case PhaseCommit:
		return "commit"
	case PhaseDiscard:
		return "discard"
	case PhasePoison:
		return "poison"
	default:
		return "unknown"
	}
}

// Event describes a single blob lifecycle update.
type Event struct {
	Phase    Phase
	Path     string
	Found    bool          // PhaseOpen / PhaseReload: the backing file existed.
	Implicit bool          // PhaseCommit: ran as part of Release.
	Duration time.Duration // Time spent on disk I/O for open, reload and commit.
	Err      error
}
