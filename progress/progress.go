package progress

// Tracker receives lifecycle events from blob handles.
// Implementations must be safe for concurrent use from multiple goroutines.
type Tracker interface {
	OnEvent(any)
}

// NewTracker creates a Tracker from a typed callback function.
// The caller works with a concrete event type; events of any other type are
// ignored, so the Tracker interface stays non-generic.
func NewTracker[E any](fn func(E)) Tracker {
	return funcTracker(func(v any) {
		if e, ok := v.(E); ok {
			fn(e)
		}
	})
}

// Multi fans every event out to all trackers in order. Nil entries are skipped.
func Multi(trackers ...Tracker) Tracker {
	return funcTracker(func(v any) {
		for _, t := range trackers {
			if t != nil {
				t.OnEvent(v)
			}
		}
	})
}

type funcTracker func(any)

func (f funcTracker) OnEvent(e any) { f(e) }

// Nop is a no-op tracker for callers that don't need progress.
var Nop Tracker = funcTracker(func(any) {})
