package chatsync

// DefaultScrollThreshold is the distance from the bottom within which the
// view keeps following new messages.
const DefaultScrollThreshold = 30

// ScrollAction tells the renderer how to move the viewport after an update.
type ScrollAction int

const (
	// ScrollNone leaves the viewport where the user put it.
	ScrollNone ScrollAction = iota
	// ScrollSmooth animates to the bottom.
	ScrollSmooth
	// ScrollInstant jumps to the bottom.
	ScrollInstant
)

func (a ScrollAction) String() string {
	switch a {
	case ScrollSmooth:
		return "smooth"
	case ScrollInstant:
		return "instant"
	default:
		return "none"
	}
}

// ScrollPosition is a viewport measurement in rows or pixels.
type ScrollPosition struct {
	Offset         int
	ContentHeight  int
	ViewportHeight int
}

// DistanceFromBottom returns how far the viewport's lower edge is from the end
// of the content. Content shorter than the viewport is at the bottom.
func (p ScrollPosition) DistanceFromBottom() int {
	d := p.ContentHeight - p.Offset - p.ViewportHeight
	if d < 0 {
		return 0
	}
	return d
}

// ScrollTracker decides whether incoming messages should scroll the view.
// It starts with auto-scroll enabled. It is not safe for concurrent use; the
// Synchronizer confines it to its loop.
type ScrollTracker struct {
	threshold  int
	autoScroll bool
}

// NewScrollTracker creates a tracker. A threshold of zero or less uses
// DefaultScrollThreshold.
func NewScrollTracker(threshold int) *ScrollTracker {
	if threshold <= 0 {
		threshold = DefaultScrollThreshold
	}
	return &ScrollTracker{threshold: threshold, autoScroll: true}
}

// Observe records a manual scroll and returns the resulting auto-scroll flag.
func (t *ScrollTracker) Observe(pos ScrollPosition) bool {
	t.autoScroll = pos.DistanceFromBottom() <= t.threshold
	return t.autoScroll
}

// AutoScroll reports whether new messages currently follow the bottom.
func (t *ScrollTracker) AutoScroll() bool {
	return t.autoScroll
}

// Decide returns the scroll action for an update of the given reason over a
// list of count messages. Own sends always jump to the bottom and leave the
// flag untouched.
func (t *ScrollTracker) Decide(reason Reason, count int) ScrollAction {
	if count == 0 {
		return ScrollNone
	}
	switch reason {
	case ReasonSend:
		return ScrollInstant
	case ReasonInitial, ReasonPoll:
		if t.autoScroll {
			return ScrollSmooth
		}
	}
	return ScrollNone
}
