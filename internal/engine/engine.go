package engine

import (
	"github.com/genricoloni/mediakeys/internal/domain"
)

// State is the lifecycle phase of one key's display
type State int

const (
	// StateIdle is the phase before the key appears
	StateIdle State = iota
	// StateLoading is entered on appear and lasts until the first snapshot
	StateLoading
	// StateDisplaying renders projected (or "No media") text
	StateDisplaying
	// StateError renders "Error" until the next successful snapshot
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateDisplaying:
		return "displaying"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// dualSeparator joins the two lines of a dual-field variant
const dualSeparator = "\n\n"

// Options tunes the marquee
type Options struct {
	VisibleChars int
	ScrollSpeed  int
}

func (o Options) withDefaults() Options {
	if o.VisibleChars <= 0 {
		o.VisibleChars = DefaultVisibleChars
	}
	if o.ScrollSpeed <= 0 {
		o.ScrollSpeed = DefaultScrollSpeed
	}
	return o
}

// Engine is the display state machine of a single text key.
// It is not safe for concurrent use; the owning session serializes access.
type Engine struct {
	variant   domain.Variant
	opts      Options
	state     State
	primary   ScrollState
	secondary ScrollState
	lastError string
}

// New creates an engine in the Idle state
func New(variant domain.Variant, opts Options) *Engine {
	return &Engine{
		variant: variant,
		opts:    opts.withDefaults(),
		state:   StateIdle,
	}
}

// Begin moves the engine from Idle to Loading
func (e *Engine) Begin() {
	e.state = StateLoading
	e.primary.Reset("")
	e.secondary.Reset("")
	e.lastError = ""
}

// State returns the current phase
func (e *Engine) State() State { return e.state }

// Variant returns the key's variant
func (e *Engine) Variant() domain.Variant { return e.variant }

// LastError returns the message of the most recent error snapshot, if in the Error state
func (e *Engine) LastError() string { return e.lastError }

// Fields returns copies of the held scroll states
func (e *Engine) Fields() (primary, secondary ScrollState) {
	return e.primary, e.secondary
}

// OnSnapshot ingests a snapshot from either the poller or the push channel
func (e *Engine) OnSnapshot(s domain.MediaSnapshot) {
	switch {
	case s.IsError():
		e.state = StateError
		e.lastError = s.Error

	case s.IsEmpty():
		e.state = StateDisplaying
		e.lastError = ""
		e.primary.Reset(domain.TextNoMedia)
		e.secondary.Reset("")

	default:
		e.state = StateDisplaying
		e.lastError = ""
		primary, secondary := e.variant.Project(s)
		e.primary.Set(primary)
		if e.variant.DualField() {
			e.secondary.Set(secondary)
		} else {
			e.secondary.Reset("")
		}
	}
}

// Tick renders the current title and advances every scrolling field
func (e *Engine) Tick() string {
	return e.render(true)
}

// Frame renders the current title without advancing
func (e *Engine) Frame() string {
	return e.render(false)
}

func (e *Engine) render(advance bool) string {
	switch e.state {
	case StateError:
		return domain.TextError
	case StateIdle, StateLoading:
		return ""
	}

	line := func(s *ScrollState) string {
		if advance {
			return s.Advance(e.opts.VisibleChars, e.opts.ScrollSpeed)
		}
		return s.Peek(e.opts.VisibleChars)
	}

	title := line(&e.primary)
	if !e.variant.DualField() {
		return title
	}

	artist := line(&e.secondary)
	if artist == "" {
		return title
	}
	return title + dualSeparator + artist
}
