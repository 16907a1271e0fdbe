package ghost

import (
	"sync/atomic"

	"aetherime/internal/logging"
)

// Composition is the host's handle for a live styled range. The controller
// treats it as opaque.
type Composition interface{}

// EditContext is the capability set available inside one scoped read-write
// edit session. All mutations performed through it become atomic to the
// host when the session ends.
type EditContext interface {
	// Caret returns the current insertion point, ok=false when the
	// selection is not a single insertion point.
	Caret() (pos int, ok bool)

	// StartComposition opens a styled composition at pos.
	StartComposition(pos int) (Composition, error)

	// SetText replaces the composition's text.
	SetText(c Composition, text string) error

	// ApplyGhostAttribute styles the composition's range as ghost text.
	ApplyGhostAttribute(c Composition) error

	// ClearGhostAttribute removes the ghost styling, leaving plain text.
	ClearGhostAttribute(c Composition) error

	// CompositionRange returns the composition's current [start, end).
	CompositionRange(c Composition) (start, end int, err error)

	// EndComposition terminates the composition, leaving its text in the
	// document.
	EndComposition(c Composition) error

	// SetSelection collapses the selection to pos.
	SetSelection(pos int) error
}

// Document grants scoped edit sessions on the focused input context.
type Document interface {
	InEditSession(fn func(EditContext) error) error
}

// Guard counts in-progress self-induced edits. The text-edit observer must
// skip any change seen while the count is non-zero.
type Guard struct {
	depth atomic.Int64
}

// Enter marks the start of a self-induced edit. The returned func must run
// on every exit path.
func (g *Guard) Enter() func() {
	g.depth.Add(1)
	return func() { g.depth.Add(-1) }
}

// Active reports whether a self-induced edit is in progress.
func (g *Guard) Active() bool {
	return g.depth.Load() > 0
}

// Controller keeps at most one live ghost composition per input context.
//
// Lifecycle: Idle -> Active on Show; Active -> Active on Show (the previous
// composition is cleared first); Clear and Accept return to Idle and are
// idempotent. A host-initiated termination callback also returns to Idle.
type Controller struct {
	doc   Document
	guard *Guard

	composition Composition
	text        string

	log *logging.Logger
}

// NewController creates a controller editing through doc, flagging its own
// edits via guard.
func NewController(doc Document, guard *Guard) *Controller {
	return &Controller{
		doc:   doc,
		guard: guard,
		log:   logging.Default().WithComponent("ghost"),
	}
}

// HasGhost reports whether a ghost composition is live.
func (c *Controller) HasGhost() bool { return c.composition != nil }

// Text returns the text of the live ghost, empty when none.
func (c *Controller) Text() string { return c.text }

// Show renders suggestion as ghost text at the caret. A live composition is
// cleared first. The caret is moved back to the composition's start so the
// user keeps typing in front of the ghost.
func (c *Controller) Show(suggestion string) error {
	if suggestion == "" {
		return c.Clear()
	}

	// The guard spans the whole edit session: the host's edit notification
	// fires as the session closes and must still observe it.
	defer c.guard.Enter()()

	return c.doc.InEditSession(func(ec EditContext) error {
		if c.composition != nil {
			c.clearLocked(ec)
		}

		caret, ok := ec.Caret()
		if !ok {
			return nil
		}

		comp, err := ec.StartComposition(caret)
		if err != nil {
			return err
		}
		if err := ec.SetText(comp, suggestion); err != nil {
			ec.EndComposition(comp)
			return err
		}
		if err := ec.ApplyGhostAttribute(comp); err != nil {
			c.log.Debug("ghost attribute apply failed", "error", err)
		}

		c.composition = comp
		c.text = suggestion

		if start, _, err := ec.CompositionRange(comp); err == nil {
			ec.SetSelection(start)
		}
		return nil
	})
}

// Clear removes the live ghost composition and its text. No-op when none.
func (c *Controller) Clear() error {
	if c.composition == nil {
		return nil
	}
	defer c.guard.Enter()()
	return c.doc.InEditSession(func(ec EditContext) error {
		c.clearLocked(ec)
		return nil
	})
}

func (c *Controller) clearLocked(ec EditContext) {
	comp := c.composition
	if comp == nil {
		return
	}
	ec.ClearGhostAttribute(comp)
	ec.SetText(comp, "")
	ec.EndComposition(comp)
	c.composition = nil
	c.text = ""
}

// Accept commits the live ghost: styling is removed, the composition ends
// with its text left in the document, and the caret lands after it. Returns
// the accepted text, empty when no ghost was live.
func (c *Controller) Accept() (string, error) {
	if c.composition == nil {
		return "", nil
	}

	defer c.guard.Enter()()

	var accepted string
	err := c.doc.InEditSession(func(ec EditContext) error {
		comp := c.composition
		if comp == nil {
			return nil
		}

		ec.ClearGhostAttribute(comp)

		end := -1
		if _, e, err := ec.CompositionRange(comp); err == nil {
			end = e
		}
		ec.EndComposition(comp)

		accepted = c.text
		c.composition = nil
		c.text = ""

		if end >= 0 {
			ec.SetSelection(end)
		}
		return nil
	})
	return accepted, err
}

// OnCompositionTerminated handles the host tearing the composition down on
// its own (focus steal, app-side edit). Ownership is dropped without
// touching the document.
func (c *Controller) OnCompositionTerminated(comp Composition) {
	if c.composition != nil && c.composition == comp {
		c.composition = nil
		c.text = ""
	}
}
