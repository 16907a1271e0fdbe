// Package suggest drives ghost suggestions for hosts that report document
// edits: it debounces edit bursts, keeps exactly one request in flight, and
// turns matching responses into ghost show/clear operations.
package suggest

import (
	"strconv"
	"sync"
	"time"
	"unicode/utf16"

	"aetherime/internal/ghost"
	"aetherime/internal/logging"
	"aetherime/internal/wire"
)

// Design constants, fixed by the protocol contract with the daemon.
const (
	// ConfidenceThreshold is the minimum confidence to show a suggestion.
	ConfidenceThreshold = 0.50

	// DebounceInterval is the quiet period after the last edit before a
	// request is sent.
	DebounceInterval = 60 * time.Millisecond

	// MaxContextBefore caps the context window in UTF-16 code units.
	MaxContextBefore = 256

	maxSuggestLen = 32
)

// GhostView renders ghost text in the document; ghost.Controller satisfies
// it.
type GhostView interface {
	Show(suggestion string) error
	Clear() error
	HasGhost() bool
}

// Sender queues frames for the transport worker; transport.Worker
// satisfies it.
type Sender interface {
	Enqueue(frame []byte)
	EnqueueCancel(requestID string)
}

// Snapshot is what the edit observer captured about one document change.
type Snapshot struct {
	// Context is the text before the caret (the coordinator truncates to
	// MaxContextBefore UTF-16 units).
	Context string

	// Sensitive marks password and similar input scopes.
	Sensitive bool

	// SelectionEmpty is true when the caret is a single insertion point.
	SelectionEmpty bool
}

// Coordinator owns the debounce timer and the inflight request id for one
// input context.
//
// Threading: OnEndEdit, OnFocusChange, Deactivate and HandleResponse run on
// the host's UI/edit thread. The debounce timer fires on its own goroutine
// but only touches coordinator state and the worker outbox, never the
// document. Worker responses are posted through Responses() back to the UI
// thread, which calls HandleResponse.
type Coordinator struct {
	sender Sender
	view   GhostView
	guard  *ghost.Guard

	mu             sync.Mutex
	timer          *time.Timer
	pendingContext string
	pendingCursor  int
	inflightID     string
	nextID         int64

	responses chan wire.SuggestionResponse
	log       *logging.Logger
}

// NewCoordinator wires a coordinator to the worker, the ghost view, and the
// self-edit guard shared with the ghost controller.
func NewCoordinator(sender Sender, view GhostView, guard *ghost.Guard) *Coordinator {
	return &Coordinator{
		sender:    sender,
		view:      view,
		guard:     guard,
		responses: make(chan wire.SuggestionResponse, 16),
		log:       logging.Default().WithComponent("suggest"),
	}
}

// InflightID returns the id of the outstanding request, empty if none.
func (c *Coordinator) InflightID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inflightID
}

// OnEndEdit processes one observed document edit.
func (c *Coordinator) OnEndEdit(snap Snapshot) {
	if c.guard.Active() {
		// Self-induced: our own ghost show/clear/accept.
		return
	}

	if snap.Sensitive {
		c.cancelTimer()
		c.view.Clear()
		return
	}

	if !snap.SelectionEmpty {
		if c.view.HasGhost() {
			c.view.Clear()
		}
		return
	}

	// A foreign edit invalidates whatever ghost is on screen.
	if c.view.HasGhost() {
		c.view.Clear()
	}

	context, units := truncateUTF16(snap.Context, MaxContextBefore)

	c.mu.Lock()
	c.pendingContext = context
	c.pendingCursor = units
	if c.timer == nil {
		c.timer = time.AfterFunc(DebounceInterval, c.fire)
	} else {
		c.timer.Reset(DebounceInterval)
	}
	c.mu.Unlock()
}

// fire sends the pending request, superseding any inflight one.
func (c *Coordinator) fire() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.timer == nil {
		// Cancelled between firing and locking.
		return
	}

	if c.inflightID != "" {
		c.sender.EnqueueCancel(c.inflightID)
	}

	c.nextID++
	c.inflightID = strconv.FormatInt(c.nextID, 10)

	frame, err := wire.EncodeSuggest(wire.SuggestRequest{
		RequestID: c.inflightID,
		Context:   c.pendingContext,
		Cursor:    c.pendingCursor,
		MaxLen:    maxSuggestLen,
	})
	if err != nil {
		c.log.Warn("suggest encode failed", "error", err)
		c.inflightID = ""
		return
	}
	c.sender.Enqueue(frame)
}

func (c *Coordinator) cancelTimer() {
	c.mu.Lock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.mu.Unlock()
}

// cancelInflight sends a cancel for the outstanding request and forgets it.
func (c *Coordinator) cancelInflight() {
	c.mu.Lock()
	id := c.inflightID
	c.inflightID = ""
	c.mu.Unlock()
	if id != "" {
		c.sender.EnqueueCancel(id)
	}
}

// OnFocusChange cancels pending and inflight work and clears any ghost in
// the context losing focus.
func (c *Coordinator) OnFocusChange() {
	c.cancelTimer()
	c.cancelInflight()
	c.view.Clear()
}

// Deactivate is OnFocusChange for teardown.
func (c *Coordinator) Deactivate() {
	c.OnFocusChange()
}

// OnWorkerResponse hands a response from the worker goroutine to the UI
// thread. Responses are dropped rather than blocking the worker.
func (c *Coordinator) OnWorkerResponse(rsp wire.SuggestionResponse) {
	select {
	case c.responses <- rsp:
	default:
		c.log.Debug("response queue full, dropping", "request_id", rsp.RequestID)
	}
}

// Responses is the channel the host's UI loop drains, passing each value to
// HandleResponse.
func (c *Coordinator) Responses() <-chan wire.SuggestionResponse {
	return c.responses
}

// HandleResponse applies one response on the UI thread: stale ids are
// discarded; weak or empty suggestions clear the ghost; the rest show it.
func (c *Coordinator) HandleResponse(rsp wire.SuggestionResponse) {
	c.mu.Lock()
	match := rsp.RequestID != "" && rsp.RequestID == c.inflightID
	if match {
		c.inflightID = ""
	}
	c.mu.Unlock()

	if !match {
		return
	}

	if rsp.Suggestion == "" || rsp.Confidence < ConfidenceThreshold {
		c.view.Clear()
		return
	}

	// replace_range is recorded on the response but the suggestion is
	// applied as an insertion at the caret.
	c.view.Show(rsp.Suggestion)
}

// truncateUTF16 keeps the last max UTF-16 code units of s without splitting
// a surrogate pair, returning the kept tail and its length in units.
func truncateUTF16(s string, max int) (string, int) {
	runes := []rune(s)
	units := 0
	start := len(runes)
	for start > 0 {
		need := utf16.RuneLen(runes[start-1])
		if need < 0 {
			need = 1
		}
		if units+need > max {
			break
		}
		units += need
		start--
	}
	return string(runes[start:]), units
}
