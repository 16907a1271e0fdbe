package suggest

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aetherime/internal/ghost"
	"aetherime/internal/wire"
)

type fakeSender struct {
	mu      sync.Mutex
	frames  []string
	cancels []string
}

func (s *fakeSender) Enqueue(frame []byte) {
	s.mu.Lock()
	s.frames = append(s.frames, string(frame))
	s.mu.Unlock()
}

func (s *fakeSender) EnqueueCancel(requestID string) {
	s.mu.Lock()
	s.cancels = append(s.cancels, requestID)
	s.mu.Unlock()
}

func (s *fakeSender) frameCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

func (s *fakeSender) allFrames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.frames...)
}

func (s *fakeSender) allCancels() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.cancels...)
}

type fakeView struct {
	shown  []string
	clears int
	ghost  bool
}

func (v *fakeView) Show(suggestion string) error {
	v.shown = append(v.shown, suggestion)
	v.ghost = true
	return nil
}

func (v *fakeView) Clear() error {
	v.clears++
	v.ghost = false
	return nil
}

func (v *fakeView) HasGhost() bool { return v.ghost }

func newTestCoordinator() (*Coordinator, *fakeSender, *fakeView) {
	sender := &fakeSender{}
	view := &fakeView{}
	return NewCoordinator(sender, view, &ghost.Guard{}), sender, view
}

func waitForFrames(t *testing.T, sender *fakeSender, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if sender.frameCount() >= n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("wanted %d frames, have %d", n, sender.frameCount())
}

func TestDebounceCollapsesBurst(t *testing.T) {
	c, sender, _ := newTestCoordinator()

	for _, ctx := range []string{"h", "he", "hel", "hell", "hello"} {
		c.OnEndEdit(Snapshot{Context: ctx, SelectionEmpty: true})
		time.Sleep(5 * time.Millisecond)
	}

	waitForFrames(t, sender, 1)
	// The burst fits inside one debounce window: one request, final context.
	time.Sleep(2 * DebounceInterval)
	require.Equal(t, 1, sender.frameCount())
	assert.Contains(t, sender.allFrames()[0], `"context":"hello"`)
	assert.Contains(t, sender.allFrames()[0], `"max_len":32`)
}

func TestNewEditSupersedesInflight(t *testing.T) {
	c, sender, _ := newTestCoordinator()

	c.OnEndEdit(Snapshot{Context: "hel", SelectionEmpty: true})
	waitForFrames(t, sender, 1)
	first := c.InflightID()
	require.NotEmpty(t, first)

	c.OnEndEdit(Snapshot{Context: "hello", SelectionEmpty: true})
	waitForFrames(t, sender, 2)

	assert.Equal(t, []string{first}, sender.allCancels())
	assert.NotEqual(t, first, c.InflightID())
}

func TestStaleResponseDiscarded(t *testing.T) {
	c, sender, view := newTestCoordinator()

	c.OnEndEdit(Snapshot{Context: "hel", SelectionEmpty: true})
	waitForFrames(t, sender, 1)
	stale := c.InflightID()

	c.OnEndEdit(Snapshot{Context: "hello", SelectionEmpty: true})
	waitForFrames(t, sender, 2)

	c.HandleResponse(wire.SuggestionResponse{RequestID: stale, Suggestion: "p me", Confidence: 0.9})
	assert.Empty(t, view.shown, "stale response must not show a ghost")

	c.HandleResponse(wire.SuggestionResponse{RequestID: c.InflightID(), Suggestion: " world", Confidence: 0.9})
	assert.Equal(t, []string{" world"}, view.shown)
}

func TestLowConfidenceClearsGhost(t *testing.T) {
	c, sender, view := newTestCoordinator()

	c.OnEndEdit(Snapshot{Context: "x", SelectionEmpty: true})
	waitForFrames(t, sender, 1)

	c.HandleResponse(wire.SuggestionResponse{RequestID: c.InflightID(), Suggestion: "weak", Confidence: 0.49})
	assert.Empty(t, view.shown)
	assert.Equal(t, 1, view.clears)
}

func TestEmptySuggestionClearsGhost(t *testing.T) {
	c, sender, view := newTestCoordinator()

	c.OnEndEdit(Snapshot{Context: "x", SelectionEmpty: true})
	waitForFrames(t, sender, 1)

	c.HandleResponse(wire.SuggestionResponse{RequestID: c.InflightID(), Suggestion: "", Confidence: 0.99})
	assert.Empty(t, view.shown)
	assert.Equal(t, 1, view.clears)
}

func TestResponseConsumesInflight(t *testing.T) {
	c, sender, view := newTestCoordinator()

	c.OnEndEdit(Snapshot{Context: "x", SelectionEmpty: true})
	waitForFrames(t, sender, 1)
	id := c.InflightID()

	c.HandleResponse(wire.SuggestionResponse{RequestID: id, Suggestion: "y", Confidence: 0.9})
	assert.Empty(t, c.InflightID())

	// A duplicate delivery of the same id is now stale.
	c.HandleResponse(wire.SuggestionResponse{RequestID: id, Suggestion: "z", Confidence: 0.9})
	assert.Equal(t, []string{"y"}, view.shown)
}

func TestSensitiveContextNeverRequests(t *testing.T) {
	c, sender, view := newTestCoordinator()
	view.ghost = true

	c.OnEndEdit(Snapshot{Context: "secret", Sensitive: true, SelectionEmpty: true})

	time.Sleep(3 * DebounceInterval)
	assert.Zero(t, sender.frameCount())
	assert.False(t, view.HasGhost(), "pre-existing ghost must be cleared")
}

func TestSensitiveCancelsArmedTimer(t *testing.T) {
	c, sender, _ := newTestCoordinator()

	c.OnEndEdit(Snapshot{Context: "hel", SelectionEmpty: true})
	c.OnEndEdit(Snapshot{Context: "secret", Sensitive: true, SelectionEmpty: true})

	time.Sleep(3 * DebounceInterval)
	assert.Zero(t, sender.frameCount(), "armed request must not fire after sensitive edit")
}

func TestSelfInducedEditIgnored(t *testing.T) {
	guard := &ghost.Guard{}
	sender := &fakeSender{}
	view := &fakeView{ghost: true}
	c := NewCoordinator(sender, view, guard)

	exit := guard.Enter()
	c.OnEndEdit(Snapshot{Context: "our own ghost write", SelectionEmpty: true})
	exit()

	time.Sleep(3 * DebounceInterval)
	assert.Zero(t, sender.frameCount())
	assert.True(t, view.HasGhost(), "self-induced edits must not clear the ghost")
}

func TestNonEmptySelectionClearsWithoutRequest(t *testing.T) {
	c, sender, view := newTestCoordinator()
	view.ghost = true

	c.OnEndEdit(Snapshot{Context: "abc", SelectionEmpty: false})

	time.Sleep(3 * DebounceInterval)
	assert.Zero(t, sender.frameCount())
	assert.False(t, view.HasGhost())
}

func TestFocusChangeCancelsEverything(t *testing.T) {
	c, sender, view := newTestCoordinator()
	view.ghost = true

	c.OnEndEdit(Snapshot{Context: "hel", SelectionEmpty: true})
	waitForFrames(t, sender, 1)
	id := c.InflightID()

	c.OnEndEdit(Snapshot{Context: "hell", SelectionEmpty: true})
	c.OnFocusChange()

	time.Sleep(3 * DebounceInterval)
	assert.Equal(t, 1, sender.frameCount(), "armed request must not fire after focus change")
	assert.Contains(t, sender.allCancels(), id)
	assert.Empty(t, c.InflightID())
	assert.False(t, view.HasGhost())

	// A late response for the cancelled id is stale.
	c.HandleResponse(wire.SuggestionResponse{RequestID: id, Suggestion: "x", Confidence: 0.9})
	assert.Empty(t, view.shown)
}

func TestContextTruncatedToUTF16Window(t *testing.T) {
	c, sender, _ := newTestCoordinator()

	long := strings.Repeat("a", 300) + "𝄞" // astral char = 2 UTF-16 units
	c.OnEndEdit(Snapshot{Context: long, SelectionEmpty: true})
	waitForFrames(t, sender, 1)

	frame := sender.allFrames()[0]
	assert.Contains(t, frame, `"cursor":256`)
	assert.NotContains(t, frame, strings.Repeat("a", 255)+"𝄞"+`"`)
}

func TestResponsesChannelHandsOff(t *testing.T) {
	c, _, _ := newTestCoordinator()

	c.OnWorkerResponse(wire.SuggestionResponse{RequestID: "1"})
	select {
	case rsp := <-c.Responses():
		assert.Equal(t, "1", rsp.RequestID)
	default:
		t.Fatal("response was not queued")
	}
}

func TestTruncateUTF16KeepsSurrogatePairsWhole(t *testing.T) {
	// "𝄞" needs 2 units; with max 3 the leading half must not be split off.
	s, units := truncateUTF16("x𝄞𝄞", 3)
	assert.Equal(t, "𝄞", s)
	assert.Equal(t, 2, units)

	s, units = truncateUTF16("abc", 10)
	assert.Equal(t, "abc", s)
	assert.Equal(t, 3, units)

	s, units = truncateUTF16("", 10)
	assert.Empty(t, s)
	assert.Zero(t, units)
}
