//go:build linux

// Package ibus exposes the editing core as an IBus engine over D-Bus.
//
// The engine object implements the org.freedesktop.IBus.Engine interface:
// IBus calls ProcessKeyEvent, focus and surrounding-text methods on it, and
// the engine emits CommitText / UpdatePreeditText / lookup-table signals
// back. The editing logic itself lives in internal/engine; this package is
// only the host adapter.
package ibus

import (
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"

	"aetherime/internal/engine"
	"aetherime/internal/ghost"
	"aetherime/internal/lexicon"
	"aetherime/internal/logging"
)

// IBus D-Bus constants.
const (
	BusName          = "com.aetherime.IBus"
	EngineName       = "aetherime"
	FactoryPath      = "/org/freedesktop/IBus/Factory"
	FactoryInterface = "org.freedesktop.IBus.Factory"
	EngineInterface  = "org.freedesktop.IBus.Engine"
)

// IBus key event state masks.
const (
	ShiftMask   uint32 = 1 << 0
	ControlMask uint32 = 1 << 2
	Mod1Mask    uint32 = 1 << 3 // Alt
	Mod4Mask    uint32 = 1 << 6 // Super/Meta
	ReleaseMask uint32 = 1 << 30
)

// Engine is one exported IBus engine object bound to one InputContext.
type Engine struct {
	conn *dbus.Conn
	path dbus.ObjectPath

	mu sync.Mutex
	ic *engine.InputContext

	surrounding string
	cursor      int
	surroundOK  bool

	log *logging.Logger
}

// NewEngine creates the engine object; Export must be called to put it on
// the bus.
func NewEngine(conn *dbus.Conn, path dbus.ObjectPath, session *ghost.Session, pinyin lexicon.Backend) *Engine {
	e := &Engine{
		conn: conn,
		path: path,
		log:  logging.Default().WithComponent("ibus"),
	}
	e.ic = engine.NewInputContext(e, session, pinyin)
	return e
}

// Export registers the engine object on the bus.
func (e *Engine) Export() error {
	return e.conn.Export(e, e.path, EngineInterface)
}

// --- engine.Host ---

// CommitString emits CommitText to the client.
func (e *Engine) CommitString(text string) {
	if err := e.conn.Emit(e.path, EngineInterface+".CommitText", ibusText(text)); err != nil {
		e.log.Warn("CommitText emit failed", "error", err)
	}
}

// SurroundingText returns the client-reported text around the caret.
func (e *Engine) SurroundingText() (string, int, bool) {
	return e.surrounding, e.cursor, e.surroundOK
}

// UpdateUI pushes preedit, lookup table and aux strings to the panel.
func (e *Engine) UpdateUI(state engine.UIState) {
	preedit := ""
	for _, seg := range state.Preedit {
		preedit += seg.Text
	}
	visible := state.Active()

	e.emit("UpdatePreeditText", ibusText(preedit), uint32(len([]rune(preedit))), visible)
	e.emit("UpdateAuxiliaryText", ibusText(auxLine(state)), visible && state.AuxDown != "")
	e.emit("UpdateLookupTable", ibusLookupTable(state.Candidates, state.CandidateCursor), len(state.Candidates) > 0)
}

func (e *Engine) emit(signal string, values ...interface{}) {
	if err := e.conn.Emit(e.path, EngineInterface+"."+signal, values...); err != nil {
		e.log.Debug("signal emit failed", "signal", signal, "error", err)
	}
}

// --- org.freedesktop.IBus.Engine methods ---

// ProcessKeyEvent handles one key event. Returns true when the key was
// eaten.
func (e *Engine) ProcessKeyEvent(keyval, keycode, state uint32) (bool, *dbus.Error) {
	if state&ReleaseMask != 0 {
		return false, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	eaten := e.ic.ProcessKey(engine.Key{
		Sym:       engine.KeySym(keyval),
		Modifiers: modifiersFromState(state),
	})
	return eaten, nil
}

// FocusIn is called when the engine gains input focus.
func (e *Engine) FocusIn() *dbus.Error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ic.Refresh()
	return nil
}

// FocusOut is called when the engine loses input focus.
func (e *Engine) FocusOut() *dbus.Error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.surroundOK = false
	e.ic.OnFocusOut()
	return nil
}

// Reset abandons the current composition.
func (e *Engine) Reset() *dbus.Error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ic.Reset()
	return nil
}

// Enable is called when the engine is enabled.
func (e *Engine) Enable() *dbus.Error { return nil }

// Disable is called when the engine is disabled.
func (e *Engine) Disable() *dbus.Error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ic.Reset()
	return nil
}

// SetSurroundingText provides the document context around the caret.
func (e *Engine) SetSurroundingText(text dbus.Variant, cursorPos, anchorPos uint32) *dbus.Error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if s, ok := textFromVariant(text); ok {
		e.surrounding = s
		e.cursor = int(cursorPos)
		e.surroundOK = true
	} else {
		e.surroundOK = false
	}
	return nil
}

// SetCapabilities informs about client capabilities.
func (e *Engine) SetCapabilities(caps uint32) *dbus.Error { return nil }

// SetContentType reports the input purpose; purpose 8 is password entry.
func (e *Engine) SetContentType(purpose, hints uint32) *dbus.Error {
	const purposePassword = 8
	if purpose == purposePassword {
		e.mu.Lock()
		defer e.mu.Unlock()
		e.ic.OnFocusOut()
	}
	return nil
}

// PageUp pages the candidate list.
func (e *Engine) PageUp() *dbus.Error {
	return e.forwardKey(engine.KeyPageUp)
}

// PageDown pages the candidate list.
func (e *Engine) PageDown() *dbus.Error {
	return e.forwardKey(engine.KeyPageDown)
}

// CursorUp moves the candidate cursor up.
func (e *Engine) CursorUp() *dbus.Error {
	return e.forwardKey(engine.KeyUp)
}

// CursorDown moves the candidate cursor down.
func (e *Engine) CursorDown() *dbus.Error {
	return e.forwardKey(engine.KeyDown)
}

func (e *Engine) forwardKey(sym engine.KeySym) *dbus.Error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ic.ProcessKey(engine.Key{Sym: sym})
	return nil
}

// CandidateClicked commits the clicked candidate via its selection digit.
func (e *Engine) CandidateClicked(index, button, state uint32) *dbus.Error {
	if index > 9 {
		return nil
	}
	sym := engine.KeySym('1' + index)
	if index == 9 {
		sym = '0'
	}
	return e.forwardKey(sym)
}

// PropertyActivate handles property activations; none are exported.
func (e *Engine) PropertyActivate(propName string, state uint32) *dbus.Error { return nil }

// --- helpers ---

func modifiersFromState(state uint32) engine.Modifiers {
	var mods engine.Modifiers
	if state&ShiftMask != 0 {
		mods |= engine.ModShift
	}
	if state&ControlMask != 0 {
		mods |= engine.ModControl
	}
	if state&Mod1Mask != 0 {
		mods |= engine.ModAlt
	}
	if state&Mod4Mask != 0 {
		mods |= engine.ModMeta
	}
	return mods
}

// ibusText serializes a string as an IBusText variant: the ("IBusText",
// attachments, text, attrs) struct IBus expects inside a variant.
func ibusText(s string) dbus.Variant {
	attrList := dbus.MakeVariant(struct {
		Name        string
		Attachments map[string]dbus.Variant
		Attributes  []dbus.Variant
	}{"IBusAttrList", map[string]dbus.Variant{}, []dbus.Variant{}})

	return dbus.MakeVariant(struct {
		Name        string
		Attachments map[string]dbus.Variant
		Text        string
		AttrList    dbus.Variant
	}{"IBusText", map[string]dbus.Variant{}, s, attrList})
}

// textFromVariant unwraps an IBusText variant back into its string.
func textFromVariant(v dbus.Variant) (string, bool) {
	inner, ok := v.Value().([]interface{})
	if !ok || len(inner) < 3 {
		return "", false
	}
	s, ok := inner[2].(string)
	return s, ok
}

// ibusLookupTable serializes the candidate list as an IBusLookupTable
// variant with a page size of five.
func ibusLookupTable(candidates []string, cursor int) dbus.Variant {
	texts := make([]dbus.Variant, 0, len(candidates))
	for _, c := range candidates {
		texts = append(texts, ibusText(c))
	}
	labels := make([]dbus.Variant, 0, len(candidates))
	for i := range candidates {
		labels = append(labels, ibusText(fmt.Sprintf("%d.", (i+1)%10)))
	}

	return dbus.MakeVariant(struct {
		Name          string
		Attachments   map[string]dbus.Variant
		PageSize      uint32
		CursorPos     uint32
		CursorVisible bool
		Round         bool
		Orientation   int32
		Candidates    []dbus.Variant
		Labels        []dbus.Variant
	}{"IBusLookupTable", map[string]dbus.Variant{}, 5, uint32(cursor), true, false, 1, texts, labels})
}

func auxLine(state engine.UIState) string {
	if state.AuxUp == "" {
		return state.AuxDown
	}
	if state.AuxDown == "" {
		return state.AuxUp
	}
	return state.AuxUp + " " + state.AuxDown
}

// Factory implements org.freedesktop.IBus.Factory, handing IBus an engine
// object path per CreateEngine call.
type Factory struct {
	conn    *dbus.Conn
	make    func() *Engine
	nextID  uint32
	engines map[dbus.ObjectPath]*Engine
	mu      sync.Mutex
}

// NewFactory creates a factory; makeEngine builds a fresh engine for each
// CreateEngine call.
func NewFactory(conn *dbus.Conn, makeEngine func() *Engine) *Factory {
	return &Factory{
		conn:    conn,
		make:    makeEngine,
		engines: make(map[dbus.ObjectPath]*Engine),
	}
}

// Export registers the factory object on the bus.
func (f *Factory) Export() error {
	return f.conn.Export(f, FactoryPath, FactoryInterface)
}

// CreateEngine creates a new engine instance for IBus.
func (f *Factory) CreateEngine(engineName string) (dbus.ObjectPath, *dbus.Error) {
	if engineName != EngineName {
		return "", dbus.NewError("org.freedesktop.IBus.NoEngine",
			[]interface{}{"unknown engine: " + engineName})
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextID++
	path := dbus.ObjectPath(fmt.Sprintf("/org/freedesktop/IBus/Engine/%d", f.nextID))

	eng := f.make()
	eng.path = path
	if err := eng.Export(); err != nil {
		return "", dbus.NewError("org.freedesktop.IBus.Error",
			[]interface{}{err.Error()})
	}
	f.engines[path] = eng
	return path, nil
}
