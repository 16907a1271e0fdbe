package engine

import (
	"strings"
	"unicode/utf8"

	"aetherime/internal/ghost"
	"aetherime/internal/lexicon"
	"aetherime/internal/wire"
)

// Context window and candidate list sizing.
const (
	maxCandidates = 5
	pageSize      = 5
	prefixWindow  = 256
	suffixWindow  = 128
)

// InputContext is the editing state machine for one focused text field.
// It owns the composing buffer, the candidate list, the ghost text, and the
// prediction session; the host owns the document.
type InputContext struct {
	host    Host
	session *ghost.Session

	pinyin   lexicon.Backend
	fallback lexicon.Backend
	english  lexicon.Backend

	buffer         ComposingBuffer
	englishMode    bool
	predictEnabled bool

	ghostText        string
	predictionSource string
	mergedCandidates []string
	candidateCursor  int
}

// NewInputContext wires a state machine to its host, prediction session and
// lexical backends. Prediction starts enabled, in Chinese mode.
func NewInputContext(host Host, session *ghost.Session, pinyin lexicon.Backend) *InputContext {
	return &InputContext{
		host:           host,
		session:        session,
		pinyin:         pinyin,
		fallback:       lexicon.FallbackZh(),
		english:        lexicon.En(),
		predictEnabled: true,
	}
}

// EnglishMode reports whether English mode is active.
func (ic *InputContext) EnglishMode() bool { return ic.englishMode }

// PredictEnabled reports whether ghost prediction is active.
func (ic *InputContext) PredictEnabled() bool { return ic.predictEnabled }

// GhostText returns the current ghost text, empty if none.
func (ic *InputContext) GhostText() string { return ic.ghostText }

// Candidates returns the current candidate list.
func (ic *InputContext) Candidates() []string { return ic.mergedCandidates }

// SubModeLabel is the short mode indicator for the host's status area.
func (ic *InputContext) SubModeLabel() string {
	if ic.englishMode {
		return "EN"
	}
	return "中"
}

// ProcessKey runs one key press through the dispatch order and reports
// whether the key was eaten.
func (ic *InputContext) ProcessKey(key Key) bool {
	if key.Is(KeySemicolon, ModControl) {
		ic.togglePredict()
		return true
	}

	if key.Is(KeySpace, ModControl) {
		ic.toggleEnglishMode()
		return true
	}

	if len(ic.mergedCandidates) > 0 {
		if handled := ic.processCandidateKey(key); handled {
			return true
		}
	}

	switch {
	case key.Is(KeyTab, 0):
		return ic.processTab()

	case key.Is(KeyEscape, 0):
		if !ic.buffer.Empty() || ic.ghostText != "" {
			ic.Reset()
			return true
		}
		return false

	case key.Is(KeyBackSpace, 0):
		if !ic.buffer.Empty() && ic.buffer.Backspace() {
			ic.updatePrediction("")
			ic.updateUI()
			return true
		}
		return false

	case key.Is(KeyReturn, 0):
		if !ic.buffer.Empty() {
			ic.commitAndRefresh(ic.buffer.UserInput())
			return true
		}
		return false

	case key.Is(KeySpace, 0):
		if !ic.buffer.Empty() && len(ic.mergedCandidates) > 0 {
			ic.commitAndRefresh(ic.mergedCandidates[0])
			return true
		}
		if !ic.buffer.Empty() {
			ic.commitAndRefresh(ic.buffer.UserInput())
			return true
		}
		return false
	}

	if ic.englishMode && ic.buffer.Empty() {
		return false
	}

	if key.IsSimple() {
		if ic.buffer.Type(byte(key.Sym)) {
			ic.updatePrediction("")
			ic.updateUI()
			return true
		}
		return false
	}

	// Swallow stray non-simple keys mid-composition.
	return !ic.buffer.Empty()
}

// processCandidateKey handles interaction with a visible candidate list.
func (ic *InputContext) processCandidateKey(key Key) bool {
	if idx := selectionIndex(key); idx >= 0 {
		if idx < len(ic.mergedCandidates) {
			ic.commitAndRefresh(ic.mergedCandidates[idx])
			return true
		}
		return false
	}

	switch {
	case key.Is(KeyUp, 0):
		if ic.candidateCursor > 0 {
			ic.candidateCursor--
		}
		ic.updateUI()
		return true
	case key.Is(KeyDown, 0):
		if ic.candidateCursor < len(ic.mergedCandidates)-1 {
			ic.candidateCursor++
		}
		ic.updateUI()
		return true
	case key.Is(KeyPageUp, 0):
		if ic.candidateCursor >= pageSize {
			ic.candidateCursor -= pageSize
			ic.updateUI()
		}
		return true
	case key.Is(KeyPageDown, 0):
		if ic.candidateCursor+pageSize < len(ic.mergedCandidates) {
			ic.candidateCursor += pageSize
			ic.updateUI()
		}
		return true
	}
	return false
}

// processTab commits the ghost text, combined with the pending buffer when
// one exists, or the raw buffer when there is no ghost.
func (ic *InputContext) processTab() bool {
	if ic.ghostText != "" {
		if ic.buffer.Empty() {
			ic.commitAndRefresh(ic.ghostText)
		} else {
			ic.commitAndRefresh(ic.buffer.UserInput() + ic.ghostText)
		}
		return true
	}
	if !ic.buffer.Empty() {
		ic.commitAndRefresh(ic.buffer.UserInput())
		return true
	}
	return false
}

// Reset abandons the composition: buffer, candidates, ghost and UI are all
// cleared. Nothing is committed.
func (ic *InputContext) Reset() {
	ic.buffer.Clear()
	ic.session.ClearGhost()
	ic.ghostText = ""
	ic.predictionSource = ""
	ic.mergedCandidates = nil
	ic.candidateCursor = 0
	ic.updateUI()
}

// OnFocusOut clears any live ghost and abandons the composition when the
// field loses focus.
func (ic *InputContext) OnFocusOut() {
	ic.Reset()
}

// Refresh recomputes the prediction for the current state and repaints.
// Hosts call this on focus-in so a fresh field gets a ghost immediately.
func (ic *InputContext) Refresh() {
	ic.updatePrediction("")
	ic.updateUI()
}

// commitAndRefresh commits text to the host, clears all composition state,
// then schedules a fresh ghost prediction using the committed text as an
// additional prefix tail.
func (ic *InputContext) commitAndRefresh(text string) {
	if text == "" {
		return
	}
	ic.host.CommitString(text)
	ic.buffer.Clear()
	ic.mergedCandidates = nil
	ic.candidateCursor = 0
	ic.predictionSource = ""
	ic.ghostText = ""
	ic.session.ClearGhost()
	ic.updatePrediction(text)
	ic.updateUI()
}

func (ic *InputContext) toggleEnglishMode() {
	ic.englishMode = !ic.englishMode
	ic.Reset()
}

func (ic *InputContext) togglePredict() {
	ic.predictEnabled = !ic.predictEnabled
	ic.updatePrediction("")
	ic.updateUI()
}

// lexicalCandidates queries the backends for the current buffer code: the
// pinyin dictionary first in Chinese mode, then the compiled-in tables.
func (ic *InputContext) lexicalCandidates() []string {
	code := strings.ToLower(ic.buffer.UserInput())
	if code == "" {
		return nil
	}

	if !ic.englishMode {
		if ic.pinyin != nil {
			if candidates := ic.pinyin.Query(code, maxCandidates); len(candidates) > 0 {
				return candidates
			}
		}
		return ic.fallback.Query(code, maxCandidates)
	}
	return ic.english.Query(code, maxCandidates)
}

// buildPredictContext assembles the prefix/suffix window around the host
// caret. tail is freshly committed text the host may not report yet. Both
// are empty when the surrounding text is not valid UTF-8.
func (ic *InputContext) buildPredictContext(tail string) (prefix, suffix string) {
	prefix = tail

	text, cursor, ok := ic.host.SurroundingText()
	if !ok || text == "" {
		return prefix, ""
	}
	if !utf8.ValidString(text) {
		return "", ""
	}

	runes := []rune(text)
	if cursor < 0 {
		cursor = 0
	}
	if cursor > len(runes) {
		cursor = len(runes)
	}

	before := cursor
	if before > prefixWindow {
		before = prefixWindow
	}
	after := len(runes) - cursor
	if after > suffixWindow {
		after = suffixWindow
	}

	prefix = string(runes[cursor-before:cursor]) + tail
	suffix = string(runes[cursor : cursor+after])
	return prefix, suffix
}

// updatePrediction recomputes candidates (buffer non-empty) or the ghost
// text (buffer empty, prediction enabled).
func (ic *InputContext) updatePrediction(tail string) {
	ic.mergedCandidates = nil
	ic.candidateCursor = 0
	ic.predictionSource = ""
	ic.ghostText = ""

	if !ic.buffer.Empty() {
		ic.mergedCandidates = dedupe(ic.lexicalCandidates(), maxCandidates)
		return
	}

	if !ic.predictEnabled {
		return
	}

	prefix, suffix := ic.buildPredictContext(tail)
	if prefix == "" && suffix == "" {
		return
	}

	if ic.englishMode {
		ic.session.SetLanguage(wire.LanguageEn)
	} else {
		ic.session.SetLanguage(wire.LanguageZh)
	}
	ic.session.SetMode(wire.ModeFim)
	ic.ghostText = ic.session.OnTextChanged(prefix, suffix)

	if prediction := ic.session.LastPrediction(); prediction != nil {
		ic.predictionSource = prediction.Source
	}
}

func dedupe(in []string, limit int) []string {
	var out []string
	for _, entry := range in {
		if entry == "" {
			continue
		}
		seen := false
		for _, have := range out {
			if have == entry {
				seen = true
				break
			}
		}
		if seen {
			continue
		}
		out = append(out, entry)
		if len(out) >= limit {
			break
		}
	}
	return out
}

// updateUI pushes the current composition state to the host.
func (ic *InputContext) updateUI() {
	active := !ic.buffer.Empty() || ic.ghostText != "" || len(ic.mergedCandidates) > 0
	if !active {
		ic.host.UpdateUI(UIState{})
		return
	}

	var state UIState
	if !ic.buffer.Empty() {
		state.Preedit = append(state.Preedit, PreeditSegment{
			Text:   ic.buffer.UserInput(),
			Format: FormatHighlight,
		})
	}
	if ic.ghostText != "" {
		state.Preedit = append(state.Preedit, PreeditSegment{
			Text:   ic.ghostText,
			Format: FormatItalic,
		})
	}

	state.Candidates = ic.mergedCandidates
	state.CandidateCursor = ic.candidateCursor
	state.AuxUp = ic.SubModeLabel()
	state.AuxDown = ic.statusLine()

	ic.host.UpdateUI(state)
}

// statusLine assembles the aux status: prediction state, last source, and
// which pinyin backend answers.
func (ic *InputContext) statusLine() string {
	status := "AI:off"
	if ic.predictEnabled {
		status = "AI:on"
	}
	if ic.predictionSource != "" {
		status += " " + ic.predictionSource
	}
	if ic.pinyin != nil && ic.pinyin.Available() {
		status += " PY:libime"
	} else if !ic.englishMode {
		status += " PY:fallback"
	}
	return status
}
