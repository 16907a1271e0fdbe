package engine

// TextFormat flags one preedit segment's styling.
type TextFormat uint8

const (
	FormatNone TextFormat = 0
	// FormatHighlight marks the composing buffer segment.
	FormatHighlight TextFormat = 1 << iota
	// FormatItalic marks the ghost segment.
	FormatItalic
)

// PreeditSegment is one styled run of inline text.
type PreeditSegment struct {
	Text   string
	Format TextFormat
}

// UIState is what the host should render after a state transition. A zero
// UIState means "hide everything".
type UIState struct {
	Preedit         []PreeditSegment
	Candidates      []string
	CandidateCursor int
	AuxUp           string
	AuxDown         string
}

// Active reports whether anything is visible.
func (u UIState) Active() bool {
	return len(u.Preedit) > 0 || len(u.Candidates) > 0
}

// Host is the surface the editing core consumes from the platform. All
// calls happen on the host's UI/edit thread.
type Host interface {
	// CommitString inserts text into the document at the caret.
	CommitString(text string)

	// SurroundingText returns the document text around the caret and the
	// caret position as a code-point index. ok is false when the host
	// cannot provide it.
	SurroundingText() (text string, cursor int, ok bool)

	// UpdateUI replaces the rendered preedit/candidate/aux state.
	UpdateUI(state UIState)
}
