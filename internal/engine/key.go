package engine

// KeySym is an X11-style key symbol. Printable ASCII maps to itself;
// function keys use the 0xffXX range.
type KeySym uint32

// Key symbols the state machine dispatches on.
const (
	KeySpace     KeySym = 0x0020
	KeySemicolon KeySym = 0x003b
	KeyBackSpace KeySym = 0xff08
	KeyTab       KeySym = 0xff09
	KeyReturn    KeySym = 0xff0d
	KeyEscape    KeySym = 0xff1b
	KeyUp        KeySym = 0xff52
	KeyDown      KeySym = 0xff54
	KeyPageUp    KeySym = 0xff55
	KeyPageDown  KeySym = 0xff56
)

// Modifiers represents modifier key state.
type Modifiers uint8

const (
	ModShift Modifiers = 1 << iota
	ModControl
	ModAlt
	ModMeta
)

// Key is one key press as delivered by the host, already normalized: Sym
// carries the shifted symbol, so Shift is not significant for dispatch.
type Key struct {
	Sym       KeySym
	Modifiers Modifiers
}

// Is reports an exact sym+modifier match (ignoring Shift).
func (k Key) Is(sym KeySym, mods Modifiers) bool {
	return k.Sym == sym && k.Modifiers&^ModShift == mods
}

// IsSimple reports whether the key is a plain printable ASCII press with no
// Control/Alt/Meta held.
func (k Key) IsSimple() bool {
	if k.Modifiers&(ModControl|ModAlt|ModMeta) != 0 {
		return false
	}
	return k.Sym >= 0x21 && k.Sym <= 0x7e
}

// selectionKeys maps digit keys 1..9,0 to candidate indices 0..9.
var selectionKeys = [10]KeySym{'1', '2', '3', '4', '5', '6', '7', '8', '9', '0'}

// selectionIndex returns the candidate index for a bare digit key press,
// or -1.
func selectionIndex(k Key) int {
	if k.Modifiers&^ModShift != 0 {
		return -1
	}
	for i, sym := range selectionKeys {
		if k.Sym == sym {
			return i
		}
	}
	return -1
}
