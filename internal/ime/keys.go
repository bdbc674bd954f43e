package ime

// Virtual key codes delivered by hosts. Values follow the Windows VK_*
// numbering, which the numeric keypad mapping relies on.
const (
	VKBack      = 0x08
	VKReturn    = 0x0D
	VKShift     = 0x10
	VKControl   = 0x11
	VKEscape    = 0x1B
	VKSpace     = 0x20
	VKPrior     = 0x21
	VKNext      = 0x22
	VKEnd       = 0x23
	VKHome      = 0x24
	VKLeft      = 0x25
	VKUp        = 0x26
	VKRight     = 0x27
	VKDown      = 0x28
	VKDelete    = 0x2E
	VKNumpad0   = 0x60
	VKNumpad9   = 0x69
	VKMultiply  = 0x6A
	VKAdd       = 0x6B
	VKSeparator = 0x6C
	VKSubtract  = 0x6D
	VKDecimal   = 0x6E
	VKDivide    = 0x6F
	VKNumLock   = 0x90
)

// Modifiers represents modifier key state.
type Modifiers uint8

const (
	ModShift Modifiers = 1 << iota
	ModControl
	ModAlt
)

// Toggles represents lock key state.
type Toggles uint8

const (
	ToggleNumLock Toggles = 1 << iota
	ToggleCapsLock
)

// Key is a key event delivered by a host.
type Key struct {
	// Code is the virtual key code (VK* constants).
	Code int

	// Char is the character the key produces, or 0 for non-character keys.
	Char rune

	Modifiers Modifiers
	Toggles   Toggles
}

// Down reports whether modifier m is held.
func (k Key) Down(m Modifiers) bool {
	return k.Modifiers&m != 0
}

// Toggled reports whether lock t is on.
func (k Key) Toggled(t Toggles) bool {
	return k.Toggles&t != 0
}

// Numpad reports whether the key is on the numeric keypad digit or
// operator range.
func (k Key) Numpad() bool {
	return k.Code >= VKNumpad0 && k.Code <= VKDivide
}

// NumpadCode returns the code unit a keypad key contributes: '0'..'9' for
// the digits and ':' ';' '<' '=' '>' '?' for the operators.
func (k Key) NumpadCode() rune {
	return rune(k.Code - 48)
}

// Printable reports whether the key produces a character and no Ctrl or
// Alt modifier is held.
func (k Key) Printable() bool {
	return k.Char >= 0x20 && k.Char != 0x7F && !k.Down(ModControl|ModAlt)
}
