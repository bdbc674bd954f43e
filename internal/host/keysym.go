package host

import (
	"unicode"

	"threecorner/internal/ime"
)

// X11 keysyms delivered by IBus.
const (
	xkBackSpace = 0xff08
	xkReturn    = 0xff0d
	xkEscape    = 0xff1b
	xkHome      = 0xff50
	xkLeft      = 0xff51
	xkUp        = 0xff52
	xkRight     = 0xff53
	xkDown      = 0xff54
	xkPrior     = 0xff55
	xkNext      = 0xff56
	xkEnd       = 0xff57
	xkKPEnter   = 0xff8d
	xkKPMul     = 0xffaa
	xkKP0       = 0xffb0
	xkKP9       = 0xffb9
	xkKPDivide  = 0xffaf
	xkShiftL    = 0xffe1
	xkShiftR    = 0xffe2
	xkControlL  = 0xffe3
	xkControlR  = 0xffe4
	xkNumLock   = 0xff7f
	xkDelete    = 0xffff
)

// IBus modifier state bits.
const (
	ibusShiftMask   uint32 = 1 << 0
	ibusLockMask    uint32 = 1 << 1
	ibusControlMask uint32 = 1 << 2
	ibusMod1Mask    uint32 = 1 << 3 // Alt
	ibusMod2Mask    uint32 = 1 << 4 // NumLock
	ibusReleaseMask uint32 = 1 << 30
)

var namedKeysyms = map[uint32]int{
	xkBackSpace: ime.VKBack,
	xkReturn:    ime.VKReturn,
	xkKPEnter:   ime.VKReturn,
	xkEscape:    ime.VKEscape,
	xkHome:      ime.VKHome,
	xkLeft:      ime.VKLeft,
	xkUp:        ime.VKUp,
	xkRight:     ime.VKRight,
	xkDown:      ime.VKDown,
	xkPrior:     ime.VKPrior,
	xkNext:      ime.VKNext,
	xkEnd:       ime.VKEnd,
	xkDelete:    ime.VKDelete,
	xkShiftL:    ime.VKShift,
	xkShiftR:    ime.VKShift,
	xkControlL:  ime.VKControl,
	xkControlR:  ime.VKControl,
	xkNumLock:   ime.VKNumLock,
}

// TranslateKeysym converts an IBus key event into an engine key. It
// reports whether the event is a release and whether the key is one the
// engine understands.
func TranslateKeysym(keyval, state uint32) (k ime.Key, up bool, ok bool) {
	up = state&ibusReleaseMask != 0

	if state&ibusShiftMask != 0 {
		k.Modifiers |= ime.ModShift
	}
	if state&ibusControlMask != 0 {
		k.Modifiers |= ime.ModControl
	}
	if state&ibusMod1Mask != 0 {
		k.Modifiers |= ime.ModAlt
	}
	if state&ibusMod2Mask != 0 {
		k.Toggles |= ime.ToggleNumLock
	}
	if state&ibusLockMask != 0 {
		k.Toggles |= ime.ToggleCapsLock
	}

	// KP_Multiply..KP_Divide share the order of VKMultiply..VKDivide.
	switch {
	case keyval >= xkKP0 && keyval <= xkKP9:
		k.Code = ime.VKNumpad0 + int(keyval-xkKP0)
		k.Char = rune('0' + keyval - xkKP0)
		return k, up, true
	case keyval >= xkKPMul && keyval <= xkKPDivide:
		k.Code = ime.VKMultiply + int(keyval-xkKPMul)
		k.Char = []rune("*+,-./")[keyval-xkKPMul]
		return k, up, true
	}

	if code, found := namedKeysyms[keyval]; found {
		k.Code = code
		return k, up, true
	}

	r := keyvalToRune(keyval)
	if r == 0 {
		return k, up, false
	}
	k.Char = r
	k.Code = charCode(r)
	return k, up, true
}

// charCode is the virtual key of a character key.
func charCode(r rune) int {
	switch {
	case r == ' ':
		return ime.VKSpace
	case r < 0x80 && unicode.IsLetter(r):
		return int(unicode.ToUpper(r))
	case r >= '0' && r <= '9':
		return int(r)
	}
	return 0
}

// keyvalToRune converts an X11 keysym to a Unicode rune.
func keyvalToRune(keyval uint32) rune {
	switch {
	case keyval >= 0x20 && keyval <= 0x7e:
		return rune(keyval)
	case keyval >= 0xa0 && keyval <= 0xff:
		return rune(keyval)
	case keyval >= 0x01000000:
		return rune(keyval - 0x01000000)
	}
	return 0
}
