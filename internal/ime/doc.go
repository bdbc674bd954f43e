// Package ime implements a table-driven composition engine for the
// threecorner (三角編號) input method.
//
// # Architecture Overview
//
// An Engine turns key events into committed Chinese text. Code units come
// from the numeric keypad: with NumLock on, a keypad key contributes
// rune(VK-48), so the digits give '0'..'9' and the operators give
// ':' ';' '<' '=' '>' '?'. The decimal key types the wildcard marker '*'.
//
//	Host key event
//	     ↓
//	FilterKeyDown ──false──→ passed to the application
//	     ↓ true
//	OnKeyDown
//	     ├─ keypad code ──→ append / overflow / select ──→ lookup
//	     ├─ Enter ────────→ pad with '0' ──→ lookup
//	     └─ policy keys ──→ Backspace, Escape, Space, paging, menu, ...
//	     ↓
//	one candidate → commit        several → candidate list
//
// # Composition
//
// The composition holds at most MaxCharLength code units. When it is full,
// another code removes the trailing unit instead of being appended; the
// display loses as many runes as the unit's key name is wide. Once the
// composition is full it is looked up: a single candidate is committed
// automatically, several are listed and picked with the selection keys.
// A composition containing the wildcard marker is expanded with a wildcard
// query of at most nine results.
//
// Enter completes a short composition by padding it with '0' up to
// MaxCharLength. If the padded code has no entry the padding is removed
// again.
//
// # Commit Strategies
//
//	┌───────────────┬──────────────────────────────────────────────────┐
//	│ Strategy      │ Behavior                                         │
//	├───────────────┼──────────────────────────────────────────────────┤
//	│ DirectCommit  │ every commit goes to Host.Commit                 │
//	│ BufferCommit  │ commits edit an inline buffer, flushed on Enter; │
//	│               │ each rune remembers its code for reselection     │
//	└───────────────┴──────────────────────────────────────────────────┘
//
// # Tables
//
// Tables come from a Tables service (normally *cin.Registry). Lookups never
// spin: a table that is still loading is awaited with the LoadTimeout
// deadline, a missing primary table is returned as an error wrapping
// cin.ErrTableMissing, and a code without an entry yields no candidates.
//
// # Messages
//
// Reverse lookup, wildcard and homophone results produce short messages.
// Hosts with InlineMessages show reverse-lookup codes at once; everything
// else is shown by OnKeyUp when the key is released.
package ime
