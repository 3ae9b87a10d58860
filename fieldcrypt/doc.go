// Package fieldcrypt provides reversible authenticated encryption for short
// text fields stored at rest: TOTP secrets, display names, notes.
//
// Which fields are encrypted is declared statically by the owning service;
// there is no reflective payload walking. The codec itself is value-agnostic
// and deterministic about its encoding, so a stored value can always be
// classified with [IsEncrypted].
package fieldcrypt
