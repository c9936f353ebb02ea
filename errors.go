package poke

import "errors"

// ErrNoDatabase indicates an operation needs the card database but none was
// configured.
var ErrNoDatabase = errors.New("poke: no card database configured")
