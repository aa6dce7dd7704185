package marshal

import (
	_ "embed"
)

// guestSource is the companion codec evaluated inside the sandbox at bind
// time. It is the mirror of the Go codec in this package; the two share the
// wire vocabulary in internal/model.
//
//go:embed guest.js
var guestSource string

// guestDisposeSrc drops the sandbox side of the codec. Kept as a script so
// release works without reaching for individual handles.
const guestDisposeSrc = `if (typeof __tectonica !== "undefined") { __tectonica._dispose(); }`
