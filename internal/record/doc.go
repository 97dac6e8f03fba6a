// Package record defines every record kind an agent appends to its local log.
//
// Records are immutable. Each kind is a concrete type implementing [Entry];
// [Decode] maps a stored [Kind] back to its type with an exhaustive switch.
// Encoding is canonical CBOR, so the same record always hashes to the same
// [ID].
package record
