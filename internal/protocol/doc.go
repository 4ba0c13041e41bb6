// Package protocol owns the typed device message contract carried inside
// frame records.
//
// Ownership boundary:
// - message variants and their enums
// - record -> message decode (total, never panics)
// - message -> record encode
//
// Framing and resynchronization live in protocol/frame; the per-type length
// table lives in protocol/schema.
package protocol
