// Package tagauth binds a monotonically increasing counter to an NFC tag UID
// with a truncated HMAC-SHA256 and verifies that binding on every read.
//
// A tag carries a single text payload of the form
//
//	<decimal-counter>|<lowercase-hex-mac>
//
// for example "7|a1b2c3d4". The MAC is HMAC-SHA256(key, "<uid>|<counter>")
// truncated to MACSize bytes (4 by default). The UID is read from the tag
// hardware and is never stored in the payload.
//
// Everything in this package is a pure computation over its arguments: no
// I/O, no shared mutable state, safe for concurrent use across tags.
//
// Security boundary: nothing outside the tag records the last counter seen.
// A clone of a tag taken before the legitimate tag is rewritten verifies as
// Authentic until the original advances its counter. Callers that need
// rollback detection must keep their own monotonic counter store keyed by
// TagIdentity. Each TagIdentity is an independent counter namespace even when
// many tags share one key.
//
// A 4-byte MAC gives 2^32 forgery resistance. Deployments that need more can
// widen it with WithMACSize; the wire format only changes in the MAC length.
//
// Example:
//
//	proto, _ := tagauth.NewProtocol()
//	rec, _ := proto.Issue("04A1B2C3", 0, key)
//	payload := proto.Encode(rec) // "1|xxxxxxxx"
//	outcome := proto.Verify("04A1B2C3", payload, key)
package tagauth
