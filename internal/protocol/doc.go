// Package protocol owns the client wire contract and its error categories.
//
// Ownership boundary:
// - frame: 8-byte little-endian frame header
// - schema: server-supplied protocol descriptors
// - codec: schema-driven message bodies
// - session: connection lifecycle over one websocket
package protocol
