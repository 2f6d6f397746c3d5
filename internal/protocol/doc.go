// Package protocol implements the datagram format exchanged between the web
// handler and the listener: a UTF-8 JSON object with username and message.
// Malformed payloads surface as *DecodeError so callers can skip them.
package protocol
