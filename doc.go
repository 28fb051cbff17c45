// Package tls13srv implements the server-side TLS 1.3 handshake state
// machine and AEAD record layer described by RFC 8446: Hello Retry, PSK
// resumption, 0-RTT early data, and post-handshake close, terminated over
// an arbitrary transport.
//
// Certificate parsing/verification, the underlying AEAD primitives' key
// material, transport I/O, and ticket/PSK persistence are all external
// collaborators reached through small interfaces (certstore, record.AeadCipher,
// ticket.Cipher, replay.Cache) rather than built into the core.
package tls13srv
