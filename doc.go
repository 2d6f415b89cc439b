// Package classic implements the Minecraft Classic wire protocol (version 7)
// and its Classic Protocol Extension (CPE) negotiation layer.
//
// It provides both endpoints of a session: ServerSession, the client-side
// view of a connection to a remote world server, and ClientSession, the
// server-side view of a connection from a player. Application code supplies
// a handler for each role and drives the session's frame loop; the codec,
// handshake state machine, and bulk level transfer live here.
package classic
