// Package relay implements a lossy bidirectional UDP relay.
//
// A Relay owns one bound UDP socket and sits between a single client and a
// fixed target (server) address. Every datagram it receives is:
//
//  1. classified: datagrams whose sender equals the target travel
//     server -> client, everything else travels client -> server
//  2. used for client learning: the first sender that is not the target
//     becomes the known client for the rest of the relay's life
//  3. subjected to the loss policy: one fresh draw per datagram, forwarded
//     only when the draw is strictly greater than the loss rate
//  4. forwarded byte-for-byte to the target, or to the known client for
//     server traffic. Server traffic that arrives before any client is
//     known is discarded with a "no client yet, skipping" notice.
//
// # Console lines
//
// The relay writes plain status lines to its output writer. Drops are
// always reported ("client -> server (dropped)", "server -> client
// (dropped)"); forwarded datagrams are reported only in debug mode
// ("client -> server", "server -> client").
//
// # Errors
//
// Receive and send failures are fatal and end Run with an error wrapping
// ErrReceive or ErrSend. Cancelling the context passed to Run closes the
// socket and makes Run return nil.
//
// # Thread Safety
//
// Run processes one datagram at a time on the calling goroutine. Client and
// Stats are safe to call concurrently with Run.
package relay
