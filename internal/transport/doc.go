// Package transport carries direct peer calls over HTTP.
//
// A direct call is a single POST of a JSON [Request] to a peer's
// [DirectPath], answered by a JSON [Response]. The [Client] issues calls with
// a bounded timeout and never retries; retries belong to the caller's
// scheduler. The [Server] is a gin router that hands decoded requests to a
// [Handler].
//
// # Error Handling
//
// Client errors match one of three sentinels:
//
//   - [ErrTimeout]: the call exceeded its timeout.
//   - [ErrUnreachable]: the peer could not be contacted.
//   - [ErrRejected]: the peer answered with an HTTP error status.
//
// Use errors.Is to classify them:
//
//	if errors.Is(err, transport.ErrTimeout) {
//	    // leave the recipient unsent
//	}
//
// # Proxies
//
// [WithSOCKS5] routes calls through a SOCKS5 proxy, for example a local Tor
// daemon, so peers can be addressed by onion service URLs.
//
// # Thread Safety
//
// [Client] and [Server] are safe for concurrent use.
package transport
