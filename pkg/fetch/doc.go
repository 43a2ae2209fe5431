// Package fetch performs single, synchronous HTTP transfers with full wire
// telemetry. A Request describes the transfer declaratively; Perform drives
// it through an injected Engine and returns a Response accumulating body,
// status, byte counters, raw header blocks, the TLS certificate chain and a
// timestamped trace log.
//
// Perform never returns an error: transport failures land in Response.Code
// and HTTP failures in Response.StatusCode, and the two must be checked
// independently. Each transfer uses a fresh engine handle; there is no
// connection reuse across calls.
package fetch
