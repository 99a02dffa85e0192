// Package correlation propagates Correlation and Causation ids through
// the Domain Events appended to an Event Store, for tracing and debugging
// purposes.
//
// You can read more about events correlation here:
// https://blog.arkency.com/correlation-id-and-causation-id-in-evented-systems/
package correlation
