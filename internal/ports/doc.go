// Package ports defines the interfaces that connect the publishing core to
// infrastructure adapters.
//
//   - [HTTPClient]: the transport capability; *http.Client satisfies it
//   - [SampleSource]: where a publish cycle gets its samples from
//
// The core packages (dispatch, collector, publisher, app) depend only on these
// interfaces, so tests substitute in-memory fakes and the CLI wires real ones.
package ports
