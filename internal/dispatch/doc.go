// Package dispatch runs the batches of one publish cycle concurrently and
// merges their outcomes.
//
// A failing batch never cancels its siblings: every batch runs to completion
// (success or failure) unless the cycle deadline elapses first, in which case
// the remaining batches are cancelled through their context and whatever was
// delivered so far is reported. Per-batch failures are logged and folded into
// [Outcome.Failed]; they are never returned as an error.
//
//	d := dispatch.New(dispatch.WithLogger(logger))
//	delivered := d.SendAll(ctx, batches, len(samples), 10*time.Second)
//	if delivered < len(samples) {
//	    // the cycle did not fully succeed
//	}
package dispatch
