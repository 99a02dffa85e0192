// Package checkpoint exposes the Checkpointer interface, used to checkpoint,
// or save, the current position of a named Subscription, so that it might
// survive application restarts without reprocessing Events.
package checkpoint
