// Package types provides the values shared by every layer of the storage
// engine.
//
// Core Types:
//   - NodeID: 64 hex characters naming one isolated storage namespace
//   - Mode: persistent or private browsing
//   - ShutdownOutcome: how an attached plugin left its node
//   - NodeState: attachment state of a node
//
// Errors are sentinels so callers can match them with errors.Is. Disk failures
// arrive as *StorageIOError, which matches both ErrStorageIO and the cause.
//
// Example Usage:
//
//	mode, err := types.ParseMode(c.Query("mode"))
//	if err != nil {
//	    return err
//	}
//	if err := types.ValidateOrigin(origin); err != nil {
//	    return err // errors.Is(err, types.ErrInvalidOrigin)
//	}
package types
