// internal/gateway/errors.go
package gateway

import "errors"

var (
	// ErrNotOwner rejects a privileged command from a non-owner.
	ErrNotOwner = errors.New("not a game owner")

	// ErrUnknownAction rejects an action kind the gateway does not know.
	ErrUnknownAction = errors.New("unknown action kind")
)
