package dispatch

import (
	"context"

	"github.com/tinywideclouds/go-apns-dispatcher/apns"
)

// Sender defines the contract for a component that delivers a single
// notification to a single Apple device. *apns.Dispatcher implements it.
type Sender interface {
	// Send makes one delivery attempt. It never retries; the returned error
	// carries everything the caller needs to decide whether to.
	Send(ctx context.Context, notification interface{}, deviceToken string, opts ...apns.SendOption) error

	// Close releases the underlying transport session.
	Close() error
}

// TokenSource yields the bearer credential attached to each request.
// *signer.Provider implements it.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}
