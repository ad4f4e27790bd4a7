// Package provider is the gateway to the external SMS provider.
package provider

import "context"

// Provider sends a text body from one E.164 number to another and
// returns the provider-assigned delivery ids (one per SMS segment).
// Implementations are called at most once per message; the caller never
// retries a failed send.
type Provider interface {
	Send(ctx context.Context, from, to, body string) ([]string, error)
}

// Noop discards every send. Used in development and as the default
// backend.
type Noop struct{}

func (Noop) Send(ctx context.Context, from, to, body string) ([]string, error) {
	return nil, nil
}
