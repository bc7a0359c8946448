// Package auth implements the shared-secret access gate. Authorizing a
// subject enrolls it in the subscriber set, which doubles as the durable
// record of who passed the gate.
package auth

import (
	"context"
	"crypto/subtle"
	"fmt"
)

// SubscriberStore is the slice of the ledger store the gate needs.
type SubscriberStore interface {
	AddSubscriber(ctx context.Context, subjectID int64) error
	IsSubscriber(ctx context.Context, subjectID int64) (bool, error)
}

type SecretGate struct {
	secret string
	store  SubscriberStore
}

func NewSecretGate(secret string, store SubscriberStore) *SecretGate {
	return &SecretGate{secret: secret, store: store}
}

// Check verifies the presented secret in constant time.
func (g *SecretGate) Check(secret string) bool {
	return subtle.ConstantTimeCompare([]byte(secret), []byte(g.secret)) == 1
}

func (g *SecretGate) IsAuthorized(ctx context.Context, subjectID int64) (bool, error) {
	ok, err := g.store.IsSubscriber(ctx, subjectID)
	if err != nil {
		return false, fmt.Errorf("check authorization: %w", err)
	}
	return ok, nil
}

func (g *SecretGate) Authorize(ctx context.Context, subjectID int64) error {
	if err := g.store.AddSubscriber(ctx, subjectID); err != nil {
		return fmt.Errorf("authorize subject: %w", err)
	}
	return nil
}
