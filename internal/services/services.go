// Package services holds the business rules behind the HTTP handlers.
package services

import (
	"context"
	"errors"
	"fmt"

	"firebase.google.com/go/v4/auth"
	"github.com/anonto42/nano-social/backend/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Notifier records notifications. Delivery is best effort: implementations
// must not fail the operation that triggered them.
type Notifier interface {
	Notify(ctx context.Context, n *models.Notification)
}

// IDTokenVerifier verifies Firebase ID tokens; *auth.Client satisfies it.
type IDTokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

// parseID turns a hex id into an ObjectID. Malformed ids cannot match any
// document, so they are reported with the resource's not-found message.
func parseID(hex, notFound string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		return primitive.NilObjectID, models.NewNotFoundError(notFound)
	}
	return id, nil
}

// ensureOwner rejects callers that are not the resource's author.
func ensureOwner(owner, caller primitive.ObjectID, message string) error {
	if owner != caller {
		return models.NewForbiddenError(message)
	}
	return nil
}

// storeFailure keeps not-found and duplicate outcomes visible to callers and
// hides everything else behind an internal error.
func storeFailure(op string, err error, notFound string) error {
	switch {
	case errors.Is(err, models.ErrNotFound) && notFound != "":
		return models.NewNotFoundError(notFound)
	case errors.Is(err, models.ErrDuplicate):
		return models.ErrDuplicate
	default:
		return models.NewInternalError(fmt.Errorf("%s: %w", op, err))
	}
}
