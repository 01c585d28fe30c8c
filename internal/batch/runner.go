// Package batch resolves bounded batches of phone numbers through an open
// network session, classifying each result independently.
package batch

import (
	"context"
	"errors"

	"github.com/contact-verifier/internal/resolver"
	"github.com/contact-verifier/internal/types"
)

const unknownErrorMessage = "unknown error"

// Run resolves each phone through the session and returns one outcome per
// input, in input order. A failure on one phone never stops the rest of the
// batch. Classification precedence: confirmed match, then the network's
// not-registered signal, then a generic error with the provider's message.
func Run(ctx context.Context, sess resolver.Session, phones []string) []types.Outcome {
	outcomes := make([]types.Outcome, len(phones))

	for i, phone := range phones {
		outcomes[i] = resolveOne(ctx, sess, phone)
	}

	return outcomes
}

func resolveOne(ctx context.Context, sess resolver.Session, phone string) types.Outcome {
	outcome := types.Outcome{Phone: phone}

	res, err := sess.Resolve(ctx, phone)
	switch {
	case err == nil && res != nil && res.Found:
		outcome.Found = true
		outcome.Username = res.Username
		outcome.FirstName = res.FirstName
		outcome.LastName = res.LastName
	case errors.Is(err, resolver.ErrNotRegistered):
		outcome.Error = err.Error()
	case err != nil:
		msg := err.Error()
		if msg == "" {
			msg = unknownErrorMessage
		}
		outcome.Error = msg
	default:
		// Resolved without error but no match reported.
		outcome.Error = resolver.ErrNotRegistered.Error()
	}

	return outcome
}

// CountFound returns the number of confirmed matches in a batch of outcomes
func CountFound(outcomes []types.Outcome) int {
	found := 0
	for _, oc := range outcomes {
		if oc.Found {
			found++
		}
	}
	return found
}
