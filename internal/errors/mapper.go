// internal/errors/mapper.go
package errors

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"gorm.io/gorm"
)

// Domain error taxonomy. Storage errors bubble up unchanged to the service
// layer, which wraps them into one of these before they cross the API
// boundary.
var (
	// ErrNotFound: no preference/rating/profile row for the id.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateAction: a like/dislike is already recorded for the pair.
	ErrDuplicateAction = errors.New("action already recorded for this pair")

	// ErrAlreadyMatched: the canonical pair already has a match row.
	// Idempotent re-trigger, treated as success by callers.
	ErrAlreadyMatched = errors.New("pair is already matched")

	// ErrNoLocation: the viewer has no geolocation recorded.
	ErrNoLocation = errors.New("no location recorded for user")

	// ErrUpstreamUnavailable: profile provider or event queue unreachable.
	ErrUpstreamUnavailable = errors.New("upstream service unavailable")

	// ErrInvariantViolation: canonical ordering broken. Indicates a store
	// bug and fails loudly.
	ErrInvariantViolation = errors.New("invariant violation")
)

// Map converts domain/repo/infra errors into gRPC-friendly status errors.
// Keeps service layer clean by centralizing error mapping.
func Map(err error) error {
	if err == nil {
		return nil
	}

	// already a status error (validation helpers, or a nested service call
	// that mapped before returning): keep its code instead of re-wrapping
	if _, ok := status.FromError(err); ok {
		return err
	}

	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		return status.Error(codes.NotFound, "record not found")

	case errors.Is(err, ErrDuplicateAction):
		return status.Error(codes.AlreadyExists, "action already recorded")

	case errors.Is(err, ErrAlreadyMatched):
		return status.Error(codes.AlreadyExists, "pair already matched")

	case errors.Is(err, ErrNoLocation):
		return status.Error(codes.FailedPrecondition, "no location recorded")

	case errors.Is(err, ErrUpstreamUnavailable):
		return status.Error(codes.Unavailable, "upstream unavailable")

	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, "request timed out")

	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "request was canceled")

	default:
		// fallback → bubble up error message for debugging
		return status.Error(codes.Internal, err.Error())
	}
}

// InvalidArgument creates a gRPC InvalidArgument error.
// Use this in service layer for bad input validation.
func InvalidArgument(msg string) error {
	return status.Error(codes.InvalidArgument, msg)
}
