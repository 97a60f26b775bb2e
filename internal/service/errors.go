package service

import (
	"context"
	"errors"

	"connectrpc.com/connect"

	"github.com/mmynk/picadito/internal/errs"
	"github.com/mmynk/picadito/internal/middleware"
)

// toConnectError maps domain error kinds to Connect codes. Errors that are
// already *connect.Error pass through unchanged.
func toConnectError(err error) error {
	if err == nil {
		return nil
	}
	var connectErr *connect.Error
	if errors.As(err, &connectErr) {
		return err
	}

	code := connect.CodeInternal
	switch {
	case errors.Is(err, errs.ErrValidation):
		code = connect.CodeInvalidArgument
	case errors.Is(err, errs.ErrNotFound):
		code = connect.CodeNotFound
	case errors.Is(err, errs.ErrPermission):
		code = connect.CodePermissionDenied
	case errors.Is(err, errs.ErrCapacity):
		code = connect.CodeResourceExhausted
	case errors.Is(err, errs.ErrConflict):
		code = connect.CodeAborted
	case errors.Is(err, errs.ErrTransient):
		code = connect.CodeUnavailable
	case errors.Is(err, context.Canceled):
		code = connect.CodeCanceled
	case errors.Is(err, context.DeadlineExceeded):
		code = connect.CodeDeadlineExceeded
	}
	return connect.NewError(code, err)
}

// callerID returns the authenticated user id, or Unauthenticated.
func callerID(ctx context.Context) (string, error) {
	if id := middleware.GetUserID(ctx); id != "" {
		return id, nil
	}
	return "", connect.NewError(connect.CodeUnauthenticated, errors.New("missing caller identity"))
}
