package service

import (
	"errors"
	"log/slog"

	"connectrpc.com/connect"

	"github.com/mmynk/residuals/internal/calculator"
	"github.com/mmynk/residuals/internal/cascade"
	"github.com/mmynk/residuals/internal/participant"
	"github.com/mmynk/residuals/internal/reconcile"
	"github.com/mmynk/residuals/internal/storage"
	"github.com/mmynk/residuals/internal/workflow"
)

// errInvalidRequest marks malformed request messages.
var errInvalidRequest = errors.New("invalid request")

// toConnectError maps domain errors onto Connect codes. Unknown errors are
// logged and reported as internal.
func toConnectError(op string, err error) error {
	var connectErr *connect.Error
	if errors.As(err, &connectErr) {
		return connectErr
	}

	switch {
	case errors.Is(err, errInvalidRequest),
		errors.Is(err, participant.ErrMissingPartnerIdentifier),
		errors.Is(err, participant.ErrInvalidParticipant),
		errors.Is(err, calculator.ErrSplitSum),
		errors.Is(err, workflow.ErrEmptyTargets),
		errors.Is(err, cascade.ErrEmptyMID):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, storage.ErrNotFound):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.Is(err, cascade.ErrMIDConflict), errors.Is(err, storage.ErrConflict):
		return connect.NewError(connect.CodeAlreadyExists, err)
	case errors.Is(err, workflow.ErrNotPending), errors.Is(err, reconcile.ErrLedgerDisabled):
		return connect.NewError(connect.CodeFailedPrecondition, err)
	}

	slog.Error(op+" failed", "error", err)
	return connect.NewError(connect.CodeInternal, err)
}
