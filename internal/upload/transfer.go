package upload

import (
	"context"
	"errors"
	"fmt"

	"lockersync/internal/locker"
	"lockersync/internal/services"
)

// ErrNotFinalized means the server accepted the bytes without confirming the upload.
var ErrNotFinalized = errors.New("could not finalize upload")

// Transferrer sends final bytes to a granted session. It never retries.
type Transferrer struct {
	transport locker.Transport
}

// NewTransferrer constructs a Transferrer.
func NewTransferrer(transport locker.Transport) *Transferrer {
	return &Transferrer{transport: transport}
}

// Transfer consumes session once. Only an explicit FINALIZED state is success.
func (t *Transferrer) Transfer(ctx context.Context, session locker.Session, data []byte) error {
	ctx = services.WithStage(ctx, "transfer")
	status, err := t.transport.UploadFile(ctx, session, data)
	if err != nil {
		return fmt.Errorf("upload transfer: %w", err)
	}
	if status.State != locker.StateFinalized {
		return ErrNotFinalized
	}
	return nil
}
