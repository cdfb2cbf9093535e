package upload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"lockersync/internal/locker"
	"lockersync/internal/logging"
	"lockersync/internal/services"
)

// SessionOutcomeKind tags the result of session negotiation.
type SessionOutcomeKind int

const (
	SessionFailed SessionOutcomeKind = iota
	SessionGranted
	SessionMatched
	SessionCancelled
)

// SessionOutcome is a tagged variant: Session is set when Granted, ServerID
// when Matched, Reason and Code when Failed.
type SessionOutcome struct {
	Kind     SessionOutcomeKind
	Session  locker.Session
	ServerID string
	Reason   string
	Code     int
	Attempts int
}

// SessionNegotiator acquires a one-shot upload session with bounded retries.
type SessionNegotiator struct {
	transport locker.Transport
	policy    RetryPolicy
	force     bool
	sleep     Sleeper
	logger    *slog.Logger
}

// NewSessionNegotiator constructs a negotiator. A nil sleeper waits in real time.
func NewSessionNegotiator(transport locker.Transport, policy RetryPolicy, forceReupload bool, sleep Sleeper, logger *slog.Logger) *SessionNegotiator {
	if sleep == nil {
		sleep = SleepWithContext
	}
	return &SessionNegotiator{
		transport: transport,
		policy:    policy,
		force:     forceReupload,
		sleep:     sleep,
		logger:    logging.NewComponentLogger(logger, "upload.session"),
	}
}

// Negotiate requests a session until granted, fatally refused, or the attempt
// budget runs out. Cancellation is observed between attempts.
func (n *SessionNegotiator) Negotiate(ctx context.Context, req locker.SessionRequest) SessionOutcome {
	ctx = services.WithStage(ctx, "session")
	logger := logging.WithContext(ctx, n.logger)
	maxAttempts := n.policy.attempts()

	var lastReason string
	var lastCode int
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if ctx.Err() != nil {
			return SessionOutcome{Kind: SessionCancelled, Reason: "cancelled", Attempts: attempt - 1}
		}

		session, err := n.attempt(ctx, req)
		if err == nil {
			logger.Debug("upload session granted", logging.Int("attempt", attempt))
			return SessionOutcome{Kind: SessionGranted, Session: session, Attempts: attempt}
		}

		var refusal *locker.SessionError
		switch {
		case errors.As(err, &refusal):
			lastCode = refusal.Code
			lastReason = fmt.Sprintf("upload session refused (code %d): %s", refusal.Code, refusal.Reason)
			switch n.policy.Classify(refusal.Code, n.force) {
			case Fatal:
				return SessionOutcome{Kind: SessionFailed, Reason: lastReason, Code: refusal.Code, Attempts: attempt}
			case AlreadyUploaded:
				return SessionOutcome{Kind: SessionMatched, ServerID: serverIDFor(req.ServerID, req.Track), Code: refusal.Code, Attempts: attempt}
			}
			if !knownCode(refusal.Code) {
				logging.WarnWithContext(logger, "unrecognised session refusal code", "protocol_unknown",
					logging.Int("code", refusal.Code),
					logging.String("reason", refusal.Reason),
					logging.String(logging.FieldErrorHint, "treated as retryable"),
				)
			}
		case ctx.Err() != nil:
			return SessionOutcome{Kind: SessionCancelled, Reason: "cancelled", Attempts: attempt}
		case errors.Is(err, locker.ErrNotAuthenticated):
			return SessionOutcome{Kind: SessionFailed, Reason: err.Error(), Attempts: attempt}
		default:
			lastCode = 0
			lastReason = err.Error()
		}

		logger.Debug("upload session attempt failed",
			logging.Int("attempt", attempt),
			logging.Int("max_attempts", maxAttempts),
			logging.Int("code", lastCode),
			logging.String("reason", lastReason),
		)
		if attempt < maxAttempts {
			if err := n.sleep(ctx, n.policy.Delay); err != nil {
				return SessionOutcome{Kind: SessionCancelled, Reason: "cancelled", Attempts: attempt}
			}
		}
	}

	return SessionOutcome{
		Kind:     SessionFailed,
		Reason:   fmt.Sprintf("no upload session after %d attempts: %s", maxAttempts, lastReason),
		Code:     lastCode,
		Attempts: maxAttempts,
	}
}

func (n *SessionNegotiator) attempt(ctx context.Context, req locker.SessionRequest) (locker.Session, error) {
	if n.policy.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.policy.AttemptTimeout)
		defer cancel()
	}
	return n.transport.GetUploadSession(ctx, req)
}
