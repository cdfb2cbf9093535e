package upload

import "time"

// Classification is the retry verdict for one session refusal code.
type Classification int

const (
	Retryable Classification = iota
	Fatal
	AlreadyUploaded
)

func (c Classification) String() string {
	switch c {
	case Fatal:
		return "fatal"
	case AlreadyUploaded:
		return "already_uploaded"
	default:
		return "retryable"
	}
}

const (
	codeAlreadyUploaded = 200
	codeRejected        = 404
	codeServersSyncing  = 503
)

// RetryPolicy bounds session negotiation for one file.
type RetryPolicy struct {
	MaxAttempts int
	// Delay is fixed between attempts; there is no exponential growth.
	Delay time.Duration
	// AttemptTimeout bounds each request independently of the batch context.
	AttemptTimeout time.Duration
}

// DefaultRetryPolicy returns 10 attempts, 3 s apart, 30 s each.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 10, Delay: 3 * time.Second, AttemptTimeout: 30 * time.Second}
}

func (p RetryPolicy) attempts() int {
	if p.MaxAttempts <= 0 {
		return DefaultRetryPolicy().MaxAttempts
	}
	return p.MaxAttempts
}

// Classify maps a session refusal code to a retry verdict. In reupload-forced
// mode an "already uploaded" answer means the server has not caught up yet.
func (p RetryPolicy) Classify(code int, forceReupload bool) Classification {
	switch code {
	case codeServersSyncing:
		return Retryable
	case codeAlreadyUploaded:
		if forceReupload {
			return Retryable
		}
		return AlreadyUploaded
	case codeRejected:
		return Fatal
	default:
		return Retryable
	}
}

func knownCode(code int) bool {
	switch code {
	case codeAlreadyUploaded, codeRejected, codeServersSyncing:
		return true
	}
	return false
}
