package speechgate

import (
	"errors"
	"fmt"
)

// Sentinel errors.
var (
	ErrUnintelligible  = errors.New("speechgate: could not understand audio")
	ErrServiceRequest  = errors.New("speechgate: speech service request failed")
	ErrEngineTimeout   = errors.New("speechgate: engine timed out")
	ErrAuthFailed      = errors.New("speechgate: authentication failed")
	ErrRateLimited     = errors.New("speechgate: rate limited by speech service")
	ErrInvalidClip     = errors.New("speechgate: invalid audio clip")
	ErrInvalidInput    = errors.New("speechgate: invalid input")
	ErrLedgerCorrupt   = errors.New("speechgate: ledger state is malformed")
	ErrPersist         = errors.New("speechgate: ledger persist failed")
	ErrInvalidCharge   = errors.New("speechgate: invalid charge")
	ErrChargeQueueFull = errors.New("speechgate: charge queue full")
	ErrChargerClosed   = errors.New("speechgate: charger closed")
)

// EngineError wraps a transcription failure with dispatch context.
type EngineError struct {
	Err       error
	Engine    string
	Backend   Backend
	RequestID string
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("speechgate: engine=%s backend=%s request=%s: %v",
		e.Engine, e.Backend, e.RequestID, e.Err)
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

// IsEngineFailure returns true if err is a recoverable transcription failure.
// Such failures degrade the outcome to "no match" instead of failing the request.
func IsEngineFailure(err error) bool {
	var ee *EngineError
	if errors.As(err, &ee) {
		return true
	}
	return errors.Is(err, ErrUnintelligible) ||
		errors.Is(err, ErrServiceRequest) ||
		errors.Is(err, ErrEngineTimeout) ||
		errors.Is(err, ErrAuthFailed) ||
		errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrInvalidClip)
}
