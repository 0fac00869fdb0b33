package errors

import "fmt"

type AppError struct {
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(code, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

var (
	ErrConfigLoad         = "CONFIG_LOAD_ERROR"
	ErrDatabaseConnect    = "DATABASE_CONNECT_ERROR"
	ErrRPConnect          = "RPC_CONNECT_ERROR"
	ErrBlockFetch         = "BLOCK_FETCH_ERROR"
	ErrEventParse         = "EVENT_PARSE_ERROR"
	ErrInvalidDuration    = "INVALID_DURATION_TOKEN"
	ErrDegenerateSchedule = "DEGENERATE_SCHEDULE"
	ErrScheduleValidation = "SCHEDULE_VALIDATION_ERROR"
	ErrScheduleStore      = "SCHEDULE_STORE_ERROR"
	ErrWithdrawalUpdate   = "WITHDRAWAL_UPDATE_ERROR"
	ErrReconcileRun       = "RECONCILIATION_ERROR"
	ErrReconcileUnavail   = "RECONCILIATION_UNAVAILABLE"
	ErrInvalidChain       = "INVALID_CHAIN_ERROR"
)
