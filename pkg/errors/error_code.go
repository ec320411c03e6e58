package errors

// ErrorCode represents a unique error code for identifying different error types.
type ErrorCode int

const (
	// General errors (1-99)
	ErrCodeUnknown ErrorCode = 1

	// Validation errors (100-199)
	ErrCodeValidation           ErrorCode = 100
	ErrCodeInvalidParameter     ErrorCode = 101
	ErrCodeMissingParameter     ErrorCode = 102
	ErrCodeInvalidConfiguration ErrorCode = 103
	ErrCodeInvalidOrder         ErrorCode = 104
	ErrCodeInvalidSignal        ErrorCode = 105
	ErrCodeInvalidVersion       ErrorCode = 106

	// Data/Resource errors (200-299)
	ErrCodeAccountNotFound  ErrorCode = 200
	ErrCodeOrderNotFound    ErrorCode = 201
	ErrCodePositionNotFound ErrorCode = 202
	ErrCodeStorageFailed    ErrorCode = 203

	// Trading errors (500-599)
	ErrCodeInsufficientBalance ErrorCode = 500
	ErrCodeInvalidOrderState   ErrorCode = 501

	// Market data errors (700-799)
	ErrCodeSymbolInvalid       ErrorCode = 700
	ErrCodeSymbolNotFound      ErrorCode = 701
	ErrCodeUpstreamUnavailable ErrorCode = 702

	// Protocol errors (900-999)
	ErrCodeProtocol           ErrorCode = 900
	ErrCodeUnknownMessageType ErrorCode = 901
)

// IsValidation reports whether the code belongs to the validation category.
func (c ErrorCode) IsValidation() bool {
	return c >= 100 && c < 200
}
