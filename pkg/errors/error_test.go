package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/suite"
)

type ErrorTestSuite struct {
	suite.Suite
}

func TestErrorSuite(t *testing.T) {
	suite.Run(t, new(ErrorTestSuite))
}

func (suite *ErrorTestSuite) TestNewError() {
	err := New(ErrCodeInsufficientBalance, "insufficient balance")
	suite.NotNil(err)
	suite.Equal(ErrCodeInsufficientBalance, err.Code)
	suite.Equal("insufficient balance", err.Message)
	suite.Nil(err.Cause)
}

func (suite *ErrorTestSuite) TestNewfError() {
	err := Newf(ErrCodeAccountNotFound, "account %s not found", "acc-1")
	suite.NotNil(err)
	suite.Equal(ErrCodeAccountNotFound, err.Code)
	suite.Equal("account acc-1 not found", err.Message)
	suite.Nil(err.Cause)
}

func (suite *ErrorTestSuite) TestWrapError() {
	cause := errors.New("underlying error")
	err := Wrap(ErrCodeStorageFailed, "failed to commit fill", cause)
	suite.NotNil(err)
	suite.Equal(ErrCodeStorageFailed, err.Code)
	suite.Equal("failed to commit fill", err.Message)
	suite.Equal(cause, err.Cause)
}

func (suite *ErrorTestSuite) TestWrapfError() {
	cause := errors.New("underlying error")
	err := Wrapf(ErrCodeUpstreamUnavailable, cause, "price unavailable for %s", "BTCUSDT")
	suite.NotNil(err)
	suite.Equal(ErrCodeUpstreamUnavailable, err.Code)
	suite.Equal("price unavailable for BTCUSDT", err.Message)
	suite.Equal(cause, err.Cause)
}

func (suite *ErrorTestSuite) TestErrorString() {
	err := New(ErrCodeValidation, "missing key")
	suite.Equal("[100] missing key", err.Error())
}

func (suite *ErrorTestSuite) TestErrorStringWithCause() {
	cause := errors.New("connection refused")
	err := Wrap(ErrCodeUpstreamUnavailable, "market data unavailable", cause)
	suite.Equal("[702] market data unavailable: connection refused", err.Error())
}

func (suite *ErrorTestSuite) TestUnwrap() {
	cause := errors.New("underlying error")
	err := Wrap(ErrCodeStorageFailed, "storage failed", cause)
	suite.Equal(cause, err.Unwrap())
}

func (suite *ErrorTestSuite) TestUnwrapNil() {
	err := New(ErrCodeInvalidParameter, "invalid parameter")
	suite.Nil(err.Unwrap())
}

func (suite *ErrorTestSuite) TestGetCodeFromWrapped() {
	cause := New(ErrCodeSymbolNotFound, "symbol not found")
	err := Wrap(ErrCodeSymbolInvalid, "symbol rejected", cause)
	// GetCode should return the outermost error's code
	suite.Equal(ErrCodeSymbolInvalid, GetCode(err))
}

func (suite *ErrorTestSuite) TestGetCodeThroughFmtWrap() {
	err := fmt.Errorf("ledger: %w", New(ErrCodeInsufficientBalance, "insufficient balance"))
	suite.Equal(ErrCodeInsufficientBalance, GetCode(err))
}

func (suite *ErrorTestSuite) TestGetCodeFromPlainError() {
	err := errors.New("standard error")
	suite.Equal(ErrCodeUnknown, GetCode(err))
}

func (suite *ErrorTestSuite) TestHasCode() {
	err := New(ErrCodeInvalidOrderState, "order is not pending")
	suite.True(HasCode(err, ErrCodeInvalidOrderState))
	suite.False(HasCode(err, ErrCodeOrderNotFound))
}

func (suite *ErrorTestSuite) TestIsError() {
	cause := errors.New("underlying error")
	err := Wrap(ErrCodeStorageFailed, "storage failed", cause)
	suite.True(Is(err, cause))
}

func (suite *ErrorTestSuite) TestAsError() {
	err := New(ErrCodeInvalidParameter, "invalid parameter")
	var coded *Error
	suite.True(As(err, &coded))
	suite.Equal(ErrCodeInvalidParameter, coded.Code)
}

func (suite *ErrorTestSuite) TestUserMessage() {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"nil", nil, ""},
		{"coded", New(ErrCodeInsufficientBalance, "insufficient balance"), "insufficient balance"},
		{"coded with cause", Wrap(ErrCodeStorageFailed, "failed to save", errors.New("disk full")), "failed to save"},
		{"plain", errors.New("boom"), "boom"},
		{"fmt wrapped coded", fmt.Errorf("outer: %w", New(ErrCodeAccountNotFound, "account not found")), "account not found"},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			suite.Equal(tc.expected, UserMessage(tc.err))
		})
	}
}

func (suite *ErrorTestSuite) TestErrorCodeValues() {
	suite.Equal(ErrorCode(1), ErrCodeUnknown)
	suite.Equal(ErrorCode(100), ErrCodeValidation)
	suite.Equal(ErrorCode(200), ErrCodeAccountNotFound)
	suite.Equal(ErrorCode(500), ErrCodeInsufficientBalance)
	suite.Equal(ErrorCode(700), ErrCodeSymbolInvalid)
	suite.Equal(ErrorCode(900), ErrCodeProtocol)
}

func (suite *ErrorTestSuite) TestIsValidation() {
	suite.True(ErrCodeValidation.IsValidation())
	suite.True(ErrCodeInvalidSignal.IsValidation())
	suite.False(ErrCodeAccountNotFound.IsValidation())
	suite.False(ErrCodeProtocol.IsValidation())
}
