package hub

import (
	"encoding/json"
)

// Message types with a fixed meaning in the protocol.
const (
	MessageTypeError = "error"
	MessageTypePing  = "ping"
	MessageTypePong  = "pong_response"

	responseSuffix = "_response"
)

// Error messages with a fixed wording clients match on.
const (
	ErrMessageInvalidFormat = "Invalid message format"
	ErrMessageUnknownType   = "Unknown message type: "
	ErrMessageInternal      = "Internal server error"
)

// InboundMessage is a client request.
type InboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
	// RequestID is echoed verbatim in the response
	RequestID json.RawMessage `json:"requestId,omitempty"`
}

// OutboundMessage is a response to one request. Broadcasts use types.Event and never carry a requestId.
type OutboundMessage struct {
	Type      string          `json:"type"`
	Data      any             `json:"data"`
	RequestID json.RawMessage `json:"requestId,omitempty"`
}

// ErrorData is the data of an error response.
type ErrorData struct {
	Message string `json:"message"`
	Code    int    `json:"code,omitempty"`
}

func responseType(requestType string) string {
	if requestType == MessageTypePing {
		return MessageTypePong
	}

	return requestType + responseSuffix
}

func errorMessage(message string, code int, requestID json.RawMessage) OutboundMessage {
	return OutboundMessage{
		Type:      MessageTypeError,
		Data:      ErrorData{Message: message, Code: code},
		RequestID: requestID,
	}
}
