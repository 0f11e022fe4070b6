package deepstream

// TopicRPC labels every message of the remote-procedure-call protocol.
const TopicRPC = "RPC"

// RPC actions carried on the wire.
const (
	ActionProvide         = "PROVIDE"
	ActionProvideAck      = "PROVIDE_ACK"
	ActionUnprovide       = "UNPROVIDE"
	ActionUnprovideAck    = "UNPROVIDE_ACK"
	ActionRequest         = "REQUEST"
	ActionAccept          = "ACCEPT"
	ActionResponse        = "RESPONSE"
	ActionRequestError    = "REQUEST_ERROR"
	ActionReject          = "REJECT"
	ActionPermissionError = "MESSAGE_PERMISSION_ERROR"
	ActionMessageDenied   = "MESSAGE_DENIED"
)

// Timeout and diagnostic event labels. The timeout events double as the
// Action of the synthetic messages the TimeoutRegistry emits when a timer
// expires.
const (
	EventAckTimeout           = "ACK_TIMEOUT"
	EventAcceptTimeout        = "ACCEPT_TIMEOUT"
	EventResponseTimeout      = "RESPONSE_TIMEOUT"
	EventUnknownCorrelationID = "UNKNOWN_CORRELATION_ID"
)

// Message is the envelope exchanged with the connection. CorrelationID ties
// every ACCEPT/RESPONSE/REQUEST_ERROR back to the REQUEST that started the
// call; PROVIDE/UNPROVIDE traffic is identified by Name alone.
// OriginalAction is set on permission denials and on synthetic timeout
// events to name the outbound message they refer to.
type Message struct {
	Topic          string      `json:"topic"`
	Action         string      `json:"action"`
	Name           string      `json:"name,omitempty"`
	Data           interface{} `json:"parsedData,omitempty"`
	CorrelationID  string      `json:"correlationId,omitempty"`
	OriginalAction string      `json:"originalAction,omitempty"`
	IsAck          bool        `json:"isAck,omitempty"`
}
