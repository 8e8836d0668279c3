package protocol

// OCPP 1.6 frame type values.
const (
	MessageTypeCall       = 2
	MessageTypeCallResult = 3
	MessageTypeCallError  = 4
)

// Actions handled by the link.
const (
	ActionBootNotification   = "BootNotification"
	ActionHeartbeat          = "Heartbeat"
	ActionStatusNotification = "StatusNotification"
	ActionStartTransaction   = "StartTransaction"
	ActionStopTransaction    = "StopTransaction"
)

// Registration status values.
const (
	RegistrationAccepted = "Accepted"
	RegistrationRejected = "Rejected"
)

// idTagInfo authorization status values (subset).
const (
	AuthorizationAccepted = "Accepted"
	AuthorizationInvalid  = "Invalid"
	AuthorizationExpired  = "Expired"
)
