package log

const (
	// Request
	FieldRequestID = "request_id"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldLatency   = "latency_ms"
	FieldClientIP  = "client_ip"

	// Actor
	FieldUserID    = "user_id"
	FieldUsername  = "username"
	FieldSessionID = "session_id"

	// Realtime
	FieldEvent  = "event"
	FieldRemote = "remote_addr"

	FieldService = "service"
)
