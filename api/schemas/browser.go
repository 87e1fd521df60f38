package schemas

// NavigationEvent is produced for every outbound navigation the content requests.
type NavigationEvent struct {
	URL            string         `json:"url"`
	Classification Classification `json:"classification"`
}

// DiagnosticMessage is the wire format of the content-to-host channel.
type DiagnosticMessage struct {
	Type MessageKind `json:"type"`
	Msg  string      `json:"msg"`
}

// Notice is a user-visible message raised by the host.
type Notice struct {
	AttemptID string `json:"attempt_id"`
	Message   string `json:"message"`
	URL       string `json:"url,omitempty"`
}

// Completion signals that a payment attempt reached its success page.
type Completion struct {
	AttemptID   string            `json:"attempt_id"`
	URL         string            `json:"url"`
	Transaction TransactionRecord `json:"transaction"`
}
