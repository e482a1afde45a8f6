package data

import "encoding/json"

const (
	ActionStartup = "startup"
	ActionDeploy  = "deploy"
)

const (
	// StatusNoop is reported when no webhook URL is configured and nothing was sent.
	StatusNoop = 204
	// StatusTransportFailure is reported when the webhook could not be reached at all.
	// It never collides with a status a real server returned to us.
	StatusTransportFailure = 599
)

// Envelope is the JSON document POSTed to the webhook.
type Envelope struct {
	Source    string       `json:"source"`
	Action    string       `json:"action"`
	Note      string       `json:"note,omitempty"`
	Timestamp int64        `json:"timestamp"`
	Service   ServiceInfo  `json:"service"`
	Request   *RequestInfo `json:"request,omitempty"`
}

// ServiceInfo describes the running deployment. Unset variables encode as null.
type ServiceInfo struct {
	Host        *string `json:"host"`
	ServiceID   *string `json:"service_id"`
	ServiceName *string `json:"service_name"`
	GitBranch   *string `json:"git_branch"`
	GitCommit   *string `json:"git_commit"`
	Region      *string `json:"region"`
	Port        *string `json:"port"`
}

// RequestInfo captures the inbound call that triggered a deploy event.
type RequestInfo struct {
	ClientIP string            `json:"client_ip"`
	Headers  map[string]string `json:"headers"`
	Body     json.RawMessage   `json:"body"`
}

// Result is the outcome of a single relay attempt.
type Result struct {
	EventID    string `json:"-"`
	StatusCode int    `json:"status_code"`
	Text       string `json:"text,omitempty"`
	Error      string `json:"error,omitempty"`
}

// OK reports whether the attempt should be surfaced to the caller as a success.
func (r Result) OK() bool {
	return r.StatusCode == StatusNoop || r.StatusCode < 300
}

// Record is what gets serialized to Msgpack and published to Redis after a relay attempt.
type Record struct {
	EventID    string `msgpack:"event_id"`
	Action     string `msgpack:"action"`
	Timestamp  int64  `msgpack:"timestamp"`
	StatusCode int    `msgpack:"status_code"`
	Envelope   []byte `msgpack:"envelope"`
	Text       string `msgpack:"text,omitempty"`
	Error      string `msgpack:"error,omitempty"`
}
