// Package envelope builds the JSON documents sent to the webhook. Every
// function here is pure: the environment and the clock are passed in.
package envelope

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"webhookrelay/internal/data"
)

const deployNote = "Triggered from /deploy endpoint"

// Lookup reads a single environment variable. os.LookupEnv satisfies it.
type Lookup func(key string) (string, bool)

// Request is the part of an inbound call that is copied into a deploy envelope.
type Request struct {
	ClientIP string
	Header   http.Header
	Body     []byte
}

// Startup builds the envelope announcing that the process came up.
func Startup(source string, env Lookup, now time.Time) data.Envelope {
	return data.Envelope{
		Source:    source,
		Action:    data.ActionStartup,
		Timestamp: now.Unix(),
		Service:   Service(env),
	}
}

// Deploy builds the envelope for a manual deploy trigger.
func Deploy(source string, env Lookup, now time.Time, req Request) data.Envelope {
	return data.Envelope{
		Source:    source,
		Action:    data.ActionDeploy,
		Note:      deployNote,
		Timestamp: now.Unix(),
		Service:   Service(env),
		Request: &data.RequestInfo{
			ClientIP: req.ClientIP,
			Headers:  Headers(req.Header),
			Body:     Body(req.Body),
		},
	}
}

// Service snapshots the deployment metadata exported by the hosting platform.
func Service(env Lookup) data.ServiceInfo {
	return data.ServiceInfo{
		Host:        lookup(env, "HOSTNAME"),
		ServiceID:   lookup(env, "RENDER_SERVICE_ID"),
		ServiceName: lookup(env, "RENDER_SERVICE_NAME"),
		GitBranch:   lookup(env, "RENDER_GIT_BRANCH"),
		GitCommit:   lookup(env, "RENDER_GIT_COMMIT"),
		Region:      lookup(env, "RENDER_REGION"),
		Port:        lookup(env, "PORT"),
	}
}

// Headers flattens h into lower-cased names; repeated values are joined with ", ".
func Headers(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for name, values := range h {
		out[strings.ToLower(name)] = strings.Join(values, ", ")
	}
	return out
}

// Body returns raw when it is a valid UTF-8 JSON document of any shape and
// an empty object otherwise. A caller sending garbage still gets relayed.
func Body(raw []byte) json.RawMessage {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || !utf8.Valid(trimmed) || !json.Valid(trimmed) {
		return json.RawMessage(`{}`)
	}
	return append(json.RawMessage(nil), trimmed...)
}

func lookup(env Lookup, key string) *string {
	if env == nil {
		return nil
	}
	v, ok := env(key)
	if !ok {
		return nil
	}
	return &v
}
