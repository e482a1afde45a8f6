package envelope

import (
	"encoding/json"
	"net/http"
	"reflect"
	"testing"
	"time"

	"webhookrelay/internal/data"
)

func fixedEnv(vars map[string]string) Lookup {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

func TestStartup_DeterministicExceptTimestamp(t *testing.T) {
	env := fixedEnv(map[string]string{
		"HOSTNAME":            "srv-1",
		"RENDER_SERVICE_ID":   "srv-abc",
		"RENDER_SERVICE_NAME": "aspect",
		"RENDER_GIT_BRANCH":   "main",
		"RENDER_GIT_COMMIT":   "deadbeef",
		"PORT":                "10000",
	})

	first := Startup("aspect-ai", env, time.Unix(100, 0))
	second := Startup("aspect-ai", env, time.Unix(200, 0))

	if first.Timestamp != 100 || second.Timestamp != 200 {
		t.Fatalf("unexpected timestamps %d, %d", first.Timestamp, second.Timestamp)
	}
	second.Timestamp = first.Timestamp
	if !reflect.DeepEqual(first, second) {
		t.Errorf("expected identical envelopes, got %+v and %+v", first, second)
	}
	if first.Action != data.ActionStartup || first.Request != nil {
		t.Errorf("startup envelope carries wrong action or a request: %+v", first)
	}
}

func TestStartup_UnsetVariablesEncodeAsNull(t *testing.T) {
	env := fixedEnv(map[string]string{"RENDER_GIT_BRANCH": "main"})

	raw, err := json.Marshal(Startup("aspect-ai", env, time.Unix(1, 0)))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded struct {
		Service map[string]*string `json:"service"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(decoded.Service) != 7 {
		t.Fatalf("expected 7 service keys, got %v", decoded.Service)
	}
	if v := decoded.Service["git_branch"]; v == nil || *v != "main" {
		t.Errorf("expected git_branch=main, got %v", v)
	}
	if decoded.Service["git_commit"] != nil {
		t.Errorf("expected git_commit null, got %q", *decoded.Service["git_commit"])
	}
}

func TestDeploy_ValidJSONBodiesPassThrough(t *testing.T) {
	cases := map[string]string{
		"object": `{"ref":"main","force":true,"n":3}`,
		"array":  `[1,"two",{"three":3}]`,
		"number": `42`,
		"string": `"hello"`,
		"null":   `null`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			env := Deploy("aspect-ai", nil, time.Unix(1, 0), Request{Body: []byte(body)})

			var want, got any
			if err := json.Unmarshal([]byte(body), &want); err != nil {
				t.Fatalf("bad fixture: %v", err)
			}
			if err := json.Unmarshal(env.Request.Body, &got); err != nil {
				t.Fatalf("envelope body not JSON: %v", err)
			}
			if !reflect.DeepEqual(want, got) {
				t.Errorf("expected %v, got %v", want, got)
			}
		})
	}
}

func TestDeploy_MalformedOrAbsentBodyIsEmptyObject(t *testing.T) {
	for _, body := range []string{"", "   ", "{", `{"a":}`, "not json", `{"a":1} trailing`, "{\"ref\":\"\xff\xfe\"}"} {
		env := Deploy("aspect-ai", nil, time.Unix(1, 0), Request{Body: []byte(body)})
		if string(env.Request.Body) != "{}" {
			t.Errorf("body %q: expected {}, got %s", body, env.Request.Body)
		}
	}
}

func TestDeploy_RequestDetails(t *testing.T) {
	header := http.Header{}
	header.Set("Content-Type", "application/json")
	header.Add("X-Forwarded-For", "10.0.0.1")
	header.Add("X-Forwarded-For", "10.0.0.2")

	env := Deploy("aspect-ai", nil, time.Unix(1, 0), Request{
		ClientIP: "192.0.2.7",
		Header:   header,
		Body:     []byte(`{}`),
	})

	if env.Action != data.ActionDeploy {
		t.Errorf("expected deploy action, got %q", env.Action)
	}
	if env.Note == "" {
		t.Error("expected deploy note")
	}
	if env.Request.ClientIP != "192.0.2.7" {
		t.Errorf("unexpected client ip %q", env.Request.ClientIP)
	}
	want := map[string]string{
		"content-type":    "application/json",
		"x-forwarded-for": "10.0.0.1, 10.0.0.2",
	}
	if !reflect.DeepEqual(env.Request.Headers, want) {
		t.Errorf("expected headers %v, got %v", want, env.Request.Headers)
	}
}
