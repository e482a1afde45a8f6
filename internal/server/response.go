package server

import (
	"encoding/json"
	"io"
	"net/http"

	"webhookrelay/internal/data"
)

type deployResponse struct {
	OK      bool        `json:"ok"`
	EventID string      `json:"event_id,omitempty"`
	Detail  string      `json:"detail,omitempty"`
	Relay   data.Result `json:"relay"`
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// ioReadAllLimit reads at most limit bytes and reports whether more were available.
func ioReadAllLimit(r io.Reader, limit int64) ([]byte, bool, error) {
	b, err := io.ReadAll(io.LimitReader(r, limit+1))
	if int64(len(b)) > limit {
		return b[:limit], true, err
	}
	return b, false, err
}
