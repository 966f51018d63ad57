package httpx

import (
	"io"
	"net/http"
)

const (
	healthResponse  = `{"status":"ok"}`
	stoppedResponse = `{"status":"stopped"}`
)

// healthHandler reports 200 while the status stream is running and 503 once it has stopped.
func healthHandler(stream StatusStream) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code, body := http.StatusOK, healthResponse
		if stream != nil && stopped(stream) {
			code, body = http.StatusServiceUnavailable, stoppedResponse
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		if r.Method == http.MethodHead {
			return
		}
		if _, err := io.WriteString(w, body); err != nil {
			// Nothing more to do if the client connection is gone.
			return
		}
	}
}

func stopped(stream StatusStream) bool {
	select {
	case <-stream.Done():
		return true
	default:
		return false
	}
}
