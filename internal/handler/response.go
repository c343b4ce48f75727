package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

type envelope struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// respond writes a success envelope.
func respond(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, envelope{Code: status, Message: message, Data: data})
}

// fail writes an error envelope for err. Unknown errors are logged and
// reported as 500 without leaking their text.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	status, message := classify(err)
	if status >= http.StatusInternalServerError {
		zctx.From(r.Context()).Error("Request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	writeJSON(w, status, envelope{Code: status, Message: message})
}

func failStatus(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, envelope{Code: status, Message: message})
}
