package endpoints

import (
	"fmt"
	"net/http"
	"strings"

	"room-chat-backend/internal/api"
)

type HTTPError = api.HTTPError

type ApiMessageResponse struct {
	Message string `json:"message"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) error {
	return api.WriteJSON(w, status, v)
}

func MethodHandler(
	w http.ResponseWriter,
	r *http.Request,
	allowed map[string]func(http.ResponseWriter, *http.Request) error,
) error {
	if handler, ok := allowed[r.Method]; ok {
		return handler(w, r)
	}
	return &HTTPError{
		StatusCode: http.StatusMethodNotAllowed,
		Message:    "Method not allowed.",
		ErrorLog:   fmt.Errorf("method %s not allowed on %s", r.Method, r.URL.Path),
	}
}

// extractFromPath returns what follows prefix in path, without surrounding
// slashes.
func extractFromPath(path, prefix string) (string, error) {
	trimmed := strings.TrimPrefix(path, prefix)
	if trimmed == path {
		return "", &HTTPError{StatusCode: http.StatusNotFound, Message: "Not found", ErrorLog: fmt.Errorf("path mismatch: %s", path)}
	}
	return strings.Trim(trimmed, "/"), nil
}
