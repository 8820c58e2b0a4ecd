package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"room-chat-backend/internal/api/middleware"
	"room-chat-backend/internal/queue"
)

type apiFunc func(http.ResponseWriter, *http.Request) error

func WriteJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Add("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

// MakeHTTPHandleFunc runs f on the request queue behind the CORS and access
// log middlewares. An *HTTPError returned by f is rendered as JSON; any
// other error becomes a 500.
func (s *APIServer) MakeHTTPHandleFunc(f apiFunc) http.HandlerFunc {
	baseHandler := func(w http.ResponseWriter, r *http.Request) {
		errc := make(chan error, 1)

		s.requestQueueManager.EnqueueJob(queue.Job{
			Fn: func() error {
				return f(w, r)
			},
			Errc: errc,
		})

		err := <-errc
		if err == nil {
			return
		}
		var httpErr *HTTPError
		if errors.As(err, &httpErr) {
			if httpErr.ErrorLog != nil {
				log.Printf("[api] %s %s: %v", r.Method, r.URL.Path, httpErr.ErrorLog)
			}
			_ = WriteJSON(w, httpErr.StatusCode, ApiError{Error: httpErr.Message})
			return
		}
		log.Printf("[api] %s %s: %v", r.Method, r.URL.Path, err)
		_ = WriteJSON(w, http.StatusInternalServerError, ApiError{Error: "Internal server error"})
	}

	return middleware.Chain(baseHandler,
		middleware.CORS(s.cors),
		middleware.Logging(),
	)
}
