package server

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// CallbackServer hosts a [CallbackHandler] on a local address for the
// duration of one authorization flow.
type CallbackServer struct {
	server  *http.Server
	handler *CallbackHandler
}

// NewCallbackServer creates a server for the given listen address and state
// token. The handler is registered at /callback.
func NewCallbackServer(addr, state string) *CallbackServer {
	handler := NewCallbackHandler(state)
	mux := http.NewServeMux()
	mux.Handle("/callback", handler)

	return &CallbackServer{
		server:  &http.Server{Addr: addr, Handler: mux},
		handler: handler,
	}
}

// Start begins serving in a background goroutine. Listen errors other than
// graceful shutdown surface on the returned channel.
func (s *CallbackServer) Start() <-chan error {
	errChan := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
		close(errChan)
	}()
	return errChan
}

// Result exposes the handler's result channel.
func (s *CallbackServer) Result() <-chan CallbackResult {
	return s.handler.Result()
}

// Shutdown stops the server, allowing in-flight responses a short grace
// period to finish.
func (s *CallbackServer) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}
