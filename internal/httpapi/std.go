package httpapi

import "net/http"

func newStdRouter(h *Handlers) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /{$}", h.Explorer)
	mux.Handle("POST /{$}", h.GraphQL)
	mux.Handle("GET "+PathCompat, h.Compat)
	mux.Handle("POST "+PathCompat, h.Compat)
	if h.Health != nil {
		mux.Handle("GET "+PathHealth, h.Health)
	}
	if h.Metrics != nil {
		mux.Handle("GET "+PathMetrics, h.Metrics)
	}
	return mux
}
