// Package web serves the JSON status API: host state, the tracked traffic
// listing and decoder feed health.
package web

import (
	"context"
	"net/http"
	"time"

	"github.com/goccy/go-json"
)

func writeJSON(w http.ResponseWriter, v any) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		http.Error(w, "marshal failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(b)
	_, _ = w.Write([]byte("\n"))
}

func getOnly(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h(w, r)
	}
}

func Handler(status *Status) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/status", getOnly(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, status.Snapshot(time.Now().UTC()))
	}))

	mux.HandleFunc("/api/traffic", getOnly(func(w http.ResponseWriter, r *http.Request) {
		world := status.World()
		resp := struct {
			Count   int            `json:"count"`
			Traffic []TrafficEntry `json:"traffic"`
		}{Count: len(world.Traffic), Traffic: world.Traffic}
		if resp.Traffic == nil {
			resp.Traffic = []TrafficEntry{}
		}
		writeJSON(w, resp)
	}))

	return mux
}

func Serve(ctx context.Context, listenAddr string, status *Status) error {
	if status == nil {
		status = NewStatus()
	}

	srv := &http.Server{
		Addr:              listenAddr,
		Handler:           Handler(status),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       30 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1 MiB
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
