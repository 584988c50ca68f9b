package engine

import (
	"context"
	"fmt"
	"net/http"

	"github.com/VictoriaMetrics/metrics"
)

// StartMetricsServer exposes the process-wide VictoriaMetrics registry in
// Prometheus text-exposition format on addr. It blocks; callers run it in
// its own goroutine.
func StartMetricsServer(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		metrics.WritePrometheus(w, true)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "precache metrics available at /metrics")
	})

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		srv.Close()
	}()

	GetLogger().Infof("metrics server listening on %s", addr)
	return srv.ListenAndServe()
}
