// Package server runs the HTTP listener of "daylog serve".
//
// The server carries no log data. It exposes the Prometheus registry and
// the health probes so the scheduled pruner can be monitored:
//
//	mux := http.NewServeMux()
//	mux.Handle("/metrics", collector.Handler())
//	health.Register(mux, checker, version, commit, buildDate)
//
//	srv := server.New(server.Config{ListenAddress: "127.0.0.1:9464"}, mux)
//	if err := srv.Start(ctx); err != nil { // blocks until ctx is done
//	    return err
//	}
//
// Handlers are wrapped in RecoveryMiddleware and LoggingMiddleware.
package server
