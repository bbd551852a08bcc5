// Command gatewaysim serves the simulated gateway over a websocket so the
// dashboard can be run against a network transport.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/zappabad/optionboard/internal/gateway"
	"github.com/zappabad/optionboard/internal/gateway/sim"
	"github.com/zappabad/optionboard/internal/gateway/ws"
	"github.com/zappabad/optionboard/pkg/logger"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:7498", "listen address")
	path := flag.String("path", "/ws", "websocket path")
	tick := flag.Duration("tick", 250*time.Millisecond, "market data tick interval")
	seed := flag.Int64("seed", 1, "random seed")
	level := flag.String("log-level", "info", "log level")
	flag.Parse()

	log := logger.New(logger.Config{Level: *level, Pretty: true})

	cfg := sim.DefaultConfig()
	cfg.TickInterval = *tick
	cfg.Seed = *seed

	srv := ws.NewServer(func() gateway.Transport {
		return sim.New(cfg, log)
	}, log)

	mux := http.NewServeMux()
	mux.Handle(*path, srv)
	httpSrv := &http.Server{Addr: *addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		log.Info().Str("addr", *addr).Str("path", *path).Msg("gateway simulator listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("listen failed")
			os.Exit(1)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(ctx)
	log.Info().Int64("served", srv.Served()).Msg("gateway simulator stopped")
}
