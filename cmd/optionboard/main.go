package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/zappabad/optionboard/internal/config"
	diagservice "github.com/zappabad/optionboard/internal/diag/service"
	"github.com/zappabad/optionboard/internal/gateway"
	"github.com/zappabad/optionboard/internal/gateway/sim"
	"github.com/zappabad/optionboard/internal/gateway/ws"
	"github.com/zappabad/optionboard/internal/httpapi"
	"github.com/zappabad/optionboard/internal/options/service"
	"github.com/zappabad/optionboard/internal/premium"
	"github.com/zappabad/optionboard/internal/session"
	"github.com/zappabad/optionboard/pkg/logger"
	"github.com/zappabad/optionboard/tui"
)

func main() {
	configPath := flag.String("config", "optionboard.yaml", "path to the YAML configuration")
	headless := flag.Bool("headless", false, "run without the terminal UI (HTTP API only)")
	symbol := flag.String("symbol", "", "symbol to load at startup, overrides workflow.symbol")
	flag.Parse()

	cfg, err := config.Load(*configPath, false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *symbol != "" {
		cfg.Workflow.Symbol = *symbol
	}

	if err := run(cfg, *headless); err != nil {
		fmt.Fprintf(os.Stderr, "optionboard: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, headless bool) error {
	log, closeLog, err := newLogger(cfg.Log, headless)
	if err != nil {
		return err
	}
	defer closeLog()
	logger.SetGlobalLogger(log)

	transport, err := newTransport(cfg.Gateway, log)
	if err != nil {
		return err
	}
	defer transport.Close()

	diags := diagservice.NewDiagService(diagservice.DefaultConfig(), log)
	defer diags.Close()

	svcCfg, err := serviceConfig(cfg)
	if err != nil {
		return err
	}
	cal := session.New(cfg.Calendar.MIC)
	board := service.NewService(svcCfg, transport, cal, diags, log)
	defer board.Close()

	var api *httpapi.Server
	if cfg.HTTP.Enabled || headless {
		api = httpapi.New(httpapi.Config{
			Addr:           cfg.HTTP.Addr,
			AllowedOrigins: cfg.HTTP.AllowedOrigins,
		}, board, diags, log)
		go func() {
			if err := api.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("HTTP server failed")
			}
		}()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := api.Shutdown(ctx); err != nil {
				log.Warn().Err(err).Msg("HTTP shutdown")
			}
		}()
	}

	startup(cfg, board, log)

	if headless {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		log.Info().Str("signal", sig.String()).Msg("shutting down")
		return nil
	}

	model := tui.NewModel(board, diags, tui.Options{
		RefreshInterval: cfg.UI.RefreshInterval,
		DiagnosticsRows: cfg.UI.DiagnosticsRows,
	})
	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("terminal UI: %w", err)
	}
	return nil
}

// newLogger writes to the configured file while the terminal UI owns
// stdout.
func newLogger(cfg config.Log, headless bool) (zerolog.Logger, func(), error) {
	lc := logger.Config{Level: cfg.Level, Pretty: cfg.Pretty}
	if headless || cfg.File == "" {
		if !headless {
			lc.Output = io.Discard
		}
		return logger.New(lc), func() {}, nil
	}

	f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return zerolog.Logger{}, nil, fmt.Errorf("open log file: %w", err)
	}
	lc.Output = f
	return logger.New(lc), func() { _ = f.Close() }, nil
}

func newTransport(cfg config.Gateway, log zerolog.Logger) (gateway.Transport, error) {
	switch cfg.Mode {
	case "ws":
		wc := ws.DefaultConfig()
		wc.URL = cfg.URL
		wc.Codec = cfg.Codec
		wc.RateLimit = cfg.RateLimit
		wc.RateBurst = cfg.RateBurst
		wc.OutboundBuffer = cfg.OutboundBuffer
		wc.InboundBuffer = cfg.InboundBuffer
		wc.HandshakeTimeout = cfg.HandshakeTimeout
		wc.ReconnectMin = cfg.ReconnectMin
		wc.ReconnectMax = cfg.ReconnectMax
		return ws.NewClient(wc, log)
	default:
		return sim.New(simConfig(cfg.Sim), log), nil
	}
}

func simConfig(cfg config.Sim) sim.Config {
	sc := sim.DefaultConfig()
	sc.TickInterval = cfg.TickInterval
	sc.Seed = cfg.Seed
	sc.Expirations = cfg.Expirations
	sc.StrikeCount = cfg.StrikeCount
	sc.StrikeStep = cfg.StrikeStep
	sc.BasePrice = cfg.BasePrice
	sc.Volatility = cfg.Volatility
	sc.Account = cfg.Account
	return sc
}

func serviceConfig(cfg config.Config) (service.Config, error) {
	sc := service.DefaultConfig()

	right, ok := gateway.ParseRight(strings.ToUpper(cfg.Workflow.Right))
	if !ok {
		return sc, fmt.Errorf("workflow.right %q must be P or C", cfg.Workflow.Right)
	}
	mode, err := premium.ParseMode(cfg.Workflow.Annualization)
	if err != nil {
		return sc, err
	}

	sc.PollInterval = cfg.Workflow.PollInterval
	sc.StatsInterval = cfg.Workflow.StatsInterval
	sc.OverdueAfter = cfg.Workflow.OverdueAfter
	sc.Annualization = mode
	sc.SortChain = cfg.UI.SortChain

	sc.Engine.HorizonWeeks = cfg.Workflow.HorizonWeeks
	sc.Engine.Right = right
	sc.Engine.Exchange = cfg.Workflow.Exchange
	sc.Engine.Currency = cfg.Workflow.Currency
	sc.Engine.GenericTicks = cfg.Workflow.GenericTicks
	sc.Engine.BenignCodes = cfg.Workflow.BenignSet()
	sc.Engine.MaxContracts = cfg.Workflow.MaxContracts
	sc.Engine.AccountGroup = cfg.Account.Group
	sc.Engine.AccountTags = cfg.Account.Tags
	return sc, nil
}

func startup(cfg config.Config, board *service.Service, log zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if cfg.Account.Enabled {
		if err := board.RefreshAccount(ctx); err != nil {
			log.Warn().Err(err).Msg("initial account refresh failed")
		}
	}
	if cfg.Workflow.Symbol != "" {
		if err := board.LoadSymbol(ctx, cfg.Workflow.Symbol); err != nil {
			log.Warn().Err(err).Str("symbol", cfg.Workflow.Symbol).Msg("initial load failed")
		}
	}
}
