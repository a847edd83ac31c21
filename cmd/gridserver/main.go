package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/infinigrid/server/internal/config"
	"github.com/infinigrid/server/internal/core/event"
	coresys "github.com/infinigrid/server/internal/core/system"
	"github.com/infinigrid/server/internal/data"
	"github.com/infinigrid/server/internal/grid"
	"github.com/infinigrid/server/internal/handler"
	gonet "github.com/infinigrid/server/internal/net"
	"github.com/infinigrid/server/internal/net/packet"
	"github.com/infinigrid/server/internal/persist"
	"github.com/infinigrid/server/internal/scripting"
	"github.com/infinigrid/server/internal/system"
	"github.com/infinigrid/server/internal/world"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/text/width"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// ── Startup display helpers ────────────────────────────────────────

func printBanner(serverName string, serverID int) {
	fmt.Println()
	fmt.Println("\033[36;1m  ┌───────────────────────────────────────────┐\033[0m")
	fmt.Println("\033[36;1m  │\033[0m            infinigrid  v0.1.0             \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  │\033[0m      chunked spatial cache · Go server    \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  └───────────────────────────────────────────┘\033[0m")
	fmt.Println()
	fmt.Printf("  \033[1mserver:\033[0m %s \033[90m(id: %d)\033[0m\n\n", serverName, serverID)
}

// displayWidth counts terminal columns; wide CJK runes take two.
func displayWidth(s string) int {
	n := 0
	for _, r := range s {
		switch width.LookupRune(r).Kind() {
		case width.EastAsianWide, width.EastAsianFullwidth:
			n += 2
		default:
			n++
		}
	}
	return n
}

func printSection(title string) {
	lineLen := 46 - displayWidth(title) - 1
	if lineLen < 3 {
		lineLen = 3
	}
	fmt.Printf("  \033[33m── %s %s\033[0m\n", title, strings.Repeat("─", lineLen))
}

func printStat(label string, value any) {
	valStr := fmt.Sprint(value)
	dotsLen := 42 - displayWidth(label) - displayWidth(valStr)
	if dotsLen < 3 {
		dotsLen = 3
	}
	fmt.Printf("  %s \033[90m%s\033[0m \033[32m%s\033[0m\n", label, strings.Repeat("·", dotsLen), valStr)
}

func printOK(msg string) {
	fmt.Printf("  \033[32m✓\033[0m %s\n", msg)
}

func printReady(msg string) {
	fmt.Printf("  \033[32m▶\033[0m %s\n", msg)
}

// ── Main server logic ─────────────────────────────────────────────

func run() error {
	configPath := flag.String("config", "", "path to server.toml (default $"+config.EnvPath+" or "+config.DefaultPath+")")
	flag.Parse()

	// 1. Load config
	cfg, err := config.Load(config.Resolve(*configPath))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Init logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	printBanner(cfg.Server.Name, cfg.Server.ID)

	// 3. Content catalog and layout
	printSection("content")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	content, err := data.LoadConfiguredContent(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("content: %w", err)
	}
	printStat("source", cfg.Content.Source)
	printStat("items", content.Count())
	if content.Count() == 0 {
		log.Warn("content catalog is empty, cells will show placeholders")
	}

	layout, err := data.LoadLayout(cfg.Grid.LayoutFile)
	if err != nil {
		return fmt.Errorf("layout: %w", err)
	}
	if layout.Len() != cfg.Grid.ItemsPerChunk {
		return fmt.Errorf("layout has %d slots but items_per_chunk is %d", layout.Len(), cfg.Grid.ItemsPerChunk)
	}
	printStat("layout slots", layout.Len())
	fmt.Println()

	// 4. Grid options; calc_margins overrides the configured margins
	printSection("grid")

	margins := grid.Margins{Edge: cfg.Grid.EdgeMargin, Body: cfg.Grid.BodyMargin}
	luaEngine, err := scripting.NewEngine(cfg.Scripting.Dir, log)
	if err != nil {
		return fmt.Errorf("scripting: %w", err)
	}
	defer luaEngine.Close()
	if m, ok := luaEngine.CalcMargins(scripting.MarginContext{
		ChunkWidth:  cfg.Grid.ChunkWidth,
		ChunkHeight: cfg.Grid.ChunkHeight,
	}); ok {
		margins = m
		printOK("margins from calc_margins")
	}

	gridOpts := grid.Options{
		ChunkWidth:    cfg.Grid.ChunkWidth,
		ChunkHeight:   cfg.Grid.ChunkHeight,
		ItemsPerChunk: cfg.Grid.ItemsPerChunk,
		Margins:       margins,
		Strict:        cfg.Grid.StrictInvariants,
	}
	printStat("chunk", fmt.Sprintf("%gx%g", gridOpts.ChunkWidth, gridOpts.ChunkHeight))
	printStat("edge margin", fmt.Sprintf("%.0f", margins.Edge))
	printStat("body margin", fmt.Sprintf("%.0f", margins.Body))
	fmt.Println()

	// 5. World state, event bus and packet handlers
	worldState := world.NewState()
	bus := event.NewBus()

	helloLimit := 0
	pktPerSec := 0
	if cfg.RateLimit.Enabled {
		helloLimit = cfg.RateLimit.HelloAttemptsPerMin
		pktPerSec = cfg.RateLimit.PacketsPerSecond
	}

	pktReg := packet.NewRegistry(log)
	deps := &handler.Deps{
		Config:      cfg,
		Log:         log,
		World:       worldState,
		Bus:         bus,
		GridOptions: gridOpts,
		Layout:      layout,
		Mapper:      grid.NewMapper(content.Items(), cfg.Grid.ItemsPerChunk),
		HelloLimit:  handler.NewAttemptLimiter(helloLimit),
	}
	handler.RegisterAll(pktReg, deps)

	// 6. Network: framed TCP plus the WebSocket gateway
	netServer, err := gonet.NewServer(cfg.Network.BindAddress, gonet.ServerOptions{
		Session: gonet.SessionOptions{
			InQueueSize:      cfg.Network.InQueueSize,
			OutQueueSize:     cfg.Network.OutQueueSize,
			PacketsPerSecond: pktPerSec,
		},
		ReadTimeout:  cfg.Network.ReadTimeout,
		WriteTimeout: cfg.Network.WriteTimeout,
	}, log)
	if err != nil {
		return fmt.Errorf("net server: %w", err)
	}
	if netServer.Addr() != nil {
		go netServer.AcceptLoop()
	}

	var httpServer *http.Server
	if cfg.Network.WSAddress != "" {
		mux := http.NewServeMux()
		mux.Handle(cfg.Network.WSPath, netServer.Handler())
		httpServer = &http.Server{
			Addr:              cfg.Network.WSAddress,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("websocket gateway stopped", zap.Error(err))
			}
		}()
	}

	// 7. Systems
	store := gonet.NewSessionStore()
	runner := coresys.NewRunner()
	inputSys := system.NewInputSystem(netServer, pktReg, store, worldState, bus, cfg.Network.MaxPacketsPerTick, log)
	runner.Register(inputSys)
	runner.Register(system.NewVisibilitySystem(worldState, log))
	runner.Register(system.NewEventDispatchSystem(bus))
	runner.Register(system.NewAuditSystem(worldState, bus, cfg.Grid.AuditInterval, log))
	runner.Register(system.NewOutputSystem(store))
	var journalSys *system.JournalSystem
	if cfg.Journal.Enabled {
		journalSys = system.NewJournalSystem(bus, persist.NewJournal(cfg.Journal.Dir, "grid"), log)
		runner.Register(journalSys)
	}
	runner.Register(system.NewCleanupSystem(worldState))

	// 8. Game loop
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(cfg.Network.TickRate)
	defer ticker.Stop()

	// Between full ticks only the input phase runs, so visibility settles
	// without waiting for the next tick. Packets still flush at PhaseOutput.
	var pollC <-chan time.Time
	if cfg.Network.InputPollRate > 0 {
		pollTicker := time.NewTicker(cfg.Network.InputPollRate)
		defer pollTicker.Stop()
		pollC = pollTicker.C
	}

	printSection("ready")
	if addr := netServer.Addr(); addr != nil {
		printReady(fmt.Sprintf("tcp listening on %s", addr.String()))
	}
	if httpServer != nil {
		printReady(fmt.Sprintf("websocket on ws://%s%s", cfg.Network.WSAddress, cfg.Network.WSPath))
	}
	if cfg.Journal.Enabled {
		printReady(fmt.Sprintf("journal in %s", cfg.Journal.Dir))
	}
	printReady(fmt.Sprintf("loop running (tick: %s, %d systems)", cfg.Network.TickRate, runner.Len()))
	fmt.Println()

	for {
		select {
		case <-ticker.C:
			runner.Tick(cfg.Network.TickRate)
		case <-pollC:
			runner.TickPhase(coresys.PhaseInput, cfg.Network.InputPollRate)
		case sig := <-shutdownCh:
			log.Info("shutdown signal received", zap.String("signal", sig.String()))
			store.ForEach(func(sess *gonet.Session) {
				handler.SendDisconnect(sess, packet.DisconnectShutdown)
				sess.FlushOutput()
				sess.Close()
			})
			netServer.Shutdown()
			if httpServer != nil {
				shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
				_ = httpServer.Shutdown(shutdownCtx)
				cancelShutdown()
			}
			// A final tick removes the closed sessions, releases their
			// engines and flushes the journal.
			runner.Tick(cfg.Network.TickRate)
			if journalSys != nil {
				if err := journalSys.Close(); err != nil {
					log.Error("close journal", zap.Error(err))
				}
			}
			log.Info("server stopped", zap.Int("sessions", inputSys.SessionCount()))
			return nil
		}
	}
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
