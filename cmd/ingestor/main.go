// Command ingestor runs the multi-venue market-data ingestion engine:
// one decoder per enabled exchange, a shared event bus, a per-venue
// order-flow aggregator, and a read-only HTTP snapshot API.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rishav/mdengine/internal/config"
	"github.com/rishav/mdengine/internal/eventbus"
	"github.com/rishav/mdengine/internal/logging"
	"github.com/rishav/mdengine/internal/marketdata"
	"github.com/rishav/mdengine/internal/orderflow"
	"github.com/rishav/mdengine/internal/supervisor"
)

const tickInterval = 200 * time.Millisecond

func main() {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		os.Stderr.WriteString("mdengine: " + err.Error() + "\n")
		os.Exit(1)
	}

	logging.Init(cfg.Development)
	log := logging.Get()
	log.Info().Strs("venues", cfg.EnabledVenues()).Str("symbol", cfg.Symbol).Msg("starting mdengine")

	flowConfig := orderflow.Config{
		ImbalanceThreshold:    cfg.ImbalanceThreshold,
		BigOrderThreshold:     cfg.BigOrderThreshold,
		TradeDisplayDuration:  cfg.TradeDisplayDuration,
		CancelDisplayDuration: cfg.CancelDisplayDuration,
		ExpirationSweepPeriod: time.Duration(cfg.CleanupIntervalMs) * time.Millisecond,
		MaxTradeRecords:       cfg.MaxTradeRecords,
		TradesWindowSize:      cfg.TradesWindowSize,
		HistoryResetHour:      cfg.HistoryResetHour,
	}

	bus := eventbus.New(cfg.RingBufferCapacity)
	aggregator := marketdata.New(flowConfig, cfg.EnabledVenues())
	sup := supervisor.New(bus, cfg, cfg.Symbol)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sup.Start(ctx)

	consumerDone := make(chan struct{})
	go runConsumer(ctx, bus, aggregator, consumerDone)

	tickerDone := make(chan struct{})
	go runTicker(ctx, aggregator, tickerDone)

	httpServer := newHTTPServer(cfg.HTTPAddr, aggregator, bus, sup)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("http server stopped unexpectedly")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Info().Msg("shutdown signal received")

	cancel()
	sup.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown error")
	}

	<-consumerDone
	<-tickerDone
	log.Info().Msg("mdengine stopped")
}

// runConsumer drains the event bus into the aggregator until ctx is
// cancelled, then performs one final drain so in-flight events are not
// silently lost on shutdown.
func runConsumer(ctx context.Context, bus *eventbus.Bus, aggregator *marketdata.Aggregator, done chan<- struct{}) {
	defer close(done)
	bus.SubscribeGlobal(aggregator.Handle)

	for {
		select {
		case <-ctx.Done():
			bus.ProcessAll()
			return
		default:
			if bus.ProcessEvents(256) == 0 {
				time.Sleep(time.Millisecond)
			}
		}
	}
}

// runTicker drives the per-venue housekeeping (imbalance debounce,
// cancel pressure, big-order scan, expiration sweep, history reset) on
// a fixed cadence independent of message arrival.
func runTicker(ctx context.Context, aggregator *marketdata.Aggregator, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			aggregator.Tick(now)
		}
	}
}

func newHTTPServer(addr string, aggregator *marketdata.Aggregator, bus *eventbus.Bus, sup *supervisor.Supervisor) *http.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/venues", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"venues": aggregator.Venues()})
	})

	router.GET("/venues/:venue/snapshot", func(c *gin.Context) {
		venue := c.Param("venue")
		depth := queryInt(c, "depth", 10)
		engine := aggregator.Engine(venue)
		if engine == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown venue"})
			return
		}
		c.JSON(http.StatusOK, engine.SnapshotDepth(depth))
	})

	router.GET("/venues/:venue/trades", func(c *gin.Context) {
		venue := c.Param("venue")
		n := queryInt(c, "n", 50)
		engine := aggregator.Engine(venue)
		if engine == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown venue"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"trades": engine.RecentTrades(n)})
	})

	router.GET("/venues/:venue/signals", func(c *gin.Context) {
		venue := c.Param("venue")
		engine := aggregator.Engine(venue)
		if engine == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown venue"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"signals":    engine.RecentSignals(),
			"big_orders": engine.BigOrders(),
		})
	})

	router.GET("/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"global": aggregator.GlobalStatsSnapshot(),
			"bus":    bus.StatsSnapshot(),
		})
	})

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "venues": sup.Venues()})
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}

func queryInt(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}
