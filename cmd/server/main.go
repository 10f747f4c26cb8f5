package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThaumielSparrow/LodeRunner-sub004/pkg/config"
	"github.com/ThaumielSparrow/LodeRunner-sub004/pkg/levels"
	"github.com/ThaumielSparrow/LodeRunner-sub004/pkg/log"
	"github.com/ThaumielSparrow/LodeRunner-sub004/pkg/netcontrol"
	"github.com/ThaumielSparrow/LodeRunner-sub004/pkg/network"
	"github.com/ThaumielSparrow/LodeRunner-sub004/pkg/queue"
	"github.com/ThaumielSparrow/LodeRunner-sub004/pkg/repositories"
	"github.com/ThaumielSparrow/LodeRunner-sub004/pkg/repositories/models"
	"github.com/ThaumielSparrow/LodeRunner-sub004/pkg/telemetry"
	"github.com/ThaumielSparrow/LodeRunner-sub004/pkg/workers"
	"github.com/gorilla/mux"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	listenAddr := flag.String("listen", cfg.ListenAddr, "HTTP address serving /ws, /metrics and /lobby")
	udpAddr := flag.String("udp", cfg.UDPAddr, "UDP address to listen on, empty to disable")
	logLevel := flag.String("log-level", cfg.LogLevel, "Log level")
	startMap := flag.String("map", cfg.StartMap, "Level to host")
	dedicated := flag.Bool("dedicated", cfg.Dedicated, "Host without a local player")
	flag.Parse()

	parsedLogLevel, err := log.ParseLogLevel(*logLevel)
	if err != nil {
		panic(fmt.Sprintf("Failed to parse log level: %v", err))
	}

	logger := log.New(os.Stdout, parsedLogLevel)
	log.SetDefaultLogger(logger)
	defer logger.Sync()
	log.Info("Log level set to %s", parsedLogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	catalog, err := levels.Load(cfg.LevelsDir)
	if err != nil {
		panic(fmt.Sprintf("Failed to load levels: %v", err))
	}

	repository, err := repositories.NewRepository(ctx, cfg.DatabaseURL)
	if err != nil {
		panic(fmt.Sprintf("Failed to create repository: %v", err))
	}
	defer repository.Close(context.Background())

	savePreferencesChannelSize := 16
	savePreferencesChan := make(chan *models.Preferences, savePreferencesChannelSize)
	savePreferencesWorker := workers.NewSavePreferencesWorker(workers.NewSavePreferencesWorkerOptions{
		Repository:          repository,
		SavePreferencesChan: savePreferencesChan,
	})

	controller, err := netcontrol.NewController(ctx, netcontrol.NewControllerOptions{
		Catalog:         catalog,
		StartMap:        *startMap,
		Queue:           queue.NewInMemoryQueue(queue.QueueBufferSize),
		Compress:        cfg.Compress,
		Seats:           cfg.Seats,
		Quorum:          cfg.VoteQuorum,
		Dedicated:       *dedicated,
		TickInterval:    cfg.TickInterval,
		RetryInterval:   cfg.RetryInterval,
		MaxRetries:      cfg.MaxRetries,
		PeerTimeout:     cfg.PeerTimeout,
		PingInterval:    cfg.PingInterval,
		ShutdownGrace:   cfg.ShutdownGrace,
		BombFuse:        cfg.BombFuse,
		HoleRefill:      cfg.HoleRefill,
		Repository:      repository,
		Profile:         cfg.Profile,
		Nick:            cfg.Nick,
		Colors:          cfg.Colors,
		SavePreferences: savePreferencesChan,
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to create controller: %v", err))
	}
	if err := controller.Host(); err != nil {
		panic(fmt.Sprintf("Failed to host: %v", err))
	}

	router := mux.NewRouter()
	router.Handle("/ws", network.NewWSServer(controller.Peers()))
	router.Handle("/metrics", telemetry.MetricsHandler()).Methods(http.MethodGet)
	router.HandleFunc("/lobby", handleLobby(controller)).Methods(http.MethodGet)
	server := &http.Server{
		Addr:    *listenAddr,
		Handler: router,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("Serving HTTP on %s", *listenAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	if *udpAddr != "" {
		udpServer := network.NewUDPServer(*udpAddr, controller.Peers())
		g.Go(func() error {
			return udpServer.Start(ctx)
		})
	}
	g.Go(func() error {
		savePreferencesWorker.Start(ctx)
		return nil
	})
	g.Go(func() error {
		log.Info("Hosting %s", *startMap)
		controller.Start(ctx)
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error("Server stopped: %v", err)
		os.Exit(1)
	}
	log.Info("Server stopped")
}

// handleLobby lists the lobby seats as JSON.
func handleLobby(controller *netcontrol.Controller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(controller.Session().Lobby.Slots()); err != nil {
			log.Error("Failed to encode lobby: %v", err)
		}
	}
}
