package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"
)

// Server wires the admin API to a running app.
type Server struct {
	config    *Config
	logger    *slog.Logger
	app       *app
	authAPI   *AuthAPI
	botAPI    *BotAPI
	serverAPI *ServerAPI
	apiMux    *http.ServeMux
}

// NewServer creates the server object and registers its routes.
func NewServer(config *Config, logger *slog.Logger, a *app, actionChan chan string) *Server {
	server := &Server{
		config:    config,
		logger:    logger,
		app:       a,
		authAPI:   NewAuthAPI(config.Server.ApiKey, logger),
		botAPI:    NewBotAPI(a.bot, a.store, logger),
		serverAPI: NewServerAPI(actionChan, logger),
		apiMux:    http.NewServeMux(),
	}

	apiMux := http.NewServeMux()
	server.botAPI.RegisterRoutes(apiMux)
	server.serverAPI.RegisterRoutes(apiMux)

	// Make sure api functions must pass through authentication first
	authedAPI := server.authAPI.Authenticate(apiMux)
	// ... except for the health check, which is unauthed so something like docker can use it
	server.apiMux.HandleFunc("/api/health", server.serverAPI.handleHealthCheck)
	server.apiMux.Handle("/api/", authedAPI)

	return server
}

// serve is one server cycle: it loads the config, rebuilds the model from the
// corpus, runs the bot loop and the API, and returns the action that stopped it.
func serve(configPath string, actionChan chan string) (string, error) {
	config, err := LoadConfig(configPath)
	if err != nil {
		return "", fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := newLogger(config, os.Stdout)
	logger.Info("Starting server cycle...", "version", Version)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ports, err := connectFedi(ctx, config, logger)
	if err != nil {
		return "", fmt.Errorf("failed to connect to instance: %w", err)
	}

	a, err := openApp(config, logger, ports)
	if err != nil {
		return "", err
	}
	defer func() {
		logger.Info("Closing database connection.")
		if err := a.Close(); err != nil {
			logger.Error("Failed to close database", "error", err)
		}
	}()

	if err = a.load(ctx); err != nil {
		return "", err
	}

	server := NewServer(config, logger, a, actionChan)
	apiHttpServer := &http.Server{Addr: config.Server.ApiAddr, Handler: server.apiMux}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if ports.fetcher != nil {
			if _, err := a.bot.Refresh(ctx); err != nil && ctx.Err() == nil {
				logger.Error("Initial refresh failed", "error", err)
			}
		}
		_ = a.bot.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		logger.Info("Starting api server", "address", apiHttpServer.Addr)
		if err := apiHttpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Api server failed", "error", err)
			select {
			case actionChan <- actionShutdown:
			default:
			}
		}
	}()

	action := <-actionChan // Block here until API or OS signal sends an action.

	logger.Info("Stopping server for " + action + "...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err = apiHttpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Api server shutdown failed", "error", err)
	}
	cancel()
	wg.Wait()
	logger.Info("Api server and bot loop stopped.")

	return action, nil
}
