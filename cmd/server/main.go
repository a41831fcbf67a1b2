// cmd/server/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"terminal-service/internal/config"
	"terminal-service/internal/connection"
	"terminal-service/internal/handler"
	"terminal-service/internal/model"
	"terminal-service/internal/payment"
	"terminal-service/internal/printing"
	"terminal-service/internal/routes"
	"terminal-service/internal/state"
	"terminal-service/internal/transport"
	"terminal-service/internal/transport/ble"
	"terminal-service/internal/transport/nfc"
	"terminal-service/internal/transport/serial"
	"terminal-service/internal/transport/usb"
	"terminal-service/internal/utils"
)

// Application represents the main application
type Application struct {
	config *config.Config
	logger *zap.Logger
	server *http.Server
	store  state.Store

	transports   *transport.Manager
	connections  *connection.Manager
	reader       payment.ReaderProvider
	orchestrator *payment.Orchestrator
	submitter    *printing.Submitter
	events       *handler.EventsHandler
}

func main() {
	app, err := NewApplication()
	if err != nil {
		fmt.Printf("Failed to initialize application: %v\n", err)
		os.Exit(1)
	}

	if err := app.Start(); err != nil {
		app.logger.Fatal("Failed to start application", zap.Error(err))
	}
}

// NewApplication creates a new application instance
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := utils.NewLogger(&cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	serviceLogger := utils.NewServiceLogger(logger, "terminal-service")
	serviceLogger.LogServiceStart(cfg.App.Version)

	app := &Application{
		config: cfg,
		logger: logger,
	}

	if err := app.initializeStore(); err != nil {
		return nil, fmt.Errorf("failed to initialize state store: %w", err)
	}

	app.initializeReader()
	if err := app.initializeTransports(); err != nil {
		return nil, fmt.Errorf("failed to initialize transports: %w", err)
	}
	app.initializeConnections()
	app.initializeServices()

	if err := app.initializeServer(); err != nil {
		return nil, fmt.Errorf("failed to initialize server: %w", err)
	}

	return app, nil
}

// initializeStore opens the connectivity state store and runs migrations
func (app *Application) initializeStore() error {
	store, err := state.NewSQLiteStore(app.config.Store.Path, app.logger)
	if err != nil {
		return err
	}
	app.store = store

	app.logger.Info("State store initialized", zap.String("path", app.config.Store.Path))
	return nil
}

// initializeReader selects the card reader implementation
func (app *Application) initializeReader() {
	if app.config.Payment.Simulated {
		app.reader = payment.NewSimulatedReader()
		app.logger.Info("Payment reader initialized", zap.Bool("simulated", true))
		return
	}
	app.reader = payment.NewHardwareReader()
	app.logger.Warn("Hardware reader selected; payments will report the radio as unavailable until SDK support lands")
}

// initializeTransports registers one discovery scanner per transport. USB
// printers surface both as serial ports and as raw USB devices, so that kind
// registers a composite over both sources.
func (app *Application) initializeTransports() error {
	app.transports = transport.NewManager(app.logger)

	usbSources := transport.NewComposite(model.TransportUSB, app.logger,
		serial.NewScanner(app.logger, &serial.Config{
			ScanTimeout: app.config.Discovery.SerialScanTimeout,
		}),
		usb.NewScanner(app.logger, &usb.Config{
			ScanTimeout:   app.config.Discovery.USBScanTimeout,
			FilterByClass: true,
		}),
	)

	scanners := []transport.Scanner{
		usbSources,
		ble.NewScanner(app.logger, &ble.Config{
			ScanTimeout: app.config.Discovery.BLEScanTimeout,
		}),
		nfc.NewScanner(app.reader, app.logger),
	}
	for _, scanner := range scanners {
		if err := app.transports.Register(scanner); err != nil {
			return err
		}
	}

	app.logger.Info("Transport scanners initialized")
	return nil
}

// initializeConnections wires the connection manager and its connectors
func (app *Application) initializeConnections() {
	app.connections = connection.NewManager(app.store, app.logger, app.config.Discovery.ConnectTimeout)

	app.connections.Register(connection.NewUSBConnector(
		connection.NewSerialConnector(app.config.Printer.BaudRate)))
	app.connections.Register(connection.NewBLEConnector(nil))
	app.connections.Register(connection.NewNFCConnector(app.reader))

	app.logger.Info("Connection manager initialized")
}

// initializeServices creates the payment orchestrator and print submitter
func (app *Application) initializeServices() {
	tokens := payment.NewTokenClient(app.config.Payment.BackendURL, app.config.Payment.TokenTimeout)
	app.orchestrator = payment.NewOrchestrator(
		tokens,
		app.reader,
		app.connections,
		app.logger,
		app.config.Payment.Currency,
		app.config.Payment.CollectTimeout,
	)

	app.submitter = printing.NewSubmitter(app.connections, app.logger, app.config.Printer.AckTimeout)

	// event stream fan-out
	app.events = handler.NewEventsHandler(app.logger)
	app.connections.SetEventSink(app.events)
	app.orchestrator.SetUpdateSink(app.events)

	app.logger.Info("Services initialized successfully")
}

// initializeServer sets up HTTP server and routes
func (app *Application) initializeServer() error {
	routerManager := routes.NewRouter(
		app.config,
		app.logger,
		app.store,
		app.transports,
		app.connections,
		app.orchestrator,
		app.submitter,
		app.events,
	)

	router := routerManager.SetupRouter()

	app.server = &http.Server{
		Addr:         app.config.GetServerAddr(),
		Handler:      router,
		ReadTimeout:  app.config.Server.ReadTimeout,
		WriteTimeout: app.config.Server.WriteTimeout,
		IdleTimeout:  app.config.Server.IdleTimeout,
	}

	app.logger.Info("HTTP server initialized",
		zap.String("address", app.config.GetServerAddr()),
	)

	return nil
}

// startBackgroundServices starts background services
func (app *Application) startBackgroundServices() {
	go app.startPrinterWatchdog()

	app.logger.Info("Background services started")
}

// startPrinterWatchdog periodically probes the connected printer so a dead
// device surfaces as an ERROR slot instead of a failed print later
func (app *Application) startPrinterWatchdog() {
	interval := app.config.Printer.HealthCheckInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	app.logger.Info("Printer watchdog started", zap.Duration("interval", interval))

	for range ticker.C {
		ctx, cancel := context.WithTimeout(context.Background(), app.config.Printer.AckTimeout)
		if err := app.connections.CheckPrinter(ctx); err != nil {
			app.logger.Warn("Printer health check failed", zap.Error(err))
		}
		cancel()
	}
}

// restorePaperProfile seeds the printer slot's paper profile on first run
func (app *Application) restorePaperProfile() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	record, err := app.store.Record(ctx, model.SlotPrinter)
	if err != nil {
		app.logger.Warn("Failed to read printer slot state", zap.Error(err))
		return
	}
	if record.PaperProfile != "" {
		return
	}
	profile := model.PaperProfile(app.config.Printer.PaperProfile)
	if err := app.connections.SetPaperProfile(ctx, profile); err != nil {
		app.logger.Warn("Failed to seed paper profile", zap.Error(err))
	}
}

// waitForShutdown waits for shutdown signal and performs graceful shutdown
func (app *Application) waitForShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	app.logger.Info("Received shutdown signal", zap.String("signal", sig.String()))

	app.shutdown()
}

// shutdown performs graceful shutdown
func (app *Application) shutdown() {
	serviceLogger := utils.NewServiceLogger(app.logger, "terminal-service")
	serviceLogger.LogServiceStop("shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("HTTP server shutdown error", zap.Error(err))
	} else {
		app.logger.Info("HTTP server stopped")
	}

	// close device links before the store so final status writes land
	app.connections.Shutdown(ctx)

	if app.store != nil {
		if err := app.store.Close(); err != nil {
			app.logger.Error("State store close error", zap.Error(err))
		} else {
			app.logger.Info("State store closed")
		}
	}

	if err := utils.CloseLogger(app.logger); err != nil {
		fmt.Printf("Logger close error: %v\n", err)
	}

	app.logger.Info("Application shutdown completed")
}

func (app *Application) Start() error {
	app.restorePaperProfile()

	go func() {
		app.logger.Info("Starting HTTP server",
			zap.String("address", app.server.Addr),
		)

		if err := app.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			app.logger.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	app.startBackgroundServices()

	app.waitForShutdown()

	return nil
}
