package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nerrad567/actuator-core/internal/api"
	"github.com/nerrad567/actuator-core/internal/audit"
	"github.com/nerrad567/actuator-core/internal/control"
	"github.com/nerrad567/actuator-core/internal/device"
	"github.com/nerrad567/actuator-core/internal/events"
	"github.com/nerrad567/actuator-core/internal/infrastructure/config"
	"github.com/nerrad567/actuator-core/internal/infrastructure/database"
	"github.com/nerrad567/actuator-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/actuator-core/internal/infrastructure/logging"
	"github.com/nerrad567/actuator-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/actuator-core/internal/metrics"
	"github.com/nerrad567/actuator-core/internal/transport"
	"github.com/nerrad567/actuator-core/internal/transport/fake"
	"github.com/nerrad567/actuator-core/migrations"
)

// eventBufferSize bounds the MQTT event queue between the controller and
// the broker.
const eventBufferSize = 512

func newServeCmd(configPath func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the control core until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), configPath())
		},
	}
}

// run is the actual application logic, separated from main for testability.
//
// Startup order: configuration, logging, database and device registry,
// MQTT, transport, telemetry sinks, controller, bus intake, HTTP API.
// Deferred closes run in reverse order on shutdown.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//   - configPath: YAML configuration file
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context, configPath string) error { //nolint:funlen,gocognit // linear startup sequence
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting actuator core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	opts, err := controlOptions(cfg)
	if err != nil {
		return fmt.Errorf("building control options: %w", err)
	}

	// Open database
	db, err := database.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", db.Path())

	if migrateErr := db.Migrate(ctx, migrations.FS); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Device registry: persisted devices first, then any seed devices not
	// yet known.
	registry := device.NewRegistry(device.NewSQLiteRepository(db.DB))
	registry.SetLogger(log.Component("device"))
	if loadErr := registry.Load(ctx); loadErr != nil {
		return fmt.Errorf("loading device registry: %w", loadErr)
	}
	if seedErr := seedDevices(ctx, registry, cfg.Devices.SeedFile, log); seedErr != nil {
		return seedErr
	}
	online, total := registry.Counts()
	log.Info("device registry initialised", "devices", total, "online", online)

	// Connect to MQTT broker
	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetLogger(log.Component("mqtt"))
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	adapter, err := buildTransport(cfg, mqttClient, log)
	if err != nil {
		return err
	}

	// Observers are fixed when the controller is built, so every sink is
	// created first.
	recorder := metrics.New()
	hub := api.NewHub(cfg.WebSocket, log)
	publisher := events.NewPublisher(mqttClient, byte(cfg.MQTT.QoS), cfg.Site.ID, eventBufferSize) // #nosec G115 -- qos validated 0..2
	publisher.SetLogger(log.Component("events"))
	observers := control.Observers{hub, recorder, publisher}
	watchCounters(recorder, mqttClient, hub, publisher)

	// Connect to InfluxDB (optional)
	checks := map[string]api.HealthChecker{
		"database": db,
		"mqtt":     mqttClient,
	}
	influxClient, err := influxdb.Connect(cfg.InfluxDB, cfg.Site.ID)
	switch {
	case errors.Is(err, influxdb.ErrDisabled):
		log.Info("InfluxDB disabled")
	case err != nil:
		return fmt.Errorf("connecting to InfluxDB: %w", err)
	default:
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		observers = append(observers, events.NewOutcomeSink(influxClient, nil))
		recorder.WatchCounter("influxdb_points_total",
			"Telemetry points handed to the InfluxDB write API.", func() uint64 { return influxClient.Stats().Points })
		recorder.WatchCounter("influxdb_write_failures_total",
			"InfluxDB batches that failed after retries.", func() uint64 { return influxClient.Stats().FailedWrites })
		checks["influxdb"] = influxClient
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	}

	ctrl, err := control.New(opts, control.Deps{
		Registry:  registry,
		Transport: adapter,
		Trail:     audit.NewTrail(cfg.Control.Audit.Capacity, cfg.Control.Audit.CompactTo),
		Logger:    log.Component("control"),
		Observer:  observers,
	})
	if err != nil {
		return fmt.Errorf("creating controller: %w", err)
	}
	log.Info("controller created",
		"mode", opts.Strategy.Mode,
		"max_simultaneous_changes", opts.Strategy.MaxSimultaneousChanges,
		"dispatch_interval", opts.DispatchInterval,
	)

	go publisher.Run(ctx)
	// The dispatcher finishes its in-flight command before Run returns; wait
	// for it so outcomes are persisted before the database closes.
	dispatchCtx, stopDispatch := context.WithCancel(ctx)
	dispatched := make(chan struct{})
	go func() {
		defer close(dispatched)
		if runErr := ctrl.Run(dispatchCtx); runErr != nil {
			log.Error("dispatcher stopped with error", "error", runErr)
		}
	}()
	defer func() {
		stopDispatch()
		<-dispatched
		log.Info("dispatcher drained")
	}()

	intake := events.NewIntake(ctrl, publisher, byte(cfg.MQTT.QoS)) // #nosec G115 -- qos validated 0..2
	intake.SetLogger(log.Component("intake"))
	if startErr := intake.Start(ctx, mqttClient); startErr != nil {
		return fmt.Errorf("starting recommendation intake: %w", startErr)
	}

	server, err := api.New(api.Deps{
		Config:     cfg.API,
		WS:         cfg.WebSocket,
		Security:   cfg.Security,
		Logger:     log,
		Controller: ctrl,
		Hub:        hub,
		Metrics:    recorder.Handler(),
		Checks:     checks,
		Version:    version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := server.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	if err := healthCheck(ctx, checks); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	log.Info("actuator core stopped", "dropped_events", publisher.Dropped())
	return nil
}

// seedDevices registers devices from the seed file that the store does not
// already hold. Stored devices win so operator edits survive restarts.
func seedDevices(ctx context.Context, registry *device.Registry, path string, log *logging.Logger) error {
	if path == "" {
		return nil
	}
	seeds, err := device.LoadSeedFile(path)
	if err != nil {
		return fmt.Errorf("loading device seed file: %w", err)
	}

	added := 0
	for _, d := range seeds {
		if _, lookupErr := registry.Lookup(d.ID); lookupErr == nil {
			continue
		}
		if _, regErr := registry.Register(ctx, d); regErr != nil {
			return fmt.Errorf("seeding device %s: %w", d.ID, regErr)
		}
		added++
	}
	log.Info("device seed file applied", "path", path, "seeded", added, "skipped", len(seeds)-added)
	return nil
}

// buildTransport routes device writes by transport kind.
//
// With kind "mqtt" every bridged protocol goes through the MQTT
// command/ack adapter and only simulated devices use the in-memory
// adapter. With kind "simulated" every device is simulated.
func buildTransport(cfg *config.Config, bus transport.Bus, log *logging.Logger) (transport.Adapter, error) {
	router := transport.NewRouter()
	sim := fake.New()
	router.Handle(device.TransportSimulated, sim)

	bridged := []device.Transport{
		device.TransportMQTT, device.TransportModbus, device.TransportBACnet, device.TransportHTTP,
	}
	switch cfg.Transport.Kind {
	case "mqtt":
		mqttAdapter := transport.NewMQTTAdapter(bus, byte(cfg.MQTT.QoS)) // #nosec G115 -- qos validated 0..2
		mqttAdapter.SetLogger(log.Component("transport"))
		if err := mqttAdapter.Start(); err != nil {
			return nil, fmt.Errorf("starting MQTT transport: %w", err)
		}
		for _, kind := range bridged {
			router.Handle(kind, mqttAdapter)
		}
	default:
		for _, kind := range bridged {
			router.Handle(kind, sim)
		}
	}
	log.Info("transport ready", "kind", cfg.Transport.Kind, "routes", router.Kinds())

	if !cfg.Transport.Breaker.Enabled {
		return router, nil
	}
	threshold, open := breakerSettings(cfg.Transport.Breaker)
	breaker := transport.NewBreakerAdapter(router, transport.BreakerSettings{
		FailureThreshold: threshold,
		OpenTimeout:      open,
	})
	breaker.SetLogger(log.Component("breaker"))
	return breaker, nil
}

// watchCounters exposes the drop and traffic counters kept by components
// that are not controller observers themselves.
func watchCounters(recorder *metrics.Recorder, bus *mqtt.Client, hub *api.Hub, publisher *events.Publisher) {
	recorder.WatchCounter("websocket_events_dropped_total",
		"Events not delivered to slow WebSocket clients.", hub.Dropped)
	recorder.WatchCounter("bus_events_dropped_total",
		"Events discarded because the MQTT publish buffer was full.", publisher.Dropped)
	recorder.WatchCounter("mqtt_messages_published_total",
		"Messages acknowledged by the broker.", func() uint64 { return bus.Stats().Published })
	recorder.WatchCounter("mqtt_messages_received_total",
		"Messages delivered to subscription handlers.", func() uint64 { return bus.Stats().Received })
	recorder.WatchCounter("mqtt_handler_errors_total",
		"Subscription handlers that failed or panicked.", func() uint64 { return bus.Stats().HandlerErrors })
	recorder.WatchCounter("mqtt_reconnects_total",
		"Broker reconnections after the first connection.", func() uint64 { return bus.Stats().Reconnects })
}

// healthCheck verifies all infrastructure connections are healthy.
// Returns the first failure, named by component.
func healthCheck(ctx context.Context, checks map[string]api.HealthChecker) error {
	for _, name := range []string{"database", "mqtt", "influxdb"} {
		c, ok := checks[name]
		if !ok {
			continue
		}
		if err := c.HealthCheck(ctx); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}
