// VirtuaPlant - bottle-filling line digital twin.
//
// The process runs the simulated line, serves the five device register
// banks over Modbus/TCP and drives the control loop at the configured tick
// rate. History goes to SQLite; MQTT, InfluxDB and the HTTP API are optional.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/virtuaplant-core/internal/api"
	"github.com/nerrad567/virtuaplant-core/internal/audit"
	"github.com/nerrad567/virtuaplant-core/internal/bridges/modbus"
	"github.com/nerrad567/virtuaplant-core/internal/control"
	"github.com/nerrad567/virtuaplant-core/internal/history"
	"github.com/nerrad567/virtuaplant-core/internal/infrastructure/config"
	"github.com/nerrad567/virtuaplant-core/internal/infrastructure/database"
	"github.com/nerrad567/virtuaplant-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/virtuaplant-core/internal/infrastructure/logging"
	"github.com/nerrad567/virtuaplant-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/virtuaplant-core/internal/plant"
	"github.com/nerrad567/virtuaplant-core/internal/simulation"
	"github.com/nerrad567/virtuaplant-core/internal/telemetry"
	"github.com/nerrad567/virtuaplant-core/migrations"
)

// Set with -ldflags "-X main.version=... -X main.commit=...".
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run wires the plant and blocks until ctx is cancelled.
// Deferred closes run in reverse start order.
func run(ctx context.Context) error { //nolint:funlen,gocognit // linear startup sequence
	log := logging.Default()
	log.Info("starting VirtuaPlant",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := config.Path()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	defer log.Close()
	log.Info("configuration loaded", "path", configPath, "site", cfg.Site.ID)

	// Database and history
	db, err := database.Open(database.FromConfig(cfg.Database))
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	if err := db.Migrate(ctx, migrations.FS); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	repo := history.NewSQLiteRepository(db.DB)
	writes := audit.NewSQLiteRepository(db.DB)
	log.Info("database ready", "path", cfg.Database.Path)

	checks := map[string]api.HealthChecker{"database": db}
	sinks := make(map[string]func() any)

	// MQTT (optional; the plant runs without it)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			log.Warn("MQTT unavailable, continuing without it", "error", err)
		} else {
			mqttClient.SetLogger(log)
			defer func() {
				log.Info("disconnecting from MQTT")
				if closeErr := mqttClient.Close(); closeErr != nil {
					log.Error("error closing MQTT", "error", closeErr)
				}
			}()
			checks["mqtt"] = mqttClient
			sinks["mqtt"] = func() any { return mqttClient.Stats() }
			log.Info("MQTT connected",
				"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
				"client_id", cfg.MQTT.Broker.ClientID,
			)
		}
	}

	// InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			log.Warn("InfluxDB unavailable, continuing without it", "error", err)
		} else {
			influxClient.SetOnError(func(err error) {
				log.Error("InfluxDB write error", "error", err)
			})
			defer func() {
				log.Info("closing InfluxDB connection")
				if closeErr := influxClient.Close(); closeErr != nil {
					log.Error("error closing InfluxDB", "error", closeErr)
				}
			}()
			checks["influxdb"] = influxClient
			sinks["influxdb"] = func() any { return influxClient.Stats() }
			log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
		}
	}

	// Register banks and their listeners
	banks := plant.NewBanks(cfg.Plant.BankSize)
	ports := plant.DefaultPortMap(cfg.Plant.BasePort)
	serverCfgs, err := banks.ServerConfigs(cfg.Plant.Host, ports, log)
	if err != nil {
		return fmt.Errorf("configuring bank listeners: %w", err)
	}
	group, err := modbus.StartGroup(ctx, serverCfgs)
	if err != nil {
		return fmt.Errorf("starting bank listeners: %w", err)
	}
	defer func() {
		log.Info("stopping bank listeners")
		group.Close()
	}()
	if err := ports.Save(cfg.Plant.PortsFile); err != nil {
		return fmt.Errorf("saving port map: %w", err)
	}
	log.Info("bank listeners started", "host", cfg.Plant.Host, "base_port", cfg.Plant.BasePort, "ports_file", cfg.Plant.PortsFile)

	devices := banks.Devices()
	if cfg.Plant.Loopback {
		devices, err = banks.Loopback(cfg.Plant.Host, ports, cfg.GetClientTimeout())
		if err != nil {
			return fmt.Errorf("dialling device banks: %w", err)
		}
	}
	defer func() {
		if closeErr := devices.Close(); closeErr != nil {
			log.Error("error closing device clients", "error", closeErr)
		}
	}()

	// Simulation and control
	var worldOpts []simulation.Option
	if cfg.Simulation.Seed != 0 {
		worldOpts = append(worldOpts, simulation.WithSeed(cfg.Simulation.Seed))
	}
	world := simulation.New(worldOpts...)

	cycle := control.NewFillCycle(devices, control.NewTimerScheduler(), control.FillConfig{
		Cooldown:     config.Millis(cfg.Simulation.Cooldown),
		ContactPulse: config.Millis(cfg.Simulation.ContactPulse),
		FillDuration: config.Millis(cfg.Simulation.FillDuration),
	})
	cycle.SetLogger(log)
	defer cycle.Close()

	// Telemetry
	hub := api.NewHub(cfg.WebSocket, log)
	recCfg := telemetry.Config{
		SiteID:    cfg.Site.ID,
		QueueSize: cfg.Telemetry.QueueSize,
		History:   repo,
		Hub:       hub,
		Logger:    log.With("component", "telemetry"),
	}
	if mqttClient != nil {
		recCfg.MQTT = mqttClient
	}
	if influxClient != nil {
		recCfg.Influx = influxClient
	}
	recorder := telemetry.NewRecorder(recCfg)

	runner := control.NewRunner(devices, world, cycle, control.RunnerConfig{
		Interval: cfg.GetTickInterval(),
		Observer: recorder,
		Logger:   log.With("component", "control"),
	})

	if mqttClient != nil {
		commands := telemetry.NewCommands(banks.PLC, log.With("component", "commands"))
		commands.SetAudit(writes)
		if err := commands.Subscribe(mqttClient, byte(cfg.MQTT.QoS)); err != nil { //nolint:gosec // validated 0..2
			log.Warn("MQTT commands unavailable", "error", err)
		}
	}

	// HTTP API
	if cfg.API.Enabled {
		srv, err := api.New(api.Deps{
			Config:   cfg.API,
			WS:       cfg.WebSocket,
			Logger:   log,
			PLC:      banks.PLC,
			Plant:    runner,
			History:  repo,
			Audit:    writes,
			Recorder: recorder,
			DB:       db,
			Checks:   checks,
			Sinks:    sinks,
			Hub:      hub,
			Version:  version,
		})
		if err != nil {
			return fmt.Errorf("creating API server: %w", err)
		}
		if err := srv.Start(ctx); err != nil {
			return fmt.Errorf("starting API server: %w", err)
		}
		defer func() {
			if closeErr := srv.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	}

	// The recorder outlives the runner so the last frames are drained.
	recCtx, stopRecorder := context.WithCancel(context.Background())
	var workers errgroup.Group
	workers.Go(func() error {
		recorder.Run(recCtx)
		return nil
	})
	workers.Go(func() error {
		hub.Run(ctx)
		return nil
	})
	if cfg.Telemetry.HistoryRetention > 0 {
		workers.Go(func() error {
			telemetry.RunPruner(ctx, repo, cfg.GetHistoryRetention(), telemetry.DefaultPruneInterval, log)
			return nil
		})
	}

	log.Info("initialisation complete, plant running",
		"tick_rate", cfg.Simulation.TickRate,
		"loopback", cfg.Plant.Loopback,
	)

	runner.Run(ctx)

	log.Info("shutdown signal received, cleaning up")
	stopRecorder()
	_ = workers.Wait()

	st := recorder.Stats()
	log.Info("VirtuaPlant stopped",
		"ticks", runner.Stats().Ticks,
		"fills", st.Fills,
		"dropped_frames", st.Dropped,
	)
	return nil
}
