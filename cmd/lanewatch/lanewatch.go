package main

import (
	"context"
	"flag"
	"log"
	"math/rand"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "modernc.org/sqlite"

	"github.com/banshee-data/lane.report/internal/api"
	"github.com/banshee-data/lane.report/internal/bus"
	"github.com/banshee-data/lane.report/internal/camera"
	"github.com/banshee-data/lane.report/internal/config"
	"github.com/banshee-data/lane.report/internal/db"
	"github.com/banshee-data/lane.report/internal/display"
	"github.com/banshee-data/lane.report/internal/edgefeed"
	"github.com/banshee-data/lane.report/internal/enforce"
	"github.com/banshee-data/lane.report/internal/lane"
	"github.com/banshee-data/lane.report/internal/timeutil"
	"github.com/banshee-data/lane.report/internal/units"
	"github.com/banshee-data/lane.report/internal/version"
)

var (
	devMode    = flag.Bool("dev", false, "Run in dev mode with synthesized sensor traffic")
	listen     = flag.String("listen", ":8080", "Listen address")
	port       = flag.String("port", "/dev/ttyUSB0", "Serial port of the edge sensor controller (ignored in dev mode)")
	configPath = flag.String("config", "", "Path to enforcement config JSON (built-in defaults when empty)")
	dbFile     = flag.String("db", "lane_data.db", "Path to the sqlite database")
	unitsFlag  = flag.String("units", units.KMPH, "Display units for the API (mps, mph, kmph, kph)")
	seed       = flag.Int64("seed", 0, "Seed for the camera simulator and dev traffic (0 = time-based)")
)

func main() {
	flag.Parse()
	log.Printf("lanewatch %s (%s, built %s)", version.Version, version.GitSHA, version.BuildTime)

	// "lanewatch [-db path] migrate <up|down|version|force <n>>" manages the
	// schema directly and exits without starting the pipeline.
	if flag.Arg(0) == "migrate" {
		if err := db.RunMigrateCommand(flag.Args()[1:], *dbFile); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
		return
	}

	if *listen == "" {
		log.Fatal("Listen address is required")
	}
	if !*devMode && *port == "" {
		log.Fatal("Serial port is required")
	}
	if !units.IsValid(*unitsFlag) {
		log.Fatalf("Invalid units %q, valid values are: %s", *unitsFlag, units.GetValidUnitsString())
	}

	cfg := config.EmptyEnforcementConfig()
	if *configPath != "" {
		var err error
		cfg, err = config.LoadEnforcementConfig(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	rngSeed := *seed
	if rngSeed == 0 {
		rngSeed = time.Now().UnixNano()
	}

	var feedPort edgefeed.Porter
	if *devMode {
		feedPort = edgefeed.NewSynthPort(cfg.GetLanes(), rngSeed, cfg.GetQuietWindow()+time.Second)
	} else {
		var err error
		feedPort, err = edgefeed.OpenPort(*port, edgefeed.DefaultPortMode())
		if err != nil {
			log.Fatalf("Failed to open sensor port: %v", err)
		}
	}

	database, err := db.NewDB(*dbFile)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	// bus topology: monitors feed one passage mailbox, the controller fans
	// triggers out to the camera, the camera fans results back
	capacity := cfg.GetMailboxCapacity()
	passages := bus.NewMailbox[lane.Passage]("passages", capacity)
	frames := bus.NewMailbox[enforce.DisplayFrame]("display", capacity)
	triggers := bus.NewBroadcast[enforce.CameraTrigger]("camera_triggers")
	results := bus.NewBroadcast[enforce.CameraResult]("camera_results")
	cameraSub := triggers.Subscribe("camera", capacity)
	controllerSub := results.Subscribe("controller", capacity)

	clock := timeutil.RealClock{}
	feed := edgefeed.NewFeed(feedPort)
	for laneNum := 1; laneNum <= cfg.GetLanes(); laneNum++ {
		feed.Register(laneNum, lane.NewMonitor(laneNum, cfg.GetQuietWindow(), clock, passages))
	}

	limits := enforce.Limits{
		DistanceMM:     cfg.GetDistanceMM(),
		LightLimitKMH:  cfg.GetLightLimitKMH(),
		HeavyLimitKMH:  cfg.GetHeavyLimitKMH(),
		WarningPercent: cfg.GetWarningThresholdPercent(),
	}
	controller := enforce.NewController(limits, passages, frames, triggers, controllerSub, database)

	cam := camera.NewSimulator(
		cameraSub, results,
		cfg.GetCameraProcessingDelay(),
		int(cfg.GetCameraFailurePercent()),
		rand.New(rand.NewSource(rngSeed)),
		clock,
	)

	console := display.NewConsole(frames, true)

	rollups := db.NewRollupWorker(database)
	rollups.Start()
	defer rollups.Stop()

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// edge feed routine reads the sensor port and drives the lane monitors
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer feed.Close()
		if err := feed.Monitor(ctx); err != nil && err != context.Canceled {
			log.Printf("sensor feed error: %v", err)
		}
		log.Print("sensor feed routine terminated")
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		controller.Run(ctx)
		log.Print("controller routine terminated")
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		cam.Run(ctx)
		log.Print("camera routine terminated")
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		console.Run(ctx)
		log.Print("display routine terminated")
	}()

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := api.NewServer(database, cfg, *unitsFlag).ServeMux()

		server := &http.Server{
			Addr:    *listen,
			Handler: api.LoggingMiddleware(mux),
		}

		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
			if err := server.Close(); err != nil {
				log.Printf("HTTP server force close error: %v", err)
			}
		}

		log.Printf("HTTP server routine stopped")
	}()

	wg.Wait()
	log.Printf("Graceful shutdown complete")
}
