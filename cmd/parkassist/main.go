package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/parking.assist/internal/api"
	"github.com/banshee-data/parking.assist/internal/config"
	"github.com/banshee-data/parking.assist/internal/gpio"
	"github.com/banshee-data/parking.assist/internal/metrics"
	"github.com/banshee-data/parking.assist/internal/monitoring"
	"github.com/banshee-data/parking.assist/internal/proximity"
	"github.com/banshee-data/parking.assist/internal/publish"
	"github.com/banshee-data/parking.assist/internal/reading"
	"github.com/banshee-data/parking.assist/internal/sensor"
	"github.com/banshee-data/parking.assist/internal/sensorloop"
	"github.com/banshee-data/parking.assist/internal/timeutil"
	"github.com/banshee-data/parking.assist/internal/version"
	"github.com/banshee-data/parking.assist/web"
)

var (
	configPath  = flag.String("config", "", "Path to a JSON config file (optional)")
	listen      = flag.String("listen", "", "Listen address (overrides the config file; default :8080)")
	devMode     = flag.Bool("dev", false, "Run with a simulated sensor and in-memory LEDs")
	debug       = flag.Bool("debug", false, "Enable debug logging")
	staticDir   = flag.String("static-dir", "", "Serve the display from this directory instead of the embedded files")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

// devSweepPeriod and devDropEvery shape the simulated approach in dev mode.
const (
	devSweepPeriod = 20 * time.Second
	devDropEvery   = 7
)

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Empty(), nil
	}
	return config.Load(path)
}

// openChip returns the chip the board is built from. In dev mode the chip is
// in memory and the ranging module is simulated on the trigger and echo lines.
func openChip(cfg *config.Config, dev bool, clock timeutil.Clock) (gpio.Chip, error) {
	if dev {
		pins := cfg.GetPins()
		sim := sensor.NewSimulator(clock, sensor.Sweep(clock, devSweepPeriod, devDropEvery))
		chip := gpio.NewMockChip()
		chip.AttachOutput(pins.Trigger, sim.TriggerLine())
		chip.AttachInput(pins.Echo, sim.EchoLine())
		return chip, nil
	}
	switch cfg.GetGPIOBackend() {
	case config.BackendPeriph:
		return gpio.OpenPeriphChip(cfg.GetPeriphBase())
	default:
		return gpio.OpenCdevChip(cfg.GetGPIOChip())
	}
}

func staticFS(dir string) fs.FS {
	if dir != "" {
		return os.DirFS(dir)
	}
	return web.StaticFiles()
}

func printBanner(w io.Writer, cfg *config.Config, addr string, dev bool) {
	pins := cfg.GetPins()
	th := cfg.GetThresholds()
	source := cfg.GetGPIOBackend() + " " + cfg.GetGPIOChip()
	if dev {
		source = "simulated (dev mode)"
	}
	line := "============================================================"
	fmt.Fprintln(w, line)
	fmt.Fprintf(w, "Parking Assist %s\n", version.Version)
	fmt.Fprintln(w, line)
	fmt.Fprintf(w, "Sensor:  %s, trigger %d, echo %d\n", source, pins.Trigger, pins.Echo)
	fmt.Fprintf(w, "LEDs:    red %d, yellow %d, green %d\n", pins.Red, pins.Yellow, pins.Green)
	fmt.Fprintf(w, "Bands:   0-%gcm %s | %g-%gcm %s | %g-%gcm %s | >%gcm %s\n",
		th.NearCM, proximity.Near.Label(),
		th.NearCM, th.MidCM, proximity.Mid.Label(),
		th.MidCM, th.FarCM, proximity.Far.Label(),
		th.FarCM, proximity.Clear.Label())
	fmt.Fprintf(w, "Display: http://<device-ip>%s/\n", addr)
	fmt.Fprintln(w, line)
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("parkassist %s (%s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
		return
	}

	if err := monitoring.Init(*debug); err != nil {
		log.Fatalf("failed to initialise logging: %v", err)
	}
	defer monitoring.Sync()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	addr := cfg.GetListen()
	if *listen != "" {
		addr = *listen
	}

	clock := timeutil.RealClock{}

	chip, err := openChip(cfg, *devMode, clock)
	if err != nil {
		log.Fatalf("failed to open gpio chip: %v", err)
	}
	board, err := gpio.OpenBoard(chip, cfg.GetPins())
	if err != nil {
		log.Fatalf("failed to acquire gpio lines: %v", err)
	}
	defer func() {
		if err := board.Close(); err != nil {
			monitoring.Errorf("failed to release gpio lines: %v", err)
		}
	}()

	printBanner(os.Stdout, cfg, addr, *devMode)

	store := reading.NewStore()
	m := metrics.New(true)

	timer := sensor.NewPulseTimer(board.Trigger, board.Echo, clock)
	timer.Timeout = cfg.GetEchoTimeout()
	loop := sensorloop.New(timer, cfg.GetThresholds(), store, proximity.NewIndicatorBank(board.Indicators()), clock)
	loop.Interval = cfg.GetInterval()
	loop.Observer = m

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// sensor loop: the only goroutine touching the gpio lines
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := loop.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			monitoring.Errorf("sensor loop: %v", err)
		}
		monitoring.Infof("sensor loop terminated")
	}()

	if broker := cfg.GetMQTTBroker(); broker != "" {
		client, err := publish.Dial(broker, cfg.GetMQTTClientID())
		if err != nil {
			monitoring.Errorf("mqtt disabled: %v", err)
		} else {
			wg.Add(1)
			go func() {
				defer wg.Done()
				publish.New(client, cfg.GetMQTTTopic()).Run(ctx, store)
				monitoring.Infof("mqtt publisher terminated")
			}()
		}
	}

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		apiServer := api.NewServer(store, clock)
		apiServer.Static = staticFS(*staticDir)
		apiServer.Metrics = m.Handler()

		server := &http.Server{
			Addr:              addr,
			Handler:           api.LoggingMiddleware(apiServer.ServeMux()),
			ReadHeaderTimeout: 5 * time.Second,
		}

		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				monitoring.Errorf("failed to start server: %v", err)
				stop()
			}
		}()
		monitoring.Infof("HTTP server listening on %s", addr)

		<-ctx.Done()
		monitoring.Infof("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			monitoring.Warnf("HTTP server shutdown error: %v", err)
			if err := server.Close(); err != nil {
				monitoring.Warnf("HTTP server force close error: %v", err)
			}
		}
		monitoring.Infof("HTTP server routine stopped")
	}()

	wg.Wait()
	monitoring.Infof("graceful shutdown complete")
}
