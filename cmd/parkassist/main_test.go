package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/banshee-data/parking.assist/internal/api"
	"github.com/banshee-data/parking.assist/internal/config"
	"github.com/banshee-data/parking.assist/internal/gpio"
	"github.com/banshee-data/parking.assist/internal/proximity"
	"github.com/banshee-data/parking.assist/internal/reading"
	"github.com/banshee-data/parking.assist/internal/sensor"
	"github.com/banshee-data/parking.assist/internal/sensorloop"
	"github.com/banshee-data/parking.assist/internal/timeutil"
)

func TestFlagDefaults(t *testing.T) {
	if *configPath != "" {
		t.Errorf("config default = %q, want empty", *configPath)
	}
	if *listen != "" {
		t.Errorf("listen default = %q, want empty (config decides)", *listen)
	}
	if *devMode || *debug || *showVersion {
		t.Error("boolean flags should default to false")
	}
}

func TestLoadConfig(t *testing.T) {
	cfg, err := loadConfig("")
	if err != nil {
		t.Fatalf("loadConfig(\"\") error: %v", err)
	}
	if cfg.GetListen() != ":8080" {
		t.Errorf("listen = %q", cfg.GetListen())
	}

	path := filepath.Join(t.TempDir(), "c.json")
	if err := os.WriteFile(path, []byte(`{"near_cm": 10, "mid_cm": 20, "far_cm": 30}`), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err = loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig error: %v", err)
	}
	if got := cfg.GetThresholds().NearCM; got != 10 {
		t.Errorf("near = %v, want 10", got)
	}
}

func TestPrintBanner(t *testing.T) {
	var buf bytes.Buffer
	printBanner(&buf, config.Empty(), ":8080", true)
	out := buf.String()
	for _, want := range []string{
		"simulated (dev mode)",
		"trigger 30, echo 31",
		"red 15, yellow 12, green 13",
		"0-15cm STOP - Too close!",
		">45cm CLEAR - Optimal spacing",
		"http://<device-ip>:8080/",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("banner missing %q:\n%s", want, out)
		}
	}
}

func TestStaticFS(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("local"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := staticFS(dir).Open("index.html"); err != nil {
		t.Errorf("dir fs: %v", err)
	}
	if _, err := staticFS("").Open("index.html"); err != nil {
		t.Errorf("embedded fs: %v", err)
	}
}

// The dev-mode wiring runs the whole path without hardware: simulated
// sensor, loop, store and the /data endpoint.
func TestDevModeEndToEnd(t *testing.T) {
	clock := timeutil.NewMockClock(time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC))
	cfg := config.Empty()

	chip, err := openChip(cfg, true, clock)
	if err != nil {
		t.Fatalf("openChip: %v", err)
	}
	board, err := gpio.OpenBoard(chip, cfg.GetPins())
	if err != nil {
		t.Fatalf("OpenBoard: %v", err)
	}
	defer board.Close()

	store := reading.NewStore()
	timer := sensor.NewPulseTimer(board.Trigger, board.Echo, clock)
	loop := sensorloop.New(timer, cfg.GetThresholds(), store, proximity.NewIndicatorBank(board.Indicators()), clock)

	r, ok := loop.Step()
	if !ok {
		t.Fatal("first simulated cycle published nothing")
	}
	// the sweep starts at its far end
	if r.Distance < 79 || r.Distance > 81 || r.Band != proximity.Clear {
		t.Errorf("reading = %+v, want about 80cm CLEAR", r)
	}

	srv := api.NewServer(store, clock)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/data", nil))
	var body map[string]float64
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["distance"] != float64(r.Distance) {
		t.Errorf("/data distance = %v, want %v", body["distance"], r.Distance)
	}

	if err := loop.Shutdown(); err != nil {
		t.Errorf("Shutdown: %v", err)
	}
}

func TestOpenChip_UnknownChipFails(t *testing.T) {
	name := "gpiochip-does-not-exist"
	cfg := &config.Config{GPIOChip: &name}
	if _, err := openChip(cfg, false, timeutil.RealClock{}); err == nil {
		t.Error("expected error opening a missing chip")
	}
}
