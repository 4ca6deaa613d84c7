// Command bike-computer reads the wheel sensor and buttons, runs the ride
// engine and publishes ride events to the on-device display bus.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sweeney/bike-computer/internal/computer"
	"github.com/sweeney/bike-computer/internal/export"
	"github.com/sweeney/bike-computer/internal/gpio"
	"github.com/sweeney/bike-computer/internal/logic"
	"github.com/sweeney/bike-computer/internal/mqtt"
	"github.com/sweeney/bike-computer/internal/pulse"
	"github.com/sweeney/bike-computer/internal/rtc"
	"github.com/sweeney/bike-computer/internal/status"
	"github.com/sweeney/bike-computer/internal/storage"
	"github.com/sweeney/bike-computer/internal/web"
)

// actions are one-shot maintenance operations selected on the command line.
type actions struct {
	printState   bool
	factoryReset bool
	// wheel is a new wheel diameter in inches; 0 leaves it unchanged.
	wheel float64
}

func main() {
	configPath := flag.String("config", "", "YAML config file")
	printState := flag.Bool("print-state", false, "Print stored state and exit")
	factoryReset := flag.Bool("factory-reset", false, "Erase odometer, trip log and calibration, then exit")
	wheel := flag.Float64("wheel", 0, "Set the wheel diameter in inches (clamped to 12-32)")
	applyFlags := bindFlags(flag.CommandLine)

	flag.Parse()

	cfg := DefaultConfig()
	if *configPath != "" {
		var err error
		if cfg, err = LoadConfigFile(*configPath); err != nil {
			log.Fatalf("config: %v", err)
		}
	}
	applyFlags(&cfg)
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	act := actions{printState: *printState, factoryReset: *factoryReset, wheel: *wheel}
	if err := run(cfg, act); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run(cfg Config, act actions) error {
	dev, err := storage.OpenFile(cfg.Storage.Path, storage.Size)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer dev.Close()

	store, err := storage.New(dev)
	if err != nil {
		return err
	}

	clock, closeClock := openClock(cfg.Clock.Device)
	defer closeClock()

	capture := pulse.NewCapture()
	comp, err := computer.New(gpio.Monotonic(), capture, store, clock, computer.Config{
		StandbyTimeout: cfg.Standby(),
	})
	if err != nil {
		return err
	}
	if comp.Initialized() {
		log.Printf("storage: initialised %s with defaults", cfg.Storage.Path)
	}

	if done, err := maintain(comp, act, os.Stdout); done || err != nil {
		return err
	}

	buttons, err := gpio.NewRealReader(cfg.GPIO.Chip, cfg.ButtonOffsets())
	if err != nil {
		return fmt.Errorf("init buttons: %w", err)
	}
	defer buttons.Close()

	sensor, err := gpio.NewPulseSensor(cfg.GPIO.Chip, cfg.GPIO.WheelLine, capture)
	if err != nil {
		return fmt.Errorf("init wheel sensor: %w", err)
	}
	defer sensor.Close()

	var console *export.Console
	if cfg.Console.Path != "" {
		port, err := export.OpenSerial(cfg.Console.Path, cfg.Console.Port)
		if err != nil {
			return err
		}
		if console, err = export.NewConsole(port); err != nil {
			port.Close()
			return fmt.Errorf("init console: %w", err)
		}
		defer console.Close()
	}

	var publisher mqtt.Publisher = offlinePublisher{}
	var mqttStatus mqtt.ConnectionStatus = offlinePublisher{}
	if cfg.MQTT.Broker != "" {
		p, err := mqtt.NewRealPublisher(cfg.MQTT.Broker)
		if err != nil {
			return fmt.Errorf("init mqtt: %w", err)
		}
		publisher, mqttStatus = p, p
	}
	defer publisher.Close()

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(time.Now(), status.Config{
		TickMs:      int64(cfg.TickMs),
		DebounceMs:  int64(cfg.DebounceMs),
		HeartbeatMs: int64(cfg.HeartbeatMs),
		StandbyMs:   int64(cfg.StandbyMs),
		Broker:      cfg.MQTT.Broker,
		HTTPAddr:    cfg.HTTP.Addr,
		Storage:     cfg.Storage.Path,
		Console:     cfg.Console.Path,
	})
	tracker.Update(comp.Ride(), false, comp.Counts())
	tracker.SetMQTTConnected(mqttStatus.IsConnected())

	// Publish startup event with full status snapshot
	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  clock.Now(),
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startupEvent); err != nil {
		log.Printf("failed to publish startup event: %v", err)
	} else {
		log.Printf("published startup event")
	}

	log.Printf("started: tick=%v debounce=%v standby=%v broker=%q console=%q http=%q",
		cfg.Tick(), cfg.Debounce(), cfg.Standby(), cfg.MQTT.Broker, cfg.Console.Path, cfg.HTTP.Addr)

	ticker := time.NewTicker(cfg.Tick())
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer cancel()
		l := &loop{
			buttons:    buttons,
			comp:       comp,
			console:    console,
			publisher:  publisher,
			mqttStatus: mqttStatus,
			tracker:    tracker,
			clock:      clock,
			debouncer:  logic.NewDebouncer(cfg.Debounce()),
			heartbeat:  cfg.Heartbeat(),
			mono:       gpio.Monotonic,
		}
		return l.run(ticker.C, sigCh)
	})

	if cfg.HTTP.Addr != "" {
		srv := web.New(cfg.HTTP.Addr, tracker)
		g.Go(func() error {
			log.Printf("http status server listening on %s", cfg.HTTP.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				// The ride loop keeps running without the status page
				log.Printf("http server error: %v", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, done := context.WithTimeout(context.Background(), 2*time.Second)
			defer done()
			return srv.Shutdown(shutdownCtx)
		})
	}

	return g.Wait()
}

// openClock returns the hardware RTC at device, or the system clock if
// device is empty or cannot be opened.
func openClock(device string) (rtc.Clock, func()) {
	if device != "" {
		hw, err := rtc.OpenHardwareClock(device)
		if err == nil {
			return hw, func() { hw.Close() }
		}
		log.Printf("rtc: %v, using system clock", err)
	}
	return rtc.NewSystemClock(), func() {}
}

// maintain performs the one-shot actions. done reports that the process
// should exit afterwards.
func maintain(comp *computer.Computer, act actions, out io.Writer) (done bool, err error) {
	if act.factoryReset {
		if err := comp.FactoryReset(gpio.Monotonic()); err != nil {
			return true, err
		}
		fmt.Fprintln(out, "factory reset complete")
		return true, nil
	}

	if act.wheel != 0 {
		applied, err := comp.SetWheelDiameter(act.wheel)
		if err != nil {
			return true, fmt.Errorf("set wheel diameter: %w", err)
		}
		log.Printf("calibration: wheel diameter %.1f in", applied)
	}

	if act.printState {
		ride := comp.Ride()
		fmt.Fprintf(out, "wheel: %.1f in\n", ride.WheelDiameter)
		fmt.Fprintf(out, "odometer: %.3f km\n", ride.Odometer.KM)
		fmt.Fprintf(out, "ride time: %v\n", ride.Odometer.RideTime.Truncate(time.Second))
		fmt.Fprintf(out, "next trip slot: %d\n", ride.TripIndex)
		return true, export.Write(out, comp.Trips())
	}
	return false, nil
}

// offlinePublisher is used when no broker is configured.
type offlinePublisher struct{}

func (offlinePublisher) Publish(logic.Event) error            { return nil }
func (offlinePublisher) PublishSystem(mqtt.SystemEvent) error { return nil }
func (offlinePublisher) Close() error                         { return nil }
func (offlinePublisher) IsConnected() bool                    { return false }
