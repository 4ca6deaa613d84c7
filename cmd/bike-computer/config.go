package main

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/bike-computer/internal/export"
	"github.com/sweeney/bike-computer/internal/gpio"
	"github.com/sweeney/bike-computer/internal/logic"
)

// Config is the daemon configuration. It can be loaded from a YAML file;
// command line flags override individual values.
type Config struct {
	TickMs      int `yaml:"tick_ms"`
	DebounceMs  int `yaml:"debounce_ms"`
	HeartbeatMs int `yaml:"heartbeat_ms"`
	// StandbyMs is the idle time before the display sleeps; 0 disables.
	StandbyMs int `yaml:"standby_ms"`

	GPIO    GPIOConfig    `yaml:"gpio"`
	Storage StorageConfig `yaml:"storage"`
	Clock   ClockConfig   `yaml:"clock"`
	Console ConsoleConfig `yaml:"console"`
	MQTT    MQTTConfig    `yaml:"mqtt"`
	HTTP    HTTPConfig    `yaml:"http"`
}

type GPIOConfig struct {
	Chip      string `yaml:"chip"`
	WheelLine int    `yaml:"wheel_line"`
	// ButtonLines are the Up, Down, Mode and Confirm inputs.
	ButtonLines []int `yaml:"button_lines"`
}

type StorageConfig struct {
	Path string `yaml:"path"`
}

type ClockConfig struct {
	// Device is the RTC character device; empty uses the system clock.
	Device string `yaml:"device"`
}

type ConsoleConfig struct {
	// Path is the serial device; empty disables the console.
	Path string             `yaml:"path"`
	Port export.PortOptions `yaml:"port"`
}

type MQTTConfig struct {
	// Broker is the display bus address; empty disables publishing.
	Broker string `yaml:"broker"`
}

type HTTPConfig struct {
	// Addr is the status server address; empty disables it.
	Addr string `yaml:"addr"`
}

// DefaultConfig returns a fully-populated Config with defaults.
func DefaultConfig() Config {
	return Config{
		TickMs:      20,
		DebounceMs:  30,
		HeartbeatMs: int((15 * time.Minute).Milliseconds()),
		StandbyMs:   int(logic.DefaultStandbyTimeout.Milliseconds()),
		GPIO: GPIOConfig{
			Chip:        gpio.DefaultChip,
			WheelLine:   gpio.DefaultWheelLine,
			ButtonLines: append([]int(nil), gpio.DefaultButtonLines[:]...),
		},
		Storage: StorageConfig{Path: "/var/lib/bike-computer/eeprom.bin"},
		Clock:   ClockConfig{Device: "/dev/rtc0"},
		Console: ConsoleConfig{
			Path: "/dev/ttyS0",
			Port: export.PortOptions{BaudRate: export.DefaultBaudRate, DataBits: 8, StopBits: 1, Parity: "N"},
		},
		MQTT: MQTTConfig{Broker: "tcp://127.0.0.1:1883"},
		HTTP: HTTPConfig{Addr: "127.0.0.1:8080"},
	}
}

// LoadConfigFile reads a YAML config file on top of the defaults. Unknown
// fields are rejected.
func LoadConfigFile(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("config path is empty")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	cfg := DefaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config yaml: %w", err)
	}
	if err := dec.Decode(new(yaml.Node)); !errors.Is(err, io.EOF) {
		if err != nil {
			return Config{}, fmt.Errorf("decode config yaml: %w", err)
		}
		return Config{}, errors.New("decode config yaml: unexpected trailing document")
	}
	return cfg, nil
}

// Validate checks that cfg is usable.
func (c Config) Validate() error {
	if c.TickMs <= 0 {
		return fmt.Errorf("tick_ms must be positive, got %d", c.TickMs)
	}
	if c.DebounceMs < 0 {
		return fmt.Errorf("debounce_ms must not be negative, got %d", c.DebounceMs)
	}
	if c.HeartbeatMs < 0 {
		return fmt.Errorf("heartbeat_ms must not be negative, got %d", c.HeartbeatMs)
	}
	if c.StandbyMs < 0 {
		return fmt.Errorf("standby_ms must not be negative, got %d", c.StandbyMs)
	}
	if c.GPIO.Chip == "" {
		return errors.New("gpio.chip is required")
	}
	if len(c.GPIO.ButtonLines) != logic.NumButtons {
		return fmt.Errorf("gpio.button_lines needs %d lines, got %d", logic.NumButtons, len(c.GPIO.ButtonLines))
	}
	seen := map[int]bool{c.GPIO.WheelLine: true}
	for _, l := range c.GPIO.ButtonLines {
		if seen[l] {
			return fmt.Errorf("gpio line %d is assigned twice", l)
		}
		seen[l] = true
	}
	if c.Storage.Path == "" {
		return errors.New("storage.path is required")
	}
	if c.Console.Path != "" {
		if _, err := c.Console.Port.Normalize(); err != nil {
			return fmt.Errorf("console.port: %w", err)
		}
	}
	return nil
}

// ButtonOffsets returns the button lines in logic.Button order.
func (c Config) ButtonOffsets() [logic.NumButtons]int {
	var out [logic.NumButtons]int
	copy(out[:], c.GPIO.ButtonLines)
	return out
}

// Tick returns the main loop interval.
func (c Config) Tick() time.Duration {
	return time.Duration(c.TickMs) * time.Millisecond
}

// Debounce returns the button debounce duration.
func (c Config) Debounce() time.Duration {
	return time.Duration(c.DebounceMs) * time.Millisecond
}

// Heartbeat returns the heartbeat interval.
func (c Config) Heartbeat() time.Duration {
	return time.Duration(c.HeartbeatMs) * time.Millisecond
}

// Standby returns the standby timeout.
func (c Config) Standby() time.Duration {
	return time.Duration(c.StandbyMs) * time.Millisecond
}

// bindFlags registers the override flags on fs. The returned function
// copies the values of flags that were actually set into cfg.
func bindFlags(fs *flag.FlagSet) func(cfg *Config) {
	tick := fs.Duration("tick", 0, "Main loop interval")
	debounce := fs.Duration("debounce", 0, "Button debounce duration")
	heartbeat := fs.Duration("heartbeat", 0, "Heartbeat interval (0 to disable)")
	standby := fs.Duration("standby", 0, "Idle time before standby (0 to disable)")
	chip := fs.String("chip", "", "GPIO chip")
	wheel := fs.Int("wheel-line", 0, "GPIO line of the wheel sensor")
	storagePath := fs.String("storage", "", "Storage device or image path")
	rtcDevice := fs.String("rtc", "", `RTC device ("" for the system clock)`)
	console := fs.String("console", "", `Serial console device ("" to disable)`)
	baud := fs.Int("baud", 0, "Serial console baud rate")
	broker := fs.String("broker", "", `MQTT broker address ("" to disable)`)
	httpAddr := fs.String("http", "", `HTTP status address ("" to disable)`)

	return func(cfg *Config) {
		fs.Visit(func(f *flag.Flag) {
			switch f.Name {
			case "tick":
				cfg.TickMs = int(tick.Milliseconds())
			case "debounce":
				cfg.DebounceMs = int(debounce.Milliseconds())
			case "heartbeat":
				cfg.HeartbeatMs = int(heartbeat.Milliseconds())
			case "standby":
				cfg.StandbyMs = int(standby.Milliseconds())
			case "chip":
				cfg.GPIO.Chip = *chip
			case "wheel-line":
				cfg.GPIO.WheelLine = *wheel
			case "storage":
				cfg.Storage.Path = *storagePath
			case "rtc":
				cfg.Clock.Device = *rtcDevice
			case "console":
				cfg.Console.Path = *console
			case "baud":
				cfg.Console.Port.BaudRate = *baud
			case "broker":
				cfg.MQTT.Broker = *broker
			case "http":
				cfg.HTTP.Addr = *httpAddr
			}
		})
	}
}
