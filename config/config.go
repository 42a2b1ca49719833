package config

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/sugawarayuuta/sonnet"

	"lfcore/log"
)

// Core tunes the lock-free structures.
type Core struct {
	// Reclaimer is "hazard" or "epoch".
	Reclaimer       string `json:"reclaimer"`
	RetireThreshold int    `json:"retire_threshold"`
	// Capacity bounds each structure; 0 is unbounded.
	Capacity   int `json:"capacity"`
	BackoffMin int `json:"backoff_min_spins"`
	BackoffMax int `json:"backoff_max_spins"`
}

type Server struct {
	GRPCAddr    string `json:"grpc_addr"`
	MetricsAddr string `json:"metrics_addr"`
}

type Store struct {
	Dir string `json:"dir"`
}

type Publish struct {
	// Sink is "none", "kafka-go" or "sarama".
	Sink     string        `json:"sink"`
	Brokers  []string      `json:"brokers"`
	Topic    string        `json:"topic"`
	Interval time.Duration `json:"interval"`
	MaxRetry uint32        `json:"max_retry"`
}

type Stress struct {
	// Structure is "stack" or "queue".
	Structure   string        `json:"structure"`
	Producers   int           `json:"producers"`
	Consumers   int           `json:"consumers"`
	PerProducer int           `json:"per_producer"`
	Timeout     time.Duration `json:"timeout"`
}

// Config is the whole configuration file.
type Config struct {
	Log     log.Config `json:"log"`
	Core    Core       `json:"core"`
	Server  Server     `json:"server"`
	Store   Store      `json:"store"`
	Publish Publish    `json:"publish"`
	Stress  Stress     `json:"stress"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Core: Core{
			Reclaimer:       "hazard",
			RetireThreshold: 64,
			BackoffMin:      4,
			BackoffMax:      1024,
		},
		Server: Server{
			GRPCAddr:    ":50051",
			MetricsAddr: ":9090",
		},
		Store: Store{Dir: "./lfcore_runs"},
		Publish: Publish{
			Sink:     "none",
			Topic:    "lfcore.reports",
			Interval: 2 * time.Second,
			MaxRetry: 5,
		},
		Stress: Stress{
			Structure:   "stack",
			Producers:   3,
			Consumers:   2,
			PerProducer: 1000,
			Timeout:     time.Minute,
		},
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read config %s", path)
	}
	var file Config
	if err := sonnet.Unmarshal(data, &file); err != nil {
		return nil, errors.Wrapf(err, "parse config %s", path)
	}
	cfg.merge(&file)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// merge copies every non-zero field of o into c.
func (c *Config) merge(o *Config) {
	if o.Log.File != "" {
		c.Log.File = o.Log.File
	}
	c.Log.Debug = c.Log.Debug || o.Log.Debug

	setString(&c.Core.Reclaimer, o.Core.Reclaimer)
	setInt(&c.Core.RetireThreshold, o.Core.RetireThreshold)
	setInt(&c.Core.Capacity, o.Core.Capacity)
	setInt(&c.Core.BackoffMin, o.Core.BackoffMin)
	setInt(&c.Core.BackoffMax, o.Core.BackoffMax)

	setString(&c.Server.GRPCAddr, o.Server.GRPCAddr)
	setString(&c.Server.MetricsAddr, o.Server.MetricsAddr)
	setString(&c.Store.Dir, o.Store.Dir)

	setString(&c.Publish.Sink, o.Publish.Sink)
	if len(o.Publish.Brokers) > 0 {
		c.Publish.Brokers = o.Publish.Brokers
	}
	setString(&c.Publish.Topic, o.Publish.Topic)
	if o.Publish.Interval > 0 {
		c.Publish.Interval = o.Publish.Interval
	}
	if o.Publish.MaxRetry > 0 {
		c.Publish.MaxRetry = o.Publish.MaxRetry
	}

	setString(&c.Stress.Structure, o.Stress.Structure)
	setInt(&c.Stress.Producers, o.Stress.Producers)
	setInt(&c.Stress.Consumers, o.Stress.Consumers)
	setInt(&c.Stress.PerProducer, o.Stress.PerProducer)
	if o.Stress.Timeout > 0 {
		c.Stress.Timeout = o.Stress.Timeout
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

// Validate rejects values the rest of the system cannot run with.
func (c *Config) Validate() error {
	switch c.Core.Reclaimer {
	case "hazard", "epoch":
	default:
		return errors.Newf("config: core.reclaimer must be hazard or epoch, got %q", c.Core.Reclaimer)
	}
	if c.Core.Capacity < 0 {
		return errors.Newf("config: core.capacity must be >= 0, got %d", c.Core.Capacity)
	}
	switch c.Publish.Sink {
	case "none":
	case "kafka-go", "sarama":
		if len(c.Publish.Brokers) == 0 {
			return errors.Newf("config: publish.sink %s needs brokers", c.Publish.Sink)
		}
	default:
		return errors.Newf("config: unknown publish.sink %q", c.Publish.Sink)
	}
	switch c.Stress.Structure {
	case "stack", "queue":
	default:
		return errors.Newf("config: stress.structure must be stack or queue, got %q", c.Stress.Structure)
	}
	if c.Stress.Producers <= 0 || c.Stress.Consumers <= 0 || c.Stress.PerProducer <= 0 {
		return errors.New("config: stress producers, consumers and per_producer must be positive")
	}
	return nil
}
