// Package config loads the YAML configuration file shared by the three
// MMITSS binaries, applying defaults in Valid() instead of panicking on
// a zero value.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is returned by Valid when a field is out of its
// documented range and has no sane default.
var ErrInvalidConfig = errors.New("config: invalid value")

// Config is the shared on-disk configuration for tci, datamgr and aware.
// Fields not relevant to a given binary are simply left unused by it.
type Config struct {
	IntersectionName string `yaml:"intersectionName"`

	Serial SerialConfig `yaml:"serial"`
	Nmap   string       `yaml:"nmapFile"`

	TimingCardFile string `yaml:"timingCardFile"`
	PollTableFile  string `yaml:"pollTableFile"`

	Network NetworkConfig `yaml:"network"`

	DSRCTimeout time.Duration `yaml:"dsrcTimeout"`

	LogLevel string `yaml:"logLevel"`
}

// SerialConfig describes the two AB3418 serial ports (A: listen-only
// SPaT feed, B: polled command/response link).
type SerialConfig struct {
	PortA          string `yaml:"portA"`
	PortB          string `yaml:"portB"`
	BaudRate       int    `yaml:"baudRate"`
	ControllerAddr byte   `yaml:"controllerAddr"`
}

// NetworkConfig describes the UDP endpoints used for inter-process
// fan-out.
type NetworkConfig struct {
	ListenAddr   string   `yaml:"listenAddr"`
	DataMgrAddr  string   `yaml:"dataMgrAddr"`
	AwareAddr    string   `yaml:"awareAddr"`
	TCIAddr      string   `yaml:"tciAddr"`
	RadioAddrs   []string `yaml:"radioAddrs"`
	SavariAddr   string   `yaml:"savariAddr"`
	SavariTypeID uint8    `yaml:"savariTypeId"`
}

// Load reads and parses the YAML config at path, then validates it.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := c.Valid(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Valid applies defaults for unset fields and rejects out-of-range values,
// the same shape as cs104.Config.Valid.
func (c *Config) Valid() error {
	if c == nil {
		return fmt.Errorf("%w: nil config", ErrInvalidConfig)
	}
	if c.IntersectionName == "" {
		return fmt.Errorf("%w: intersectionName is required", ErrInvalidConfig)
	}
	if c.Serial.BaudRate == 0 {
		c.Serial.BaudRate = 9600
	}
	if c.Serial.ControllerAddr == 0 {
		c.Serial.ControllerAddr = 1
	}
	if c.DSRCTimeout == 0 {
		c.DSRCTimeout = 2 * time.Second
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Network.ListenAddr == "" {
		return fmt.Errorf("%w: network.listenAddr is required", ErrInvalidConfig)
	}
	return nil
}
