// Package config loads the provisioning server's YAML configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ruteri/collection-provisioning-backend/interfaces"
	"gopkg.in/yaml.v3"
)

const (
	IssuerSimulated = "simulated"
	IssuerOnchain   = "onchain"

	DefaultWorkers   = 4
	DefaultQueueSize = 256
)

var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the server configuration. Command line flags override file values.
type Config struct {
	// Creators are the hex addresses allowed to create collections, fixed at first start
	Creators []string `yaml:"creators"`

	// Storage are backend URIs; records are written to all of them
	Storage []string `yaml:"storage"`

	Issuer IssuerConfig `yaml:"issuer"`

	Workers   int `yaml:"workers"`
	QueueSize int `yaml:"queue_size"`
}

// IssuerConfig selects and configures the external issuer.
type IssuerConfig struct {
	Kind string `yaml:"kind"`

	// onchain
	RPCAddr        string        `yaml:"rpc_addr"`
	Contract       string        `yaml:"contract"`
	PrivateKey     string        `yaml:"private_key"`
	ChainID        int64         `yaml:"chain_id"`
	PollInterval   time.Duration `yaml:"poll_interval"`
	ReceiptTimeout time.Duration `yaml:"receipt_timeout"`

	// simulated
	Delay time.Duration `yaml:"delay"`
}

// Load reads, defaults and validates the configuration at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return LoadFromBytes(data)
}

// LoadFromBytes parses, defaults and validates a YAML document.
func LoadFromBytes(data []byte) (*Config, error) {
	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Parse decodes a YAML document and applies defaults without validating.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal yaml: %w", err)
	}
	cfg.ApplyDefaults()
	return &cfg, nil
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Issuer.Kind == "" {
		c.Issuer.Kind = IssuerSimulated
	}
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.QueueSize <= 0 {
		c.QueueSize = DefaultQueueSize
	}
	if len(c.Storage) == 0 {
		c.Storage = []string{"memory://default"}
	}
}

// Validate checks the configuration is usable.
func (c *Config) Validate() error {
	if _, err := c.CreatorAddresses(); err != nil {
		return err
	}
	if _, err := c.StorageLocations(); err != nil {
		return err
	}

	switch c.Issuer.Kind {
	case IssuerSimulated:
	case IssuerOnchain:
		if c.Issuer.RPCAddr == "" {
			return fmt.Errorf("%w: onchain issuer requires rpc_addr", ErrInvalidConfig)
		}
		if _, err := interfaces.NewAddressFromHex(c.Issuer.Contract); err != nil {
			return fmt.Errorf("%w: issuer contract: %v", ErrInvalidConfig, err)
		}
		if c.Issuer.PrivateKey == "" {
			return fmt.Errorf("%w: onchain issuer requires private_key", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown issuer %q", ErrInvalidConfig, c.Issuer.Kind)
	}

	if c.Workers <= 0 || c.QueueSize <= 0 {
		return fmt.Errorf("%w: workers and queue_size must be positive", ErrInvalidConfig)
	}
	return nil
}

// CreatorAddresses parses the creator set.
func (c *Config) CreatorAddresses() ([]interfaces.Address, error) {
	addrs := make([]interfaces.Address, 0, len(c.Creators))
	for _, raw := range c.Creators {
		addr, err := interfaces.NewAddressFromHex(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: creator %q: %v", ErrInvalidConfig, raw, err)
		}
		addrs = append(addrs, addr)
	}
	return addrs, nil
}

// StorageLocations parses the storage URIs.
func (c *Config) StorageLocations() ([]interfaces.StorageBackendLocation, error) {
	if len(c.Storage) == 0 {
		return nil, fmt.Errorf("%w: no storage configured", ErrInvalidConfig)
	}

	locs := make([]interfaces.StorageBackendLocation, 0, len(c.Storage))
	for _, uri := range c.Storage {
		loc, err := interfaces.NewStorageBackendLocation(uri)
		if err != nil {
			return nil, fmt.Errorf("%w: storage %q: %v", ErrInvalidConfig, uri, err)
		}
		locs = append(locs, loc)
	}
	return locs, nil
}
