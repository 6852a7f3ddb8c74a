package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config models tasknode.yml.
type Config struct {
	Node struct {
		ID           string   `yaml:"id"`
		Address      string   `yaml:"address"`
		Remembrancer string   `yaml:"remembrancer"`
		Extra        []string `yaml:"extra_addresses"`
	} `yaml:"node"`
	Gates struct {
		RequireAuthorization bool    `yaml:"require_authorization"`
		MinFee               float64 `yaml:"min_fee"`
		MinRiteLength        int     `yaml:"min_rite_length"`
		ODVMinBalance        float64 `yaml:"odv_min_balance"`
	} `yaml:"gates"`
	Rewards struct {
		Min        int `yaml:"min"`
		Max        int `yaml:"max"`
		WindowDays int `yaml:"window_days"`
	} `yaml:"rewards"`
	Reasoning struct {
		Model     string `yaml:"model"`
		TaskModel string `yaml:"task_model"`
	} `yaml:"reasoning"`
	Context struct {
		Memos         int `yaml:"memos"`
		Pending       int `yaml:"pending"`
		Acceptances   int `yaml:"acceptances"`
		Verifications int `yaml:"verifications"`
		Rewards       int `yaml:"rewards"`
		Refusals      int `yaml:"refusals"`
	} `yaml:"context"`
	Testnet struct {
		Enabled             bool `yaml:"enabled"`
		EnableReinitiations bool `yaml:"enable_reinitiations"`
	} `yaml:"testnet"`
}

// NodeAddresses returns every node-controlled address, primary first.
func (c *Config) NodeAddresses() []string {
	out := []string{c.Node.Address}
	if c.Node.Remembrancer != "" {
		out = append(out, c.Node.Remembrancer)
	}
	return append(out, c.Node.Extra...)
}

// IsNodeAddress reports whether addr is controlled by this node.
func (c *Config) IsNodeAddress(addr string) bool {
	for _, a := range c.NodeAddresses() {
		if a == addr {
			return true
		}
	}
	return false
}

// ReinitiationsAllowed reports whether the re-initiation override is active.
// Only honored on testnet.
func (c *Config) ReinitiationsAllowed() bool {
	return c.Testnet.Enabled && c.Testnet.EnableReinitiations
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Node.ID == "" {
		return fmt.Errorf("config.node.id is required")
	}
	if c.Node.Address == "" {
		return fmt.Errorf("config.node.address is required")
	}
	if c.Gates.MinFee < 0 {
		return fmt.Errorf("config.gates.min_fee must not be negative")
	}
	if c.Gates.MinRiteLength <= 0 {
		return fmt.Errorf("config.gates.min_rite_length must be positive")
	}
	if c.Rewards.Min < 1 {
		return fmt.Errorf("config.rewards.min must be at least 1")
	}
	if c.Rewards.Max < c.Rewards.Min {
		return fmt.Errorf("config.rewards.max must be >= min")
	}
	if c.Rewards.WindowDays <= 0 {
		return fmt.Errorf("config.rewards.window_days must be positive")
	}
	if c.Reasoning.Model == "" {
		return fmt.Errorf("config.reasoning.model is required")
	}
	return nil
}

// Default returns the default Config struct for a node.
func Default(nodeID string) *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(fmt.Sprintf(defaultTemplate, nodeID))).Decode(&cfg)
	cfg.Node.ID = nodeID
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `node:
  id: %s
  address: rNodePrimaryAddress
  remembrancer: rNodeRemembrancerAddress
  extra_addresses: []

gates:
  require_authorization: false
  min_fee: 1
  min_rite_length: 10
  odv_min_balance: 2000

rewards:
  min: 1
  max: 1200
  window_days: 35

reasoning:
  model: gemini-2.5-pro
  task_model: gemini-2.5-pro

context:
  memos: 30
  pending: 100
  acceptances: 40
  verifications: 30
  rewards: 30
  refusals: 30

testnet:
  enabled: false
  enable_reinitiations: false
`
