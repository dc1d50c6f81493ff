// Package config loads and validates drey.yml, the per-project
// configuration shared by every agent process and the CLI.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/dyluth/drey/pkg/midden"
	"gopkg.in/yaml.v3"
)

// DefaultPath is where agents and the CLI look for configuration.
const DefaultPath = "drey.yml"

// DreyConfig represents the top-level drey.yml configuration.
type DreyConfig struct {
	Version string           `yaml:"version"`
	DataDir string           `yaml:"data_dir,omitempty"` // Shared event directory, default ".drey"
	Bus     *BusConfig       `yaml:"bus,omitempty"`
	Agents  map[string]Agent `yaml:"agents"`
}

// BusConfig tunes the event bus shared by all agents. The expected consumer
// count is the archival threshold: it must equal the number of distinct
// agent processes, or events either archive early or pile up forever.
type BusConfig struct {
	PollIntervalMs    int `yaml:"poll_interval_ms,omitempty"`   // Default 1000
	ExpectedConsumers int `yaml:"expected_consumers,omitempty"` // Default: number of agents
}

// Agent represents a single agent configuration.
type Agent struct {
	Role             string `yaml:"role"`                        // hiring, worker, or arbitrator
	ApproveThreshold *int   `yaml:"approve_threshold,omitempty"` // Hiring only: minimum passing score
}

// Validate performs strict validation on the configuration and applies
// defaults in place.
func (c *DreyConfig) Validate() error {
	if c.Version != "1.0" {
		return fmt.Errorf("unsupported version: %s (expected: 1.0)", c.Version)
	}

	if c.DataDir == "" {
		c.DataDir = ".drey"
	}

	if len(c.Agents) == 0 {
		return fmt.Errorf("no agents defined")
	}

	for name, agent := range c.Agents {
		if err := agent.Validate(name); err != nil {
			return err
		}
	}

	// Every role must be unique: the archival threshold assumes one
	// consumer process per configured agent
	rolesSeen := make(map[string]string)
	for agentName, agent := range c.Agents {
		if existing, exists := rolesSeen[agent.Role]; exists {
			return fmt.Errorf("duplicate agent role '%s' found (agents '%s' and '%s'): all agents must have unique roles",
				agent.Role, existing, agentName)
		}
		rolesSeen[agent.Role] = agentName
	}

	if c.Bus == nil {
		c.Bus = &BusConfig{}
	}
	if c.Bus.PollIntervalMs == 0 {
		c.Bus.PollIntervalMs = 1000
	}
	if c.Bus.PollIntervalMs < 0 {
		return fmt.Errorf("bus.poll_interval_ms must be positive, got %d", c.Bus.PollIntervalMs)
	}
	if c.Bus.ExpectedConsumers == 0 {
		c.Bus.ExpectedConsumers = len(c.Agents)
	}
	if c.Bus.ExpectedConsumers < 1 {
		return fmt.Errorf("bus.expected_consumers must be >= 1, got %d", c.Bus.ExpectedConsumers)
	}

	return nil
}

// Validate performs validation on a single agent configuration.
func (a *Agent) Validate(name string) error {
	if a.Role == "" {
		return fmt.Errorf("agent '%s': role is required", name)
	}

	kind := midden.AgentKind(a.Role)
	if err := kind.Validate(); err != nil || kind == midden.AgentUser {
		return fmt.Errorf("agent '%s': invalid role: %s (must be 'hiring', 'worker', or 'arbitrator')", name, a.Role)
	}

	if a.ApproveThreshold != nil {
		if *a.ApproveThreshold < 0 || *a.ApproveThreshold > 100 {
			return fmt.Errorf("agent '%s': approve_threshold must be 0-100, got %d", name, *a.ApproveThreshold)
		}
		if kind != midden.AgentHiring {
			return fmt.Errorf("agent '%s': approve_threshold only applies to the hiring role", name)
		}
	}

	return nil
}

// PollInterval returns the configured poll cadence as a duration.
func (c *DreyConfig) PollInterval() time.Duration {
	return time.Duration(c.Bus.PollIntervalMs) * time.Millisecond
}

// AgentByRole finds the agent entry for a role.
// Returns an error if no agent is configured with that role.
func (c *DreyConfig) AgentByRole(role midden.AgentKind) (string, Agent, error) {
	for name, agent := range c.Agents {
		if agent.Role == string(role) {
			return name, agent, nil
		}
	}
	return "", Agent{}, fmt.Errorf("no agent configured with role '%s'", role)
}

// Load reads and validates drey.yml from the specified path.
func Load(path string) (*DreyConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config DreyConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}
