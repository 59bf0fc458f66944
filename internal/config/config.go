// Package config loads and validates the caseboard.yml session
// configuration: the agent roster, question timeout defaults, and the
// consensus topics with their resolution policies and severity orderings.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/chandana-solix/healthcare-ai-multiagent-system/pkg/blackboard"
)

// Config represents the top-level caseboard.yml configuration.
type Config struct {
	Version   string                    `yaml:"version"`
	Session   *SessionSettings          `yaml:"session,omitempty"`
	Agents    map[string]Agent          `yaml:"agents"`
	Consensus map[string]ConsensusTopic `yaml:"consensus,omitempty"`
}

// SessionSettings specifies session-level bus behavior.
type SessionSettings struct {
	QuestionTimeout string `yaml:"question_timeout,omitempty"` // Default deadline for questions asked without one (Go duration)
	SweepInterval   string `yaml:"sweep_interval,omitempty"`   // Question expiry sweep period (Go duration)
}

// Agent represents a single agent configuration.
type Agent struct {
	Role string `yaml:"role"` // Required: human-readable description of the agent's specialty
}

// ConsensusTopic configures consensus tracking for one topic.
type ConsensusTopic struct {
	Policy         string   `yaml:"policy"`                    // Required: unanimous-safe or quorum-weighted
	RequiredVoters []string `yaml:"required_voters"`           // Required: agent names whose opinions count
	Quorum         float64  `yaml:"quorum,omitempty"`          // Fraction of required voters for quorum-weighted
	SeverityOrder  []string `yaml:"severity_order"`            // Required: stances from least to most severe
}

// Load reads and parses a caseboard.yml file.
// Returns an error if the file doesn't exist, is invalid YAML, or fails validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid YAML in %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", path, err)
	}

	return &cfg, nil
}

// Validate performs strict validation on the configuration.
func (c *Config) Validate() error {
	// Required: version
	if c.Version != "1.0" {
		return fmt.Errorf("unsupported version: %s (expected: 1.0)", c.Version)
	}

	// Required: at least one agent
	if len(c.Agents) == 0 {
		return fmt.Errorf("no agents defined")
	}

	for name, agent := range c.Agents {
		if agent.Role == "" {
			return fmt.Errorf("agent '%s': role is required", name)
		}
	}

	if c.Session != nil {
		if _, err := parseDuration(c.Session.QuestionTimeout); err != nil {
			return fmt.Errorf("session.question_timeout: %w", err)
		}
		if _, err := parseDuration(c.Session.SweepInterval); err != nil {
			return fmt.Errorf("session.sweep_interval: %w", err)
		}
	}

	for topic, tc := range c.Consensus {
		bus := tc.toBusConfig(topic)
		if err := bus.Validate(); err != nil {
			return err
		}

		// Every required voter must be a defined agent, otherwise the
		// topic can never resolve.
		for _, voter := range tc.RequiredVoters {
			if _, ok := c.Agents[voter]; !ok {
				return fmt.Errorf("consensus topic '%s': required voter '%s' is not a defined agent", topic, voter)
			}
		}
	}

	return nil
}

// SessionConfig converts the file configuration into the bus session
// configuration, using name as the session identifier.
// Call Validate (or Load, which validates) first.
func (c *Config) SessionConfig(name string) (blackboard.SessionConfig, error) {
	out := blackboard.SessionConfig{Name: name}

	if c.Session != nil {
		timeout, err := parseDuration(c.Session.QuestionTimeout)
		if err != nil {
			return out, fmt.Errorf("session.question_timeout: %w", err)
		}
		sweep, err := parseDuration(c.Session.SweepInterval)
		if err != nil {
			return out, fmt.Errorf("session.sweep_interval: %w", err)
		}
		out.QuestionTimeout = timeout
		out.SweepInterval = sweep
	}

	for topic, tc := range c.Consensus {
		out.Consensus = append(out.Consensus, tc.toBusConfig(topic))
	}

	return out, nil
}

// toBusConfig converts a file-level consensus topic into the bus configuration.
func (tc ConsensusTopic) toBusConfig(topic string) blackboard.ConsensusTopicConfig {
	return blackboard.ConsensusTopicConfig{
		Topic:          topic,
		Policy:         blackboard.ResolutionPolicy(tc.Policy),
		RequiredVoters: tc.RequiredVoters,
		Quorum:         tc.Quorum,
		SeverityOrder:  tc.SeverityOrder,
	}
}

// parseDuration parses an optional Go duration string.
// An empty string means "not set" and parses to zero.
func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q (use Go duration syntax like '30s' or '100ms')", s)
	}
	if d < 0 {
		return 0, fmt.Errorf("duration cannot be negative: %s", s)
	}
	return d, nil
}
