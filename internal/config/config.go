// Package config loads the estimator node's YAML configuration.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the complete node configuration.
type Config struct {
	// InstanceID names this node on the broker.
	InstanceID string `yaml:"instance_id"`

	// RateHz is the control-loop rate.
	RateHz float64 `yaml:"rate_hz"`

	// ShapePrior is the object polygon in the world manipulation frame at
	// grasp time, (normal, tangential) per vertex, in the same winding the
	// vision pipeline publishes.
	ShapePrior [][2]float64 `yaml:"shape_prior"`

	MQTT    MQTTConfig    `yaml:"mqtt"`
	Replay  ReplayConfig  `yaml:"replay"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// MQTTConfig contains broker settings for live mode.
type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`

	Topics TopicsConfig `yaml:"topics"`
}

// TopicsConfig names every topic the node subscribes to or publishes.
// Empty fields fall back to the defaults below.
type TopicsConfig struct {
	Pose            string `yaml:"pose"`
	WorldWrench     string `yaml:"world_wrench"`
	EEWrench        string `yaml:"ee_wrench"`
	TorqueBoundary  string `yaml:"torque_boundary"`
	SlidingState    string `yaml:"sliding_state"`
	Friction        string `yaml:"friction"`
	Vision          string `yaml:"vision"`
	PivotFrame      string `yaml:"pivot_frame"`
	ContactEstimate string `yaml:"contact_estimate"`
}

// ReplayConfig selects replay mode when DB is set.
type ReplayConfig struct {
	// DB is the path to a recorded bag database.
	DB string `yaml:"db"`
	// Session selects one recording session; empty means the most recent.
	Session string `yaml:"session"`
}

// MetricsConfig configures the prometheus endpoint.
type MetricsConfig struct {
	// Addr is the listen address for /metrics; empty disables serving.
	Addr string `yaml:"addr"`
}

// DefaultTopics mirrors the ROS topic graph the node grew up on.
func DefaultTopics() TopicsConfig {
	return TopicsConfig{
		Pose:            "pbal/ee_pose_in_world_manipulation",
		WorldWrench:     "pbal/end_effector_sensor_in_world_manipulation_frame",
		EEWrench:        "pbal/end_effector_sensor_in_end_effector_frame",
		TorqueBoundary:  "pbal/torque_cone_boundary_test",
		SlidingState:    "pbal/sliding_state",
		Friction:        "pbal/friction_parameters",
		Vision:          "pbal/polygon_vision_estimate",
		PivotFrame:      "pbal/pivot_frame_estimated",
		ContactEstimate: "pbal/polygon_contact_estimate",
	}
}

// Load reads and validates a YAML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.InstanceID == "" {
		c.InstanceID = "pbal-estimator"
	}
	if c.RateHz == 0 {
		c.RateHz = 100
	}

	defaults := DefaultTopics()
	t := &c.MQTT.Topics
	fill := func(dst *string, def string) {
		if *dst == "" {
			*dst = def
		}
	}
	fill(&t.Pose, defaults.Pose)
	fill(&t.WorldWrench, defaults.WorldWrench)
	fill(&t.EEWrench, defaults.EEWrench)
	fill(&t.TorqueBoundary, defaults.TorqueBoundary)
	fill(&t.SlidingState, defaults.SlidingState)
	fill(&t.Friction, defaults.Friction)
	fill(&t.Vision, defaults.Vision)
	fill(&t.PivotFrame, defaults.PivotFrame)
	fill(&t.ContactEstimate, defaults.ContactEstimate)
}

func (c *Config) validate() error {
	if c.RateHz <= 0 {
		return fmt.Errorf("rate_hz must be positive, got %v", c.RateHz)
	}
	if len(c.ShapePrior) > 0 && len(c.ShapePrior) < 3 {
		return fmt.Errorf("shape_prior needs at least 3 vertices, got %d", len(c.ShapePrior))
	}
	if c.Replay.DB == "" && c.MQTT.Broker == "" {
		return fmt.Errorf("either mqtt.broker or replay.db must be set")
	}
	return nil
}

// ReplayMode reports whether the node should read from a recorded bag
// instead of the live broker.
func (c *Config) ReplayMode() bool {
	return c.Replay.DB != ""
}
