// Package config loads and validates the K8s-style manifests that describe
// a test run: the top-level arena manifest, scenario manifests, and persona
// manifests. Every configuration error surfaces here, before a single turn
// executes.
package config

import (
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/callwise/arena/constraints"
	"github.com/callwise/arena/persona"
	"github.com/callwise/arena/progress"
)

// Manifest kinds.
const (
	KindArena    = "Arena"
	KindScenario = "Scenario"
	KindPersona  = "Persona"

	APIVersion = "arena.callwise.io/v1alpha1"
)

// ArenaManifest is the top-level run configuration.
type ArenaManifest struct {
	APIVersion string            `json:"apiVersion" yaml:"apiVersion"`
	Kind       string            `json:"kind" yaml:"kind"`
	Metadata   metav1.ObjectMeta `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	Spec       ArenaSpec         `json:"spec" yaml:"spec"`
}

// ArenaSpec configures the run: execution defaults, the target agent, where
// state goes, and which scenario files participate.
type ArenaSpec struct {
	Defaults   Defaults         `json:"defaults,omitempty" yaml:"defaults,omitempty"`
	Target     TargetConfig     `json:"target,omitempty" yaml:"target,omitempty"`
	StateStore StateStoreConfig `json:"statestore,omitempty" yaml:"statestore,omitempty"`
	Metrics    MetricsConfig    `json:"metrics,omitempty" yaml:"metrics,omitempty"`
	OutputDir  string           `json:"output_dir,omitempty" yaml:"output_dir,omitempty"`
	Scenarios  []string         `json:"scenarios" yaml:"scenarios"`
	Personas   []string         `json:"personas,omitempty" yaml:"personas,omitempty"`
}

// Defaults are the run-wide execution knobs. Scenario manifests may override
// max_turns and seed per scenario.
type Defaults struct {
	Concurrency   int        `json:"concurrency,omitempty" yaml:"concurrency,omitempty"`
	MaxTurns      int        `json:"max_turns,omitempty" yaml:"max_turns,omitempty"`
	TurnTimeout   Duration   `json:"turn_timeout,omitempty" yaml:"turn_timeout,omitempty"`
	RetryAttempts int        `json:"retry_attempts,omitempty" yaml:"retry_attempts,omitempty"`
	RetryBackoff  Duration   `json:"retry_backoff,omitempty" yaml:"retry_backoff,omitempty"`
	Thresholds    Thresholds `json:"thresholds,omitempty" yaml:"thresholds,omitempty"`
}

// Thresholds mirrors the tracker's issue-detection knobs in manifest form.
type Thresholds struct {
	StuckTurns             int     `json:"stuck_turns,omitempty" yaml:"stuck_turns,omitempty"`
	RepeatWindow           int     `json:"repeat_window,omitempty" yaml:"repeat_window,omitempty"`
	RepeatLimit            int     `json:"repeat_limit,omitempty" yaml:"repeat_limit,omitempty"`
	OffTopicTurns          int     `json:"off_topic_turns,omitempty" yaml:"off_topic_turns,omitempty"`
	UnknownConfidenceFloor float64 `json:"unknown_confidence_floor,omitempty" yaml:"unknown_confidence_floor,omitempty"`
}

// DefaultDefaults returns the stock execution knobs.
func DefaultDefaults() Defaults {
	return Defaults{
		Concurrency:   4,
		MaxTurns:      30,
		TurnTimeout:   Duration(30 * time.Second),
		RetryAttempts: 3,
		RetryBackoff:  Duration(500 * time.Millisecond),
	}
}

// TrackerConfig converts the manifest thresholds into tracker configuration.
// Zero values fall through to the tracker's documented defaults.
func (d Defaults) TrackerConfig() progress.Config {
	return progress.Config{
		StuckTurns:             d.Thresholds.StuckTurns,
		RepeatWindow:           d.Thresholds.RepeatWindow,
		RepeatLimit:            d.Thresholds.RepeatLimit,
		OffTopicTurns:          d.Thresholds.OffTopicTurns,
		UnknownConfidenceFloor: d.Thresholds.UnknownConfidenceFloor,
		TurnTimeout:            d.TurnTimeout.Std(),
	}
}

// TargetConfig points at the agent under test.
type TargetConfig struct {
	Endpoint string            `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	Headers  map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
}

// StateStoreConfig selects where run state is kept.
type StateStoreConfig struct {
	Type      string   `json:"type,omitempty" yaml:"type,omitempty"` // "memory" or "redis"
	RedisAddr string   `json:"redis_addr,omitempty" yaml:"redis_addr,omitempty"`
	RedisTTL  Duration `json:"redis_ttl,omitempty" yaml:"redis_ttl,omitempty"`
}

// MetricsConfig enables the Prometheus exporter.
type MetricsConfig struct {
	Enabled bool   `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	Addr    string `json:"addr,omitempty" yaml:"addr,omitempty"`
}

// ScenarioManifest declares one test scenario.
type ScenarioManifest struct {
	APIVersion string            `json:"apiVersion" yaml:"apiVersion"`
	Kind       string            `json:"kind" yaml:"kind"`
	Metadata   metav1.ObjectMeta `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	Spec       ScenarioSpec      `json:"spec" yaml:"spec"`
}

// ScenarioSpec couples a persona with goals and constraints. The persona is
// either a reference to a Persona manifest by metadata name or an inline
// template.
type ScenarioSpec struct {
	PersonaRef  string                   `json:"persona_ref,omitempty" yaml:"persona_ref,omitempty"`
	Persona     *persona.Template        `json:"persona,omitempty" yaml:"persona,omitempty"`
	Seed        int64                    `json:"seed,omitempty" yaml:"seed,omitempty"`
	MaxTurns    int                      `json:"max_turns,omitempty" yaml:"max_turns,omitempty"`
	Goals       []progress.Goal          `json:"goals" yaml:"goals"`
	Constraints []constraints.Constraint `json:"constraints,omitempty" yaml:"constraints,omitempty"`

	// ScriptedReplies drive mock runs: when present and mock mode is on,
	// the engine substitutes a scripted agent for the real target.
	ScriptedReplies []string `json:"scripted_replies,omitempty" yaml:"scripted_replies,omitempty"`
}

// PersonaManifest declares one reusable persona template.
type PersonaManifest struct {
	APIVersion string            `json:"apiVersion" yaml:"apiVersion"`
	Kind       string            `json:"kind" yaml:"kind"`
	Metadata   metav1.ObjectMeta `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	Spec       persona.Template  `json:"spec" yaml:"spec"`
}

// Scenario is a fully resolved scenario ready for the engine.
type Scenario struct {
	Name            string
	Persona         *persona.Template
	Seed            int64
	MaxTurns        int
	Goals           []progress.Goal
	Constraints     []constraints.Constraint
	ScriptedReplies []string
}

// Config is the self-contained result of loading an arena manifest: all
// references resolved, all documents validated.
type Config struct {
	Name       string
	Defaults   Defaults
	Target     TargetConfig
	StateStore StateStoreConfig
	Metrics    MetricsConfig
	OutputDir  string
	Scenarios  []Scenario

	// Warnings are non-fatal findings from cross-reference checks.
	Warnings []string

	// SourceFile is the arena manifest path, recorded into summaries.
	SourceFile string
}
