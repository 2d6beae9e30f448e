package ranking

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// EngagementWeights are the per-signal weights of the raw engagement sum.
type EngagementWeights struct {
	Share    float64 `yaml:"share"`    // default: 10
	Comment  float64 `yaml:"comment"`  // default: 5
	Reaction float64 `yaml:"reaction"` // default: 2
	View     float64 `yaml:"view"`     // default: 0.1
}

// GrowthWeights are the multiplicative boosts and penalties applied on top of
// engagement.
type GrowthWeights struct {
	NewAccountBoost      float64       `yaml:"new_account_boost"`      // default: 1.5
	NewAccountWindow     time.Duration `yaml:"new_account_window"`     // default: 30 days
	MicroCreatorBoost    float64       `yaml:"micro_creator_boost"`    // default: 1.3
	MicroCreatorMax      int           `yaml:"micro_creator_max"`      // followers strictly below this; default: 500
	MonopolyPenalty      float64       `yaml:"monopoly_penalty"`       // default: 0.7
	MonopolyMin          int           `yaml:"monopoly_min"`           // followers strictly above this; default: 5000
	LocalBoost           float64       `yaml:"local_boost"`            // default: 1.4
	RelationshipBoost    float64       `yaml:"relationship_boost"`     // default: 2.5
	CloutFollowersOffset float64       `yaml:"clout_followers_offset"` // default: 10
}

// DecayWeights shape the time decay divisor (ageHours + Offset) ^ Exponent.
type DecayWeights struct {
	Offset   float64 `yaml:"offset"`   // default: 2
	Exponent float64 `yaml:"exponent"` // default: 1.8
}

// Weights holds every tunable constant of the visibility score.
type Weights struct {
	Engagement EngagementWeights `yaml:"engagement"`
	Growth     GrowthWeights     `yaml:"growth"`
	Decay      DecayWeights      `yaml:"decay"`
}

// CalibrationConfig is the on-disk layout of a calibration file.
type CalibrationConfig struct {
	Version string  `yaml:"version"`
	Weights Weights `yaml:"weights"`
}

// DefaultWeights returns the production weights.
//
// The follower tiers are deliberately discontinuous: accounts below 500
// followers get the micro-creator boost, accounts above 5000 the monopoly
// penalty, and everything in between is left alone.
func DefaultWeights() *Weights {
	return &Weights{
		Engagement: EngagementWeights{
			Share:    10,
			Comment:  5,
			Reaction: 2,
			View:     0.1,
		},
		Growth: GrowthWeights{
			NewAccountBoost:      1.5,
			NewAccountWindow:     30 * 24 * time.Hour,
			MicroCreatorBoost:    1.3,
			MicroCreatorMax:      500,
			MonopolyPenalty:      0.7,
			MonopolyMin:          5000,
			LocalBoost:           1.4,
			RelationshipBoost:    2.5,
			CloutFollowersOffset: 10,
		},
		Decay: DecayWeights{
			Offset:   2,
			Exponent: 1.8,
		},
	}
}

// LoadCalibration reads weights from a YAML calibration file and merges them
// onto the defaults. An empty path yields the defaults. On any read or parse
// failure the defaults are returned together with the error so callers can
// log and carry on.
func LoadCalibration(path string) (*Weights, error) {
	if path == "" {
		return DefaultWeights(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		slog.Warn("failed to read ranking calibration, using defaults",
			"path", path,
			"error", err)
		return DefaultWeights(), fmt.Errorf("failed to read calibration file: %w", err)
	}

	var cfg CalibrationConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		slog.Warn("failed to parse ranking calibration, using defaults",
			"path", path,
			"error", err)
		return DefaultWeights(), fmt.Errorf("failed to parse calibration file: %w", err)
	}

	defaults := DefaultWeights()
	merged := MergeCalibration(defaults, &cfg.Weights)
	logCalibrationOverrides(path, cfg.Version, defaults, merged)

	return merged, nil
}

// MergeCalibration returns base with every non-zero field of override applied.
func MergeCalibration(base, override *Weights) *Weights {
	if base == nil {
		return DefaultWeights()
	}
	result := *base
	if override == nil {
		return &result
	}

	setFloat(&result.Engagement.Share, override.Engagement.Share)
	setFloat(&result.Engagement.Comment, override.Engagement.Comment)
	setFloat(&result.Engagement.Reaction, override.Engagement.Reaction)
	setFloat(&result.Engagement.View, override.Engagement.View)

	g := override.Growth
	setFloat(&result.Growth.NewAccountBoost, g.NewAccountBoost)
	if g.NewAccountWindow != 0 {
		result.Growth.NewAccountWindow = g.NewAccountWindow
	}
	setFloat(&result.Growth.MicroCreatorBoost, g.MicroCreatorBoost)
	if g.MicroCreatorMax != 0 {
		result.Growth.MicroCreatorMax = g.MicroCreatorMax
	}
	setFloat(&result.Growth.MonopolyPenalty, g.MonopolyPenalty)
	if g.MonopolyMin != 0 {
		result.Growth.MonopolyMin = g.MonopolyMin
	}
	setFloat(&result.Growth.LocalBoost, g.LocalBoost)
	setFloat(&result.Growth.RelationshipBoost, g.RelationshipBoost)
	setFloat(&result.Growth.CloutFollowersOffset, g.CloutFollowersOffset)

	setFloat(&result.Decay.Offset, override.Decay.Offset)
	setFloat(&result.Decay.Exponent, override.Decay.Exponent)

	return &result
}

func setFloat(dst *float64, v float64) {
	if v != 0 {
		*dst = v
	}
}

func logCalibrationOverrides(path, version string, defaults, loaded *Weights) {
	var overrides []string
	diff := func(name string, before, after float64) {
		if before != after {
			overrides = append(overrides, fmt.Sprintf("%s: %g -> %g", name, before, after))
		}
	}

	diff("engagement.share", defaults.Engagement.Share, loaded.Engagement.Share)
	diff("engagement.comment", defaults.Engagement.Comment, loaded.Engagement.Comment)
	diff("engagement.reaction", defaults.Engagement.Reaction, loaded.Engagement.Reaction)
	diff("engagement.view", defaults.Engagement.View, loaded.Engagement.View)
	diff("growth.new_account_boost", defaults.Growth.NewAccountBoost, loaded.Growth.NewAccountBoost)
	diff("growth.new_account_window_hours", defaults.Growth.NewAccountWindow.Hours(), loaded.Growth.NewAccountWindow.Hours())
	diff("growth.micro_creator_boost", defaults.Growth.MicroCreatorBoost, loaded.Growth.MicroCreatorBoost)
	diff("growth.micro_creator_max", float64(defaults.Growth.MicroCreatorMax), float64(loaded.Growth.MicroCreatorMax))
	diff("growth.monopoly_penalty", defaults.Growth.MonopolyPenalty, loaded.Growth.MonopolyPenalty)
	diff("growth.monopoly_min", float64(defaults.Growth.MonopolyMin), float64(loaded.Growth.MonopolyMin))
	diff("growth.local_boost", defaults.Growth.LocalBoost, loaded.Growth.LocalBoost)
	diff("growth.relationship_boost", defaults.Growth.RelationshipBoost, loaded.Growth.RelationshipBoost)
	diff("growth.clout_followers_offset", defaults.Growth.CloutFollowersOffset, loaded.Growth.CloutFollowersOffset)
	diff("decay.offset", defaults.Decay.Offset, loaded.Decay.Offset)
	diff("decay.exponent", defaults.Decay.Exponent, loaded.Decay.Exponent)

	if len(overrides) > 0 {
		slog.Info("loaded ranking calibration with overrides",
			"path", path,
			"version", version,
			"overrides", overrides)
		return
	}
	slog.Info("loaded ranking calibration (using all defaults)", "path", path, "version", version)
}
