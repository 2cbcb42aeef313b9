// Package settings reads and writes the screensaver page's config.json.
//
// The file lives in the content directory next to an assets directory of SVG characters. The
// page reads it on every start, so changes apply the next time the screen locks.
package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/viper"
)

const (
	FileName  = "config.json"
	AssetsDir = "assets"
)

// Settings of the screensaver page.
type Settings struct {
	Speed             float64  `mapstructure:"speed" json:"speed"`
	Population        int      `mapstructure:"population" json:"population"`
	BackgroundEffect  string   `mapstructure:"background_effect" json:"background_effect"`
	Scale             float64  `mapstructure:"scale" json:"scale"`
	Randomness        float64  `mapstructure:"randomness" json:"randomness"`
	CycleSettings     bool     `mapstructure:"cycle_settings" json:"cycle_settings"`
	BgCycleSeconds    int      `mapstructure:"bg_cycle_seconds" json:"bg_cycle_seconds"`
	LensEffect        string   `mapstructure:"lens_effect" json:"lens_effect"`
	EnabledCharacters []string `mapstructure:"enabled_characters" json:"enabled_characters"`

	// Extra holds keys of config.json this package does not know. They are written back
	// unchanged so options of newer pages survive a save.
	Extra map[string]any `mapstructure:"-" json:"-"`
}

// keys are the JSON keys of the typed fields.
var keys = []string{
	"speed",
	"population",
	"background_effect",
	"scale",
	"randomness",
	"cycle_settings",
	"bg_cycle_seconds",
	"lens_effect",
	"enabled_characters",
}

// MarshalJSON encodes the typed fields merged over Extra.
func (s Settings) MarshalJSON() ([]byte, error) {
	type fields Settings
	data, err := json.Marshal(fields(s))
	if err != nil || len(s.Extra) == 0 {
		return data, err
	}

	merged := make(map[string]any, len(s.Extra)+len(keys))
	for k, v := range s.Extra {
		merged[k] = v
	}
	if err := json.Unmarshal(data, &merged); err != nil {
		return nil, err
	}

	return json.Marshal(merged)
}

// BackgroundEffects are the backgrounds the page knows. "random" switches every
// BgCycleSeconds.
func BackgroundEffects() []string {
	return []string{"pure-black", "stars", "gradient", "rainbow-pulse", "hyperspace", "neon-grid", "random"}
}

func LensEffects() []string {
	return []string{"none", "trails", "kaleidoscope"}
}

func Default() *Settings {
	return &Settings{
		Speed:             1.0,
		Population:        17,
		BackgroundEffect:  "pure-black",
		Scale:             1.0,
		Randomness:        0.5,
		CycleSettings:     false,
		BgCycleSeconds:    10,
		LensEffect:        "none",
		EnabledCharacters: []string{},
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("speed", d.Speed)
	v.SetDefault("population", d.Population)
	v.SetDefault("background_effect", d.BackgroundEffect)
	v.SetDefault("scale", d.Scale)
	v.SetDefault("randomness", d.Randomness)
	v.SetDefault("cycle_settings", d.CycleSettings)
	v.SetDefault("bg_cycle_seconds", d.BgCycleSeconds)
	v.SetDefault("lens_effect", d.LensEffect)
	v.SetDefault("enabled_characters", d.EnabledCharacters)
}

// Assets returns the file names of the SVG characters in the content directory, sorted.
// A missing assets directory yields no assets.
func Assets(fs afero.Fs, contentDir string) ([]string, error) {
	matches, err := afero.Glob(fs, filepath.Join(contentDir, AssetsDir, "*.svg"))
	if err != nil {
		return nil, fmt.Errorf("failed to list assets: %w", err)
	}

	names := make([]string, len(matches))
	for i, m := range matches {
		names[i] = filepath.Base(m)
	}
	slices.Sort(names)

	return names, nil
}

// Load reads config.json from the content directory. Missing keys take their defaults and a
// missing file yields the defaults. If the file cannot be read, the defaults are returned along
// with the error.
//
// When no character is enabled, all available assets are.
func Load(fs afero.Fs, contentDir string) (*Settings, error) {
	s, loadErr := load(fs, contentDir)

	if len(s.EnabledCharacters) == 0 {
		assets, err := Assets(fs, contentDir)
		if err != nil {
			return s, errors.Join(loadErr, err)
		}
		s.EnabledCharacters = assets
	}

	return s, loadErr
}

func load(fs afero.Fs, contentDir string) (*Settings, error) {
	file := filepath.Join(contentDir, FileName)
	exists, err := afero.Exists(fs, file)
	if err != nil {
		return Default(), fmt.Errorf("failed to stat %s: %w", file, err)
	}
	if !exists {
		return Default(), nil
	}

	v := viper.New()
	v.SetFs(fs)
	v.SetConfigFile(file)
	v.SetConfigType("json")
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return Default(), fmt.Errorf("error loading %s: %w", file, err)
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Default(), fmt.Errorf("error decoding %s: %w", file, err)
	}

	// viper lowercases keys, the raw document keeps the page's spelling.
	extra, err := unknownKeys(fs, file)
	if err != nil {
		return Default(), err
	}
	s.Extra = extra

	return &s, nil
}

func unknownKeys(fs afero.Fs, file string) (map[string]any, error) {
	data, err := afero.ReadFile(fs, file)
	if err != nil {
		return nil, fmt.Errorf("error loading %s: %w", file, err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("error decoding %s: %w", file, err)
	}
	for k := range raw {
		if slices.ContainsFunc(keys, func(key string) bool { return strings.EqualFold(k, key) }) {
			delete(raw, k)
		}
	}
	if len(raw) == 0 {
		return nil, nil
	}

	return raw, nil
}

// Validate returns every invalid field.
func (s *Settings) Validate() error {
	var err error
	fail := func(field string, value any, msg string) {
		err = errors.Join(err, fmt.Errorf("%s: %s (got: %v)", field, msg, value))
	}

	if s.Speed < 0.1 || s.Speed > 5 {
		fail("speed", s.Speed, "must be between 0.1 and 5")
	}
	if s.Population < 1 || s.Population > 100 {
		fail("population", s.Population, "must be between 1 and 100")
	}
	if s.Scale < 0.1 || s.Scale > 3 {
		fail("scale", s.Scale, "must be between 0.1 and 3")
	}
	if s.Randomness < 0 || s.Randomness > 1 {
		fail("randomness", s.Randomness, "must be between 0 and 1")
	}
	if !slices.Contains(BackgroundEffects(), s.BackgroundEffect) {
		fail("background_effect", s.BackgroundEffect, "must be one of "+strings.Join(BackgroundEffects(), ", "))
	}
	if s.BgCycleSeconds < 1 {
		fail("bg_cycle_seconds", s.BgCycleSeconds, "must be positive")
	}
	if !slices.Contains(LensEffects(), s.LensEffect) {
		fail("lens_effect", s.LensEffect, "must be one of "+strings.Join(LensEffects(), ", "))
	}
	if len(s.EnabledCharacters) == 0 {
		fail("enabled_characters", s.EnabledCharacters, "at least one character must be selected")
	}

	return err
}

// Set updates the field with the given JSON key from its textual form. Lists are comma
// separated.
func (s *Settings) Set(key, value string) error {
	var err error
	switch key {
	case "speed":
		s.Speed, err = strconv.ParseFloat(value, 64)
	case "population":
		s.Population, err = strconv.Atoi(value)
	case "background_effect":
		s.BackgroundEffect = value
	case "scale":
		s.Scale, err = strconv.ParseFloat(value, 64)
	case "randomness":
		s.Randomness, err = strconv.ParseFloat(value, 64)
	case "cycle_settings":
		s.CycleSettings, err = strconv.ParseBool(value)
	case "bg_cycle_seconds":
		s.BgCycleSeconds, err = strconv.Atoi(value)
	case "lens_effect":
		s.LensEffect = value
	case "enabled_characters":
		s.EnabledCharacters = nil
		for _, c := range strings.Split(value, ",") {
			if c = strings.TrimSpace(c); c != "" {
				s.EnabledCharacters = append(s.EnabledCharacters, c)
			}
		}
	default:
		return fmt.Errorf("unknown setting %q", key)
	}

	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}

	return nil
}

// Save validates s and writes it to config.json in the content directory.
func (s *Settings) Save(fs afero.Fs, contentDir string) error {
	if err := s.Validate(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}

	file := filepath.Join(contentDir, FileName)
	if err := afero.WriteFile(fs, file, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("could not save %s: %w", file, err)
	}

	return nil
}
