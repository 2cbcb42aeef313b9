package settings

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/spf13/afero"
)

const contentDir = "/srv/screensaver"

func withAssets(t *testing.T, names ...string) afero.Fs {
	t.Helper()

	fs := afero.NewMemMapFs()
	if len(names) > 0 {
		if err := fs.MkdirAll(contentDir+"/assets", 0o755); err != nil {
			t.Fatal(err)
		}
	}
	for _, name := range names {
		if err := afero.WriteFile(fs, contentDir+"/assets/"+name, []byte("<svg/>"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := fs.MkdirAll(contentDir, 0o755); err != nil {
		t.Fatal(err)
	}

	return fs
}

func TestAssets(t *testing.T) {
	fs := withAssets(t, "robot.svg", "cat.svg", "readme.txt")

	got, err := Assets(fs, contentDir)
	if err != nil {
		t.Fatalf("Assets() = %v", err)
	}

	if diff := cmp.Diff([]string{"cat.svg", "robot.svg"}, got); diff != "" {
		t.Errorf("Assets() mismatch (-want +got):\n%s", diff)
	}
}

func TestAssetsMissingDirectory(t *testing.T) {
	got, err := Assets(afero.NewMemMapFs(), contentDir)
	if err != nil {
		t.Fatalf("Assets() = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Assets() = %v, want none", got)
	}
}

func TestLoadMissingFile(t *testing.T) {
	fs := withAssets(t, "cat.svg")

	got, err := Load(fs, contentDir)
	if err != nil {
		t.Fatalf("Load() = %v", err)
	}

	want := Default()
	want.EnabledCharacters = []string{"cat.svg"}
	if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadPartialFile(t *testing.T) {
	fs := withAssets(t, "cat.svg", "robot.svg")
	content := `{"speed": 2.5, "population": 40, "lens_effect": "trails", "enabled_characters": ["robot.svg"]}`
	if err := afero.WriteFile(fs, contentDir+"/config.json", []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := Load(fs, contentDir)
	if err != nil {
		t.Fatalf("Load() = %v", err)
	}

	want := Default()
	want.Speed = 2.5
	want.Population = 40
	want.LensEffect = "trails"
	want.EnabledCharacters = []string{"robot.svg"}
	if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadInvalidFile(t *testing.T) {
	fs := withAssets(t)
	if err := afero.WriteFile(fs, contentDir+"/config.json", []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := Load(fs, contentDir)
	if err == nil {
		t.Fatal("Load() succeeded, want error")
	}
	if diff := cmp.Diff(Default(), got, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("Load() did not fall back to defaults (-want +got):\n%s", diff)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Settings {
		s := Default()
		s.EnabledCharacters = []string{"cat.svg"}
		return s
	}

	if err := valid().Validate(); err != nil {
		t.Fatalf("Validate() on valid settings = %v", err)
	}

	tests := []struct {
		field  string
		modify func(*Settings)
	}{
		{field: "speed", modify: func(s *Settings) { s.Speed = 6 }},
		{field: "population", modify: func(s *Settings) { s.Population = 0 }},
		{field: "scale", modify: func(s *Settings) { s.Scale = 0.05 }},
		{field: "randomness", modify: func(s *Settings) { s.Randomness = 1.5 }},
		{field: "background_effect", modify: func(s *Settings) { s.BackgroundEffect = "plaid" }},
		{field: "bg_cycle_seconds", modify: func(s *Settings) { s.BgCycleSeconds = 0 }},
		{field: "lens_effect", modify: func(s *Settings) { s.LensEffect = "fisheye" }},
		{field: "enabled_characters", modify: func(s *Settings) { s.EnabledCharacters = nil }},
	}

	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			s := valid()
			tt.modify(s)

			err := s.Validate()
			if err == nil {
				t.Fatal("Validate() succeeded, want error")
			}
			if !strings.Contains(err.Error(), tt.field) {
				t.Errorf("Validate() = %q, want mention of %s", err, tt.field)
			}
		})
	}
}

func TestSet(t *testing.T) {
	s := Default()
	updates := [][2]string{
		{"speed", "1.5"},
		{"population", "30"},
		{"background_effect", "stars"},
		{"scale", "2"},
		{"randomness", "0.25"},
		{"cycle_settings", "true"},
		{"bg_cycle_seconds", "30"},
		{"lens_effect", "kaleidoscope"},
		{"enabled_characters", "cat.svg, robot.svg,"},
	}
	for _, u := range updates {
		if err := s.Set(u[0], u[1]); err != nil {
			t.Fatalf("Set(%s, %s) = %v", u[0], u[1], err)
		}
	}

	want := &Settings{
		Speed:             1.5,
		Population:        30,
		BackgroundEffect:  "stars",
		Scale:             2,
		Randomness:        0.25,
		CycleSettings:     true,
		BgCycleSeconds:    30,
		LensEffect:        "kaleidoscope",
		EnabledCharacters: []string{"cat.svg", "robot.svg"},
	}
	if diff := cmp.Diff(want, s); diff != "" {
		t.Errorf("settings mismatch (-want +got):\n%s", diff)
	}
}

func TestSetErrors(t *testing.T) {
	s := Default()
	if err := s.Set("population", "many"); err == nil {
		t.Error("Set(population, many) succeeded, want error")
	}
	if err := s.Set("volume", "11"); err == nil {
		t.Error("Set(volume, 11) succeeded, want error")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	fs := withAssets(t, "cat.svg")
	s := Default()
	s.EnabledCharacters = []string{"cat.svg"}
	s.BackgroundEffect = "random"
	s.BgCycleSeconds = 20

	if err := s.Save(fs, contentDir); err != nil {
		t.Fatalf("Save() = %v", err)
	}

	data, err := afero.ReadFile(fs, contentDir+"/config.json")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "\n  \"speed\": 1,") {
		t.Errorf("config.json is not indented with two spaces:\n%s", data)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("config.json is not valid JSON: %v", err)
	}
	if raw["background_effect"] != "random" {
		t.Errorf("background_effect = %v, want random", raw["background_effect"])
	}

	got, err := Load(fs, contentDir)
	if err != nil {
		t.Fatalf("Load() = %v", err)
	}
	if diff := cmp.Diff(s, got, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("Load() after Save() mismatch (-want +got):\n%s", diff)
	}
}

func TestSaveKeepsUnknownKeys(t *testing.T) {
	fs := withAssets(t, "cat.svg")
	content := `{"population": 12, "custom_theme": "dusk", "Palette": {"hue": 210}}`
	if err := afero.WriteFile(fs, contentDir+"/config.json", []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := Load(fs, contentDir)
	if err != nil {
		t.Fatalf("Load() = %v", err)
	}
	if err := s.Set("population", "30"); err != nil {
		t.Fatalf("Set() = %v", err)
	}
	if err := s.Save(fs, contentDir); err != nil {
		t.Fatalf("Save() = %v", err)
	}

	data, err := afero.ReadFile(fs, contentDir+"/config.json")
	if err != nil {
		t.Fatal(err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("config.json is not valid JSON: %v", err)
	}

	want := map[string]any{
		"custom_theme": "dusk",
		"Palette":      map[string]any{"hue": float64(210)},
		"population":   float64(30),
	}
	for k, v := range want {
		if diff := cmp.Diff(v, raw[k]); diff != "" {
			t.Errorf("%s mismatch (-want +got):\n%s", k, diff)
		}
	}
	if len(raw) != len(keys)+2 {
		t.Errorf("config.json has %d keys, want %d:\n%s", len(raw), len(keys)+2, data)
	}
}

func TestSaveRejectsInvalid(t *testing.T) {
	fs := withAssets(t)
	s := Default()

	if err := s.Save(fs, contentDir); err == nil {
		t.Fatal("Save() without characters succeeded, want error")
	}
	if exists, _ := afero.Exists(fs, contentDir+"/config.json"); exists {
		t.Error("config.json was written for invalid settings")
	}
}
