package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Viewer.Width != 1280 || cfg.Viewer.Height != 720 {
		t.Errorf("expected 1280x720, got %dx%d", cfg.Viewer.Width, cfg.Viewer.Height)
	}
	if !cfg.Viewer.VSync {
		t.Error("expected vsync to be true by default")
	}
	if !cfg.Animation.Loop {
		t.Error("expected looping by default")
	}
	if cfg.Animation.RelativeOffsetDivisor != 3.0 {
		t.Errorf("expected divisor 3.0, got %v", cfg.Animation.RelativeOffsetDivisor)
	}
	if cfg.MotionCapture.Scale != 0.02 || cfg.MotionCapture.NodeSize != 0.5 {
		t.Errorf("unexpected motion capture defaults %+v", cfg.MotionCapture)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.LogFile != "" {
		t.Errorf("unexpected logging defaults %+v", cfg.Logging)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults fail validation: %v", err)
	}
}

func TestLoadFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), FileName)
	yamlContent := `
viewer:
  width: 1920
  height: 1080
  fullscreen: true
  background: [0, 0, 0]

animation:
  loop: false
  relative_offset_divisor: 2.5

motion_capture:
  scale: 0.1

logging:
  level: "debug"
  log_file: "viewer.log"

startup:
  paths: ["hero.fbx", "walk.bvh"]
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg := Default()
	if err := LoadFile(cfg, configPath); err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Viewer.Width != 1920 || cfg.Viewer.Height != 1080 || !cfg.Viewer.Fullscreen {
		t.Errorf("unexpected viewer settings %+v", cfg.Viewer)
	}
	if cfg.Viewer.Background != [3]float32{} {
		t.Errorf("unexpected background %v", cfg.Viewer.Background)
	}
	if cfg.Animation.Loop || cfg.Animation.RelativeOffsetDivisor != 2.5 {
		t.Errorf("unexpected animation settings %+v", cfg.Animation)
	}
	// Keys missing from the file keep their defaults.
	if cfg.MotionCapture.Scale != 0.1 || cfg.MotionCapture.NodeSize != 0.5 {
		t.Errorf("unexpected motion capture settings %+v", cfg.MotionCapture)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.LogFile != "viewer.log" {
		t.Errorf("unexpected logging settings %+v", cfg.Logging)
	}
	if len(cfg.Startup.Paths) != 2 || cfg.Startup.Paths[1] != "walk.bvh" {
		t.Errorf("unexpected startup paths %v", cfg.Startup.Paths)
	}
}

func TestLoadFileErrors(t *testing.T) {
	invalid := filepath.Join(t.TempDir(), "invalid.yaml")
	if err := os.WriteFile(invalid, []byte("viewer:\n  width: not a number\n  invalid syntax here\n"), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	for _, path := range []string{invalid, "/nonexistent/path/animviewer.yaml"} {
		if err := LoadFile(Default(), path); err == nil {
			t.Errorf("%s: expected an error", path)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero width", func(c *Config) { c.Viewer.Width = 0 }},
		{"zero divisor", func(c *Config) { c.Animation.RelativeOffsetDivisor = 0 }},
		{"negative mocap scale", func(c *Config) { c.MotionCapture.Scale = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalid) {
				t.Errorf("expected ErrInvalid, got %v", err)
			}
		})
	}
}

func TestConfigDir(t *testing.T) {
	dir := ConfigDir()
	if dir == "" {
		t.Fatal("ConfigDir returned empty string")
	}
	if !filepath.IsAbs(dir) {
		t.Errorf("ConfigDir should return absolute path, got %s", dir)
	}
}

func TestFindConfigFile(t *testing.T) {
	origDir, _ := os.Getwd()
	defer os.Chdir(origDir)

	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tmpDir, "xdg"))
	os.Chdir(tmpDir)

	if path := findConfigFile(); path != "" {
		t.Errorf("expected empty path when no config exists, got %s", path)
	}

	if err := os.WriteFile(filepath.Join(tmpDir, FileName), []byte("viewer:\n  width: 800\n"), 0644); err != nil {
		t.Fatalf("failed to create test config: %v", err)
	}
	if path := findConfigFile(); path == "" {
		t.Errorf("expected to find %s in current directory", FileName)
	}
}

func TestApplyFlags(t *testing.T) {
	tests := []struct {
		name     string
		setup    func()
		args     []string
		verify   func(t *testing.T, cfg *Config)
		teardown func()
	}{
		{
			name:  "debug flag",
			setup: func() { *flagDebug = true },
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Logging.Level != "debug" {
					t.Errorf("expected log level 'debug', got %s", cfg.Logging.Level)
				}
			},
			teardown: func() { *flagDebug = false },
		},
		{
			name:  "log flag",
			setup: func() { *flagLog = "run.log" },
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Logging.LogFile != "run.log" {
					t.Errorf("expected log file run.log, got %s", cfg.Logging.LogFile)
				}
			},
			teardown: func() { *flagLog = "" },
		},
		{
			name:  "loop disabled",
			setup: func() { _ = flagLoop.Set("false") },
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Animation.Loop {
					t.Error("expected looping off")
				}
			},
			teardown: func() { *flagLoop = optionalBool{} },
		},
		{
			name:  "loop untouched",
			setup: func() {},
			verify: func(t *testing.T, cfg *Config) {
				if !cfg.Animation.Loop {
					t.Error("expected the default to survive an unset flag")
				}
			},
			teardown: func() {},
		},
		{
			name: "width and height flags",
			setup: func() {
				*flagWidth = 2560
				*flagHeight = 1440
			},
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Viewer.Width != 2560 || cfg.Viewer.Height != 1440 {
					t.Errorf("expected 2560x1440, got %dx%d", cfg.Viewer.Width, cfg.Viewer.Height)
				}
			},
			teardown: func() {
				*flagWidth = 0
				*flagHeight = 0
			},
		},
		{
			name:  "positional paths",
			setup: func() {},
			args:  []string{"a.l3d", "b.anm"},
			verify: func(t *testing.T, cfg *Config) {
				if len(cfg.Startup.Paths) != 2 || cfg.Startup.Paths[0] != "a.l3d" {
					t.Errorf("unexpected paths %v", cfg.Startup.Paths)
				}
			},
			teardown: func() {},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setup()
			defer tt.teardown()

			cfg := Default()
			applyFlags(cfg, tt.args)
			tt.verify(t, cfg)
		})
	}
}

func TestLoadPriority(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), FileName)
	if err := os.WriteFile(configPath, []byte("viewer:\n  width: 1600\n  height: 900\n"), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	*flagConfig = configPath
	*flagWidth = 1920
	defer func() {
		*flagConfig = ""
		*flagWidth = 0
	}()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Viewer.Width != 1920 {
		t.Errorf("expected width 1920 from flag, got %d", cfg.Viewer.Width)
	}
	if cfg.Viewer.Height != 900 {
		t.Errorf("expected height 900 from file, got %d", cfg.Viewer.Height)
	}
}

func TestSaveTo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", FileName)
	cfg := Default()
	cfg.Animation.RelativeOffsetDivisor = 4

	if err := cfg.SaveTo(path); err != nil {
		t.Fatalf("SaveTo failed: %v", err)
	}
	loaded := Default()
	if err := LoadFile(loaded, path); err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if loaded.Animation.RelativeOffsetDivisor != 4 {
		t.Errorf("expected divisor 4 after reload, got %v", loaded.Animation.RelativeOffsetDivisor)
	}
}
