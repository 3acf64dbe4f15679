// Package config handles viewer configuration loading and management.
package config

// Config holds all viewer settings.
type Config struct {
	Viewer        ViewerConfig        `yaml:"viewer"`
	Animation     AnimationConfig     `yaml:"animation"`
	MotionCapture MotionCaptureConfig `yaml:"motion_capture"`
	Logging       LoggingConfig       `yaml:"logging"`
	Startup       StartupConfig       `yaml:"startup"`
}

// ViewerConfig holds window and display settings.
type ViewerConfig struct {
	Title      string     `yaml:"title"`
	Width      int        `yaml:"width"`
	Height     int        `yaml:"height"`
	Fullscreen bool       `yaml:"fullscreen"`
	VSync      bool       `yaml:"vsync"`
	FPSLimit   int        `yaml:"fps_limit"`
	Background [3]float32 `yaml:"background"`
}

// AnimationConfig holds skeletal playback settings.
type AnimationConfig struct {
	Loop bool `yaml:"loop"`
	// RelativeOffsetDivisor scales the bind translation added under joints
	// of relative animations.
	RelativeOffsetDivisor float32 `yaml:"relative_offset_divisor"`
}

// MotionCaptureConfig holds point cloud display settings.
type MotionCaptureConfig struct {
	Scale    float32 `yaml:"scale"`
	NodeSize float32 `yaml:"node_size"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// StartupConfig lists files loaded when the viewer starts.
type StartupConfig struct {
	Paths []string `yaml:"paths"`
	// Animate plays the first take of a file that holds meshes and
	// animations together.
	Animate bool `yaml:"animate"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Viewer: ViewerConfig{
			Title:      "animviewer",
			Width:      1280,
			Height:     720,
			VSync:      true,
			Background: [3]float32{0.1, 0.1, 0.15},
		},
		Animation: AnimationConfig{
			Loop:                  true,
			RelativeOffsetDivisor: 3.0,
		},
		MotionCapture: MotionCaptureConfig{
			Scale:    0.02,
			NodeSize: 0.5,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Startup: StartupConfig{
			Animate: true,
		},
	}
}
