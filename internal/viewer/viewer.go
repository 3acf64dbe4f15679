// Package viewer implements the interactive viewer: window, main loop,
// file opening and playback controls.
package viewer

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
	"github.com/sqweek/dialog"
	"github.com/veandco/go-sdl2/sdl"
	"go.uber.org/zap"

	"github.com/Faultbox/animviewer/internal/assets"
	"github.com/Faultbox/animviewer/internal/config"
	"github.com/Faultbox/animviewer/internal/engine/animation"
	"github.com/Faultbox/animviewer/internal/engine/camera"
	"github.com/Faultbox/animviewer/internal/engine/input"
	"github.com/Faultbox/animviewer/internal/engine/renderer"
	"github.com/Faultbox/animviewer/internal/engine/scene"
	"github.com/Faultbox/animviewer/internal/engine/window"
	"github.com/Faultbox/animviewer/internal/logger"
	"github.com/Faultbox/animviewer/pkg/formats"
)

var (
	meshColor   = [3]float32{0.75, 0.72, 0.68}
	markerColor = [3]float32{0.95, 0.55, 0.1}
)

// markerPixels converts motion capture node size to point size.
const markerPixels = 10

// Viewer is the main viewer instance.
type Viewer struct {
	config   *config.Config
	log      *zap.Logger
	running  bool
	window   *window.Window
	renderer *renderer.Renderer
	input    *input.Input
	camera   *camera.OrbitCamera
	store    *assets.Store
	scene    *scene.Scene
	placer   *placer

	// Paths picked in the open dialog, handed over to the main thread.
	pending chan string
	framed  bool
}

// New creates the window, renderer and an empty scene.
func New(cfg *config.Config) (*Viewer, error) {
	v := &Viewer{
		config:  cfg,
		log:     logger.Named("viewer"),
		camera:  camera.NewOrbitCamera(),
		store:   assets.NewStore(),
		pending: make(chan string, 4),
	}
	v.log.Info("initializing viewer",
		zap.String("title", cfg.Viewer.Title),
		zap.Int("width", cfg.Viewer.Width),
		zap.Int("height", cfg.Viewer.Height),
	)

	v.scene = scene.New(v.store, scene.Config{
		Loop:                  cfg.Animation.Loop,
		RelativeOffsetDivisor: cfg.Animation.RelativeOffsetDivisor,
		MocapScale:            cfg.MotionCapture.Scale,
		MocapNodeSize:         cfg.MotionCapture.NodeSize,
	})
	v.placer = &placer{store: v.store, scene: v.scene, log: v.log, animate: cfg.Startup.Animate}

	var err error
	v.window, err = window.New(window.Config{
		Title:      cfg.Viewer.Title,
		Width:      cfg.Viewer.Width,
		Height:     cfg.Viewer.Height,
		Fullscreen: cfg.Viewer.Fullscreen,
		VSync:      cfg.Viewer.VSync,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create window: %w", err)
	}

	// The renderer needs the OpenGL context the window created.
	width, height := v.window.DrawableSize()
	v.renderer, err = renderer.New(renderer.Config{
		Width:      width,
		Height:     height,
		Background: cfg.Viewer.Background,
	})
	if err != nil {
		v.window.Close()
		return nil, fmt.Errorf("failed to create renderer: %w", err)
	}

	v.input = input.New()

	for _, path := range cfg.Startup.Paths {
		v.Open(path)
	}

	v.log.Info("viewer initialized")
	return v, nil
}

// Open loads a file into the scene. Failures are logged and reported in
// the window title; the viewer keeps running.
func (v *Viewer) Open(path string) {
	prev := v.placer.selected
	err := v.placer.Load(path)
	if v.placer.selected != prev {
		v.framed = false
	}
	if err != nil {
		v.log.Warn("open failed", zap.String("path", path), zap.Error(err))
		v.window.SetTitle(fmt.Sprintf("%s - %v", v.config.Viewer.Title, err))
		return
	}
	v.window.SetTitle(fmt.Sprintf("%s - %s", v.config.Viewer.Title, path))
}

// openDialog shows a native file picker. The dialog blocks, so it runs on
// its own goroutine and the result is loaded on the main thread.
func (v *Viewer) openDialog() {
	go func() {
		path, err := dialog.File().
			Filter("Meshes and animations", formats.Extensions...).
			Filter("All Files", "*").
			Title("Open").
			Load()
		if err != nil {
			if !errors.Is(err, dialog.ErrCancelled) {
				v.log.Warn("file dialog failed", zap.Error(err))
			}
			return
		}
		v.pending <- path
	}()
}

// Run starts the main loop.
func (v *Viewer) Run() error {
	v.running = true

	lastTime := time.Now()
	frameCount := 0
	fpsTimer := time.Now()

	var minFrame time.Duration
	if v.config.Viewer.FPSLimit > 0 {
		minFrame = time.Second / time.Duration(v.config.Viewer.FPSLimit)
	}

	v.log.Info("starting main loop")

	for v.running {
		now := time.Now()
		dt := now.Sub(lastTime)
		lastTime = now

		if v.input.Update() {
			v.running = false
			break
		}
		v.handleEvents()

	drain:
		for {
			select {
			case path := <-v.pending:
				v.Open(path)
			default:
				break drain
			}
		}

		// Playback advances before anything reads a pose.
		v.scene.Update(dt)
		if err := v.store.UploadDirty(v.renderer); err != nil {
			v.log.Warn("mesh upload failed", zap.Error(err))
		}
		v.frameCamera()

		v.render()
		v.window.SwapBuffers()

		frameCount++
		if time.Since(fpsTimer) >= time.Second {
			v.log.Debug("fps", zap.Int("count", frameCount), zap.Duration("dt", dt))
			frameCount = 0
			fpsTimer = time.Now()
		}

		if minFrame > 0 {
			if rest := minFrame - time.Since(now); rest > 0 {
				time.Sleep(rest)
			}
		}
	}

	return nil
}

func (v *Viewer) handleEvents() {
	for _, event := range v.input.Events() {
		switch event.Type {
		case input.EventWindowResize:
			// Resize events report window points, not pixels.
			v.renderer.Resize(v.window.DrawableSize())
		case input.EventDrop:
			v.Open(event.Path)
		case input.EventMouseMove:
			if event.Button == sdl.BUTTON_LEFT {
				v.camera.HandleDrag(float32(event.DeltaX), float32(event.DeltaY))
			}
		case input.EventMouseWheel:
			v.camera.HandleZoom(event.Wheel)
		case input.EventKeyDown:
			v.handleKey(event.Key)
		}
	}
}

func (v *Viewer) handleKey(key sdl.Scancode) {
	sel := v.placer.selected
	var err error
	switch key {
	case sdl.SCANCODE_ESCAPE:
		v.running = false
	case sdl.SCANCODE_O:
		v.openDialog()
	case sdl.SCANCODE_SPACE:
		switch playbackState(v.scene, sel) {
		case animation.Playing:
			err = v.scene.Pause(sel)
		case animation.Paused:
			err = v.scene.Resume(sel)
		default:
			err = v.scene.Play(sel)
		}
	case sdl.SCANCODE_S:
		err = v.scene.Stop(sel)
	case sdl.SCANCODE_L:
		v.config.Animation.Loop = !v.config.Animation.Loop
		err = v.scene.SetLoop(sel, v.config.Animation.Loop)
	case sdl.SCANCODE_F:
		v.framed = false
	case sdl.SCANCODE_DELETE:
		v.scene.Remove(sel)
		v.placer.selected = lastMesh(v.scene)
		v.framed = false
	}
	if err != nil {
		v.log.Debug("playback control ignored", zap.Error(err))
	}
}

// playbackState returns the state of an entity's skeletal animation.
// Entities without one report Stopped.
func playbackState(s *scene.Scene, id uuid.UUID) animation.State {
	e, err := s.Entity(id)
	if err != nil || e.Animation == nil {
		return animation.Stopped
	}
	return e.Animation.State
}

// lastMesh returns the newest mesh entity, or uuid.Nil.
func lastMesh(s *scene.Scene) uuid.UUID {
	ents := s.Entities()
	for i := len(ents) - 1; i >= 0; i-- {
		if ents[i].MeshID != uuid.Nil {
			return ents[i].ID
		}
	}
	return uuid.Nil
}

// frameCamera fits the camera to the selected mesh once it is loaded.
func (v *Viewer) frameCamera() {
	if v.framed {
		return
	}
	e, err := v.scene.Entity(v.placer.selected)
	if err != nil {
		return
	}
	r, err := v.store.Mesh(e.MeshID)
	if err != nil {
		return
	}
	m := e.Transform.Matrix()
	v.camera.FitToBounds(
		mgl32.TransformCoordinate(r.Mesh.Bounds.Min, m),
		mgl32.TransformCoordinate(r.Mesh.Bounds.Max, m),
	)
	v.framed = true
}

// render draws the current frame.
func (v *Viewer) render() {
	v.renderer.Begin()

	viewProj := v.camera.ProjectionMatrix(v.renderer.Aspect()).Mul4(v.camera.ViewMatrix())
	for _, e := range v.scene.Entities() {
		model := e.Transform.Matrix()
		if e.MotionCapture != nil {
			points, err := v.scene.Markers(e.ID)
			if err == nil {
				v.renderer.DrawPoints(points, viewProj.Mul4(model), e.MotionCapture.NodeSize*markerPixels, markerColor)
			}
			continue
		}
		r, err := v.store.Mesh(e.MeshID)
		if err != nil || r.GPU == nil {
			continue
		}
		joints, err := v.scene.Joints(e.ID)
		if err != nil {
			continue
		}
		v.renderer.DrawMesh(r.GPU, viewProj, model, joints, meshColor)
	}

	v.renderer.End()
}

// Close releases GPU resources, the window and SDL.
func (v *Viewer) Close() {
	v.log.Info("closing viewer")

	v.store.Close()
	if v.renderer != nil {
		v.renderer.Close()
	}
	if v.window != nil {
		v.window.Close()
	}
}
