// Package window opens the viewer's SDL2 window with an OpenGL 4.1 core
// context.
package window

import (
	"fmt"
	"runtime"

	"github.com/veandco/go-sdl2/sdl"
	"go.uber.org/zap"

	"github.com/Faultbox/animviewer/internal/logger"
)

// GL calls are only valid on the thread that owns the context.
func init() {
	runtime.LockOSThread()
}

// Config holds window configuration.
type Config struct {
	Title      string
	Width      int
	Height     int
	Fullscreen bool
	VSync      bool
}

// glAttributes request a 4.1 core context, the newest macOS offers.
var glAttributes = []struct {
	attr  sdl.GLattr
	value int
}{
	{sdl.GL_CONTEXT_MAJOR_VERSION, 4},
	{sdl.GL_CONTEXT_MINOR_VERSION, 1},
	{sdl.GL_CONTEXT_PROFILE_MASK, sdl.GL_CONTEXT_PROFILE_CORE},
	{sdl.GL_DOUBLEBUFFER, 1},
	{sdl.GL_DEPTH_SIZE, 24},
}

// Window is the viewer window and its GL context.
type Window struct {
	log *zap.Logger
	win *sdl.Window
	ctx sdl.GLContext
}

// New creates the window, makes its GL context current and enables file
// drop events.
func New(cfg Config) (*Window, error) {
	if err := sdl.Init(sdl.INIT_VIDEO | sdl.INIT_EVENTS); err != nil {
		return nil, fmt.Errorf("SDL_Init failed: %w", err)
	}
	for _, a := range glAttributes {
		if err := sdl.GLSetAttribute(a.attr, a.value); err != nil {
			sdl.Quit()
			return nil, fmt.Errorf("setting GL attribute %d: %w", a.attr, err)
		}
	}

	flags := uint32(sdl.WINDOW_OPENGL | sdl.WINDOW_RESIZABLE | sdl.WINDOW_ALLOW_HIGHDPI)
	if cfg.Fullscreen {
		flags |= sdl.WINDOW_FULLSCREEN_DESKTOP
	}
	win, err := sdl.CreateWindow(cfg.Title, sdl.WINDOWPOS_CENTERED, sdl.WINDOWPOS_CENTERED,
		int32(cfg.Width), int32(cfg.Height), flags)
	if err != nil {
		sdl.Quit()
		return nil, fmt.Errorf("SDL_CreateWindow failed: %w", err)
	}
	ctx, err := win.GLCreateContext()
	if err != nil {
		win.Destroy()
		sdl.Quit()
		return nil, fmt.Errorf("SDL_GL_CreateContext failed: %w", err)
	}

	w := &Window{log: logger.Named("window"), win: win, ctx: ctx}
	interval := 0
	if cfg.VSync {
		interval = 1
	}
	if err := sdl.GLSetSwapInterval(interval); err != nil {
		w.log.Warn("swap interval not applied", zap.Int("interval", interval), zap.Error(err))
	}
	sdl.EventState(sdl.DROPFILE, sdl.ENABLE)

	pw, ph := w.DrawableSize()
	w.log.Info("window created",
		zap.Int("width", cfg.Width),
		zap.Int("height", cfg.Height),
		zap.Int("pixel_width", pw),
		zap.Int("pixel_height", ph),
		zap.Bool("vsync", cfg.VSync),
	)
	return w, nil
}

// DrawableSize returns the framebuffer size in pixels. On high-DPI displays
// it is larger than the window size.
func (w *Window) DrawableSize() (int, int) {
	width, height := w.win.GLGetDrawableSize()
	return int(width), int(height)
}

// SetTitle sets the window title.
func (w *Window) SetTitle(title string) {
	w.win.SetTitle(title)
}

// SwapBuffers presents the frame.
func (w *Window) SwapBuffers() {
	w.win.GLSwap()
}

// Close releases the context and the window, then shuts SDL down.
func (w *Window) Close() {
	sdl.GLDeleteContext(w.ctx)
	w.win.Destroy()
	sdl.Quit()
}
