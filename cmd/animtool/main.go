// animtool inspects, plays and converts skeletal meshes and animations
// without opening a window.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Faultbox/animviewer/internal/assets"
	"github.com/Faultbox/animviewer/internal/config"
	"github.com/Faultbox/animviewer/internal/engine/scene"
	"github.com/Faultbox/animviewer/internal/export"
	"github.com/Faultbox/animviewer/internal/logger"
	"github.com/Faultbox/animviewer/pkg/formats"
)

var errUsage = errors.New("usage")

func main() {
	if len(os.Args) < 2 {
		printUsage(os.Stderr)
		os.Exit(1)
	}

	// Debug logs go to a file so they never mix with command output.
	if path := os.Getenv("ANIMTOOL_LOG"); path != "" {
		if err := logger.InitWithFileConfig("debug", logger.DefaultFileConfig(path), false); err != nil {
			fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
			os.Exit(1)
		}
		defer logger.Sync()
	}

	err := run(os.Stdout, os.Args[1], os.Args[2:])
	switch {
	case errors.Is(err, errUsage):
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	case err != nil:
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(w io.Writer, command string, args []string) error {
	switch command {
	case "sniff":
		return cmdSniff(w, args)
	case "info":
		return cmdInfo(w, args)
	case "play":
		return cmdPlay(w, args)
	case "export":
		return cmdExport(w, args)
	case "help", "-h", "--help":
		printUsage(w)
		return nil
	default:
		printUsage(os.Stderr)
		return fmt.Errorf("%w: unknown command %q", errUsage, command)
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `animtool - skeletal mesh and animation utility

Usage:
  animtool <command> [options]

Commands:
  sniff <file>...                       Detect file formats
  info <file>...                        Load files and describe their resources
  play [options] <mesh> <animation>     Play an animation headless and print each tick
  export [-o out.glb] [-name n] <mesh>  Export a mesh in bind pose to glTF

Examples:
  animtool sniff hero.fbx walk.bvh
  animtool info hero.l3d
  animtool play -ticks 10 -dt 50ms hero.l3d wave.anm
  animtool export -o hero.glb hero.fbx

Set ANIMTOOL_LOG to a file path to write debug logs there.`)
}

func cmdSniff(w io.Writer, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("%w: animtool sniff <file>...", errUsage)
	}

	var errs []error
	for _, path := range args {
		kind, err := formats.SniffFile(path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		fmt.Fprintf(w, "%-14s %s\n", kind, path)
	}
	return errors.Join(errs...)
}

func cmdInfo(w io.Writer, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("%w: animtool info <file>...", errUsage)
	}

	store := assets.NewStore()
	defer store.Close()

	var errs []error
	for _, path := range args {
		entries, err := store.Load(path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		fmt.Fprintf(w, "%s\n", path)
		for _, e := range entries {
			describe(w, store, e)
		}
	}

	s := store.Stats()
	fmt.Fprintf(w, "\n%d meshes, %d animations, %d motion captures\n", s.Meshes, s.Animations, s.MotionCaptures)
	return errors.Join(errs...)
}

func describe(w io.Writer, store *assets.Store, e assets.Entry) {
	fmt.Fprintf(w, "  %-13s %q  %s\n", e.Kind, e.Name, e.ID)
	switch e.Kind {
	case assets.KindMesh:
		r, _ := store.Mesh(e.ID)
		m := r.Mesh
		fmt.Fprintf(w, "    bones %d, vertices %d, triangles %d\n", len(m.Bones), len(m.Vertices), m.TriangleCount())
		fmt.Fprintf(w, "    bounds %v .. %v\n", m.Bounds.Min, m.Bounds.Max)
	case assets.KindAnimation:
		r, _ := store.Animation(e.ID)
		a := r.Animation
		layout := "index-aligned"
		if !a.IndexAligned() {
			layout = "by name"
		}
		fmt.Fprintf(w, "    frames %d, duration %s, %.2f fps, joints %d (%s), relative %v\n",
			a.FrameCount, a.Duration, a.FrameRate, a.JointCount(), layout, a.Relative)
	case assets.KindMotionCapture:
		r, _ := store.MotionCapture(e.ID)
		mc := r.MotionCapture
		fmt.Fprintf(w, "    frames %d, points %d, %.2f fps\n", mc.FrameCount(), mc.PointCount, mc.FrameRate)
	}
}

func cmdPlay(w io.Writer, args []string) error {
	fs := flag.NewFlagSet("play", flag.ContinueOnError)
	ticks := fs.Int("ticks", 30, "Number of ticks to simulate")
	dt := fs.Duration("dt", time.Second/30, "Time step per tick")
	loop := fs.Bool("loop", true, "Wrap at the end of the animation")
	name := fs.String("name", "", "Animation name when the file holds several")
	cfgPath := fs.String("config", "", "Config file with animation settings")
	joints := fs.Bool("joints", false, "Print joint translations each tick")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if fs.NArg() < 2 {
		return fmt.Errorf("%w: animtool play [options] <mesh> <animation>", errUsage)
	}

	cfg := config.Default()
	if *cfgPath != "" {
		if err := config.LoadFile(cfg, *cfgPath); err != nil {
			return err
		}
	}

	store := assets.NewStore()
	defer store.Close()

	meshID, err := pick(store, fs.Arg(0), assets.KindMesh, "")
	if err != nil {
		return err
	}
	animID, err := pick(store, fs.Arg(1), assets.KindAnimation, *name)
	if err != nil {
		return err
	}

	sc := scene.New(store, scene.Config{
		Loop:                  *loop,
		RelativeOffsetDivisor: cfg.Animation.RelativeOffsetDivisor,
		MocapScale:            cfg.MotionCapture.Scale,
		MocapNodeSize:         cfg.MotionCapture.NodeSize,
	})
	e, err := sc.AddMesh(meshID)
	if err != nil {
		return err
	}
	if err := sc.AttachAnimation(e.ID, animID); err != nil {
		return err
	}

	for i := 0; i <= *ticks; i++ {
		if i > 0 {
			sc.Update(*dt)
		}
		c := e.Animation.Clock
		fmt.Fprintf(w, "tick %3d  frame %3d  time %-10s %s\n", i, c.CurrentFrame, c.CurrentTime, c.State)
		if *joints {
			pose, err := sc.Joints(e.ID)
			if err != nil {
				return err
			}
			for j, m := range pose {
				fmt.Fprintf(w, "    joint %2d  %v\n", j, m.Col(3).Vec3())
			}
		}
	}
	return nil
}

func cmdExport(w io.Writer, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	out := fs.String("o", "", "Output path, .gltf or .glb (default: input name with .glb)")
	name := fs.String("name", "", "Mesh name when the file holds several")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("%w: animtool export [-o out.glb] [-name n] <mesh>", errUsage)
	}

	in := fs.Arg(0)
	output := *out
	if output == "" {
		output = strings.TrimSuffix(in, filepath.Ext(in)) + ".glb"
	}

	store := assets.NewStore()
	defer store.Close()

	id, err := pick(store, in, assets.KindMesh, *name)
	if err != nil {
		return err
	}
	r, _ := store.Mesh(id)

	doc, err := export.GLTF(r.Mesh, r.BindPose)
	if err != nil {
		return err
	}
	if err := export.Save(doc, output); err != nil {
		return err
	}
	fmt.Fprintf(w, "Exported: %s (%d bones, %d triangles)\n", output, len(r.Mesh.Bones), r.Mesh.TriangleCount())
	return nil
}

// pick loads path and returns the first resource of the given kind, or the
// one called name when name is set.
func pick(store *assets.Store, path string, kind assets.Kind, name string) (uuid.UUID, error) {
	entries, err := store.Load(path)
	if err != nil {
		return uuid.Nil, err
	}
	for _, e := range entries {
		if e.Kind == kind && (name == "" || e.Name == name) {
			return e.ID, nil
		}
	}
	if name != "" {
		return uuid.Nil, fmt.Errorf("%s: no %s named %q", path, kind, name)
	}
	return uuid.Nil, fmt.Errorf("%s: no %s", path, kind)
}
