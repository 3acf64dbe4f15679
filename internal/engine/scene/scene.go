// Package scene tracks the entities shown by the viewer: a mesh placed in
// the world, optionally driven by a skeletal animation or a motion capture.
package scene

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Faultbox/animviewer/internal/assets"
	"github.com/Faultbox/animviewer/internal/engine/animation"
	"github.com/Faultbox/animviewer/internal/logger"
	"github.com/Faultbox/animviewer/pkg/math"
)

// Scene errors.
var (
	ErrNoEntity = errors.New("entity not found")
	ErrNoMesh   = errors.New("entity has no mesh")
	ErrIdle     = errors.New("entity has no playback")
)

// Config contains scene configuration options.
type Config struct {
	Loop                  bool
	RelativeOffsetDivisor float32
	MocapScale            float32
	MocapNodeSize         float32
}

// DefaultConfig returns a default scene configuration.
func DefaultConfig() Config {
	return Config{
		Loop:                  true,
		RelativeOffsetDivisor: animation.DefaultRelativeOffsetDivisor,
		MocapScale:            animation.DefaultMocapScale,
		MocapNodeSize:         animation.DefaultMocapNodeSize,
	}
}

// Transform places an entity in the world.
type Transform struct {
	Position    mgl32.Vec3
	Orientation mgl32.Quat
	Scale       mgl32.Vec3
}

// Identity returns a transform that changes nothing.
func Identity() Transform {
	return Transform{Orientation: mgl32.QuatIdent(), Scale: mgl32.Vec3{1, 1, 1}}
}

// Matrix returns T * R * S.
func (t Transform) Matrix() mgl32.Mat4 {
	return math.TRS(t.Position, t.Orientation.Mat4().Mat3(), t.Scale)
}

// Entity is one object in the scene. At most one of Animation and
// MotionCapture is set.
type Entity struct {
	ID            uuid.UUID
	MeshID        uuid.UUID // uuid.Nil for motion capture only entities
	Transform     Transform
	Animation     *animation.Playback
	MotionCapture *animation.MocapPlayback
}

// clock returns the active playback clock, if any.
func (e *Entity) clock() *animation.Clock {
	switch {
	case e.Animation != nil:
		return &e.Animation.Clock
	case e.MotionCapture != nil:
		return &e.MotionCapture.Clock
	}
	return nil
}

// Scene is the entity registry. Like the store it reads from, it is not
// safe for concurrent use.
type Scene struct {
	config   Config
	store    *assets.Store
	log      *zap.Logger
	entities map[uuid.UUID]*Entity
	order    []uuid.UUID
}

// New creates an empty scene backed by store.
func New(store *assets.Store, cfg Config) *Scene {
	return &Scene{
		config:   cfg,
		store:    store,
		log:      logger.Named("scene"),
		entities: make(map[uuid.UUID]*Entity),
	}
}

func (s *Scene) add(e *Entity) *Entity {
	e.ID = uuid.Must(uuid.NewV7())
	s.entities[e.ID] = e
	s.order = append(s.order, e.ID)
	return e
}

// AddMesh creates an entity showing a loaded mesh. A mesh with a default
// matrix starts at the position, orientation and scale it encodes.
func (s *Scene) AddMesh(meshID uuid.UUID) (*Entity, error) {
	r, err := s.store.Mesh(meshID)
	if err != nil {
		return nil, err
	}

	t := Identity()
	if m := r.Mesh.DefaultMatrix; m != nil {
		t.Position, t.Orientation, t.Scale = math.Decompose(*m)
	}
	e := s.add(&Entity{MeshID: meshID, Transform: t})
	s.log.Debug("added mesh", zap.Stringer("entity", e.ID), zap.String("mesh", r.Mesh.Name))
	return e, nil
}

// AddMotionCapture creates an entity playing a motion capture.
func (s *Scene) AddMotionCapture(mcID uuid.UUID) (*Entity, error) {
	e := s.add(&Entity{Transform: Identity()})
	if err := s.AttachMotionCapture(e.ID, mcID); err != nil {
		s.Remove(e.ID)
		return nil, err
	}
	return e, nil
}

// Entity returns an entity by id.
func (s *Scene) Entity(id uuid.UUID) (*Entity, error) {
	if e, ok := s.entities[id]; ok {
		return e, nil
	}
	return nil, fmt.Errorf("%s: %w", id, ErrNoEntity)
}

// Entities returns every entity in creation order.
func (s *Scene) Entities() []*Entity {
	out := make([]*Entity, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.entities[id])
	}
	return out
}

// Remove deletes an entity. Unknown ids are ignored.
func (s *Scene) Remove(id uuid.UUID) {
	if _, ok := s.entities[id]; !ok {
		return
	}
	delete(s.entities, id)
	for i, o := range s.order {
		if o == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// AttachAnimation retargets an animation onto the entity's mesh and starts
// playing it. Any motion capture on the entity is dropped.
func (s *Scene) AttachAnimation(id, animID uuid.UUID) error {
	e, err := s.Entity(id)
	if err != nil {
		return err
	}
	if e.MeshID == uuid.Nil {
		return fmt.Errorf("%s: %w", id, ErrNoMesh)
	}
	mesh, err := s.store.Mesh(e.MeshID)
	if err != nil {
		return err
	}
	anim, err := s.store.Animation(animID)
	if err != nil {
		return err
	}

	p, err := animation.Retarget(mesh.Mesh, mesh.BindPose, anim.Animation)
	if err != nil {
		return fmt.Errorf("retargeting %s onto %s: %w", anim.Animation.Name, mesh.Mesh.Name, err)
	}
	p.AnimationID = animID
	p.SetLoop(s.config.Loop)
	p.Play()

	e.Animation = p
	e.MotionCapture = nil
	s.log.Debug("attached animation",
		zap.Stringer("entity", id),
		zap.String("animation", anim.Animation.Name),
		zap.Int("frames", p.FrameCount()),
	)
	return nil
}

// AttachMotionCapture starts playing a motion capture on the entity,
// dropping any skeletal animation.
func (s *Scene) AttachMotionCapture(id, mcID uuid.UUID) error {
	e, err := s.Entity(id)
	if err != nil {
		return err
	}
	if _, err := s.store.MotionCapture(mcID); err != nil {
		return err
	}

	p := animation.NewMocapPlayback(mcID)
	p.Scale = s.config.MocapScale
	p.NodeSize = s.config.MocapNodeSize
	p.SetLoop(s.config.Loop)
	p.Play()

	e.MotionCapture = p
	e.Animation = nil
	return nil
}

// Update advances every playback by dt.
func (s *Scene) Update(dt time.Duration) {
	for _, id := range s.order {
		e := s.entities[id]
		switch {
		case e.Animation != nil:
			e.Animation.Advance(dt)
		case e.MotionCapture != nil:
			r, err := s.store.MotionCapture(e.MotionCapture.MotionCaptureID)
			if err != nil {
				continue
			}
			e.MotionCapture.Advance(dt, r.MotionCapture)
		}
	}
}

// Joints returns the skinning matrices of an entity's mesh at the current
// time. Entities without an animation are in bind pose.
func (s *Scene) Joints(id uuid.UUID) ([]mgl32.Mat4, error) {
	e, err := s.Entity(id)
	if err != nil {
		return nil, err
	}
	if e.MeshID == uuid.Nil {
		return nil, fmt.Errorf("%s: %w", id, ErrNoMesh)
	}
	mesh, err := s.store.Mesh(e.MeshID)
	if err != nil {
		return nil, err
	}
	if e.Animation == nil {
		return append([]mgl32.Mat4(nil), mesh.BindPose...), nil
	}
	return e.Animation.Pose(mesh.BindPose, animation.PoseOptions{
		RelativeOffsetDivisor: s.config.RelativeOffsetDivisor,
	}), nil
}

// Markers returns the scaled motion capture points of an entity.
func (s *Scene) Markers(id uuid.UUID) ([]mgl32.Vec3, error) {
	e, err := s.Entity(id)
	if err != nil {
		return nil, err
	}
	if e.MotionCapture == nil {
		return nil, fmt.Errorf("%s: %w", id, ErrIdle)
	}
	r, err := s.store.MotionCapture(e.MotionCapture.MotionCaptureID)
	if err != nil {
		return nil, err
	}
	return e.MotionCapture.Points(r.MotionCapture), nil
}

func (s *Scene) control(id uuid.UUID, fn func(c *animation.Clock)) error {
	e, err := s.Entity(id)
	if err != nil {
		return err
	}
	c := e.clock()
	if c == nil {
		return fmt.Errorf("%s: %w", id, ErrIdle)
	}
	fn(c)
	return nil
}

// Play starts or restarts an entity's playback.
func (s *Scene) Play(id uuid.UUID) error {
	return s.control(id, (*animation.Clock).Play)
}

// Pause freezes an entity's playback.
func (s *Scene) Pause(id uuid.UUID) error {
	return s.control(id, (*animation.Clock).Pause)
}

// Resume continues a paused playback.
func (s *Scene) Resume(id uuid.UUID) error {
	return s.control(id, (*animation.Clock).Resume)
}

// Stop halts and rewinds an entity's playback.
func (s *Scene) Stop(id uuid.UUID) error {
	return s.control(id, (*animation.Clock).Stop)
}

// SetLoop sets whether an entity's playback wraps at the end.
func (s *Scene) SetLoop(id uuid.UUID, loop bool) error {
	return s.control(id, func(c *animation.Clock) { c.SetLoop(loop) })
}
