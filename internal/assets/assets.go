// Package assets loads mesh, animation and motion capture files into a
// store keyed by stable resource ids.
package assets

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Faultbox/animviewer/internal/engine/animation"
	"github.com/Faultbox/animviewer/internal/engine/model"
	"github.com/Faultbox/animviewer/internal/logger"
	"github.com/Faultbox/animviewer/pkg/formats"
)

// Store errors.
var (
	ErrNotFound = errors.New("resource not found")
	ErrCorrupt  = errors.New("corrupt resource file")
)

// Namespace seeds resource ids.
var Namespace = uuid.MustParse("6f1c0d5e-3a2b-4c8d-9e7f-a1b2c3d4e5f6")

// Kind is the type of a loaded resource.
type Kind int

const (
	KindMesh Kind = iota
	KindAnimation
	KindMotionCapture
)

func (k Kind) String() string {
	switch k {
	case KindMesh:
		return "mesh"
	case KindAnimation:
		return "animation"
	case KindMotionCapture:
		return "motion capture"
	default:
		return "unknown"
	}
}

// Entry describes one resource produced by a load.
type Entry struct {
	ID   uuid.UUID
	Kind Kind
	Name string
}

// GPUMesh is a handle to uploaded vertex and index buffers.
type GPUMesh interface {
	Release()
}

// Uploader creates GPU buffers for a mesh.
type Uploader interface {
	UploadMesh(vertices []model.Vertex, indices []uint16) (GPUMesh, error)
}

// MeshResource is a loaded mesh with its bind pose.
type MeshResource struct {
	ID       uuid.UUID
	Path     string
	Mesh     *model.Mesh
	BindPose []mgl32.Mat4
	GPU      GPUMesh // nil until uploaded
}

// AnimationResource is a loaded keyframe animation.
type AnimationResource struct {
	ID        uuid.UUID
	Path      string
	Animation *animation.Animation
}

// MotionCaptureResource is a loaded point cloud recording.
type MotionCaptureResource struct {
	ID            uuid.UUID
	Path          string
	MotionCapture *animation.MotionCapture
}

// Stats summarizes store usage.
type Stats struct {
	Hits           int
	Misses         int
	Meshes         int
	Animations     int
	MotionCaptures int
}

// Store owns every loaded resource. It is not safe for concurrent use.
type Store struct {
	log   *zap.Logger
	files *Cache[string, []Entry]

	meshes         map[uuid.UUID]*MeshResource
	animations     map[uuid.UUID]*AnimationResource
	motionCaptures map[uuid.UUID]*MotionCaptureResource

	// Load order per kind.
	meshOrder, animationOrder, motionCaptureOrder []uuid.UUID
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		log:            logger.Named("store"),
		files:          NewCache[string, []Entry](),
		meshes:         make(map[uuid.UUID]*MeshResource),
		animations:     make(map[uuid.UUID]*AnimationResource),
		motionCaptures: make(map[uuid.UUID]*MotionCaptureResource),
	}
}

// Load reads a file and registers every resource it holds. A path loaded
// before returns its earlier entries without parsing again. Failed loads
// register nothing and are not remembered.
func (s *Store) Load(path string) ([]Entry, error) {
	path = filepath.Clean(path)
	if entries, ok := s.files.Get(path); ok {
		return entries, nil
	}

	kind, err := formats.SniffFile(path)
	if err == nil && kind == formats.KindUnknown {
		err = formats.ErrUnknownFormat
	}
	if err != nil {
		return nil, s.fail(path, kind, err)
	}

	var b batch
	if err := b.load(kind, path); err != nil {
		return nil, s.fail(path, kind, err)
	}

	entries := s.commit(path, &b)
	s.files.Set(path, entries)
	s.log.Debug("loaded",
		zap.String("path", path),
		zap.Stringer("format", kind),
		zap.Int("resources", len(entries)),
	)
	return entries, nil
}

func (s *Store) fail(path string, kind formats.Kind, err error) error {
	s.log.Warn("load failed",
		zap.String("path", path),
		zap.Stringer("format", kind),
		zap.Error(err),
	)
	return fmt.Errorf("loading %s (%s): %w", path, kind, err)
}

// commit assigns ids and registers the resources of a successful load.
// Single-resource files are keyed by path; multi-resource files by
// path#name, with a numeric suffix for repeated names.
func (s *Store) commit(path string, b *batch) []Entry {
	multi := len(b.meshes)+len(b.animations)+len(b.motionCaptures) > 1
	used := make(map[string]int)
	id := func(name string) uuid.UUID {
		key := path
		if multi {
			key = path + "#" + name
			if n := used[key]; n > 0 {
				used[key]++
				key = fmt.Sprintf("%s#%d", key, n)
			} else {
				used[key] = 1
			}
		}
		return uuid.NewSHA1(Namespace, []byte(key))
	}

	var entries []Entry
	for _, m := range b.meshes {
		r := &MeshResource{ID: id(m.Name), Path: path, Mesh: m, BindPose: model.BindPose(m)}
		if _, ok := s.meshes[r.ID]; !ok {
			s.meshOrder = append(s.meshOrder, r.ID)
		}
		s.meshes[r.ID] = r
		entries = append(entries, Entry{ID: r.ID, Kind: KindMesh, Name: m.Name})
	}
	for _, a := range b.animations {
		r := &AnimationResource{ID: id(a.Name), Path: path, Animation: a}
		if _, ok := s.animations[r.ID]; !ok {
			s.animationOrder = append(s.animationOrder, r.ID)
		}
		s.animations[r.ID] = r
		entries = append(entries, Entry{ID: r.ID, Kind: KindAnimation, Name: a.Name})
	}
	for _, mc := range b.motionCaptures {
		r := &MotionCaptureResource{ID: id(mc.Name), Path: path, MotionCapture: mc}
		if _, ok := s.motionCaptures[r.ID]; !ok {
			s.motionCaptureOrder = append(s.motionCaptureOrder, r.ID)
		}
		s.motionCaptures[r.ID] = r
		entries = append(entries, Entry{ID: r.ID, Kind: KindMotionCapture, Name: mc.Name})
	}
	return entries
}

// Mesh returns a loaded mesh.
func (s *Store) Mesh(id uuid.UUID) (*MeshResource, error) {
	if r, ok := s.meshes[id]; ok {
		return r, nil
	}
	return nil, fmt.Errorf("mesh %s: %w", id, ErrNotFound)
}

// Animation returns a loaded animation.
func (s *Store) Animation(id uuid.UUID) (*AnimationResource, error) {
	if r, ok := s.animations[id]; ok {
		return r, nil
	}
	return nil, fmt.Errorf("animation %s: %w", id, ErrNotFound)
}

// MotionCapture returns a loaded motion capture.
func (s *Store) MotionCapture(id uuid.UUID) (*MotionCaptureResource, error) {
	if r, ok := s.motionCaptures[id]; ok {
		return r, nil
	}
	return nil, fmt.Errorf("motion capture %s: %w", id, ErrNotFound)
}

// EachMesh calls fn for every mesh in load order.
func (s *Store) EachMesh(fn func(*MeshResource)) {
	for _, id := range s.meshOrder {
		fn(s.meshes[id])
	}
}

// EachAnimation calls fn for every animation in load order.
func (s *Store) EachAnimation(fn func(*AnimationResource)) {
	for _, id := range s.animationOrder {
		fn(s.animations[id])
	}
}

// EachMotionCapture calls fn for every motion capture in load order.
func (s *Store) EachMotionCapture(fn func(*MotionCaptureResource)) {
	for _, id := range s.motionCaptureOrder {
		fn(s.motionCaptures[id])
	}
}

// UploadDirty uploads every mesh without GPU buffers. Meshes that fail stay
// dirty and are retried on the next call.
func (s *Store) UploadDirty(up Uploader) error {
	var errs []error
	for _, id := range s.meshOrder {
		r := s.meshes[id]
		if r.GPU != nil {
			continue
		}
		gpu, err := up.UploadMesh(r.Mesh.Vertices, r.Mesh.Indices)
		if err != nil {
			errs = append(errs, fmt.Errorf("uploading %s: %w", r.Mesh.Name, err))
			continue
		}
		r.GPU = gpu
	}
	return errors.Join(errs...)
}

// Stats returns cache and resource counts.
func (s *Store) Stats() Stats {
	hits, misses := s.files.Stats()
	return Stats{
		Hits:           hits,
		Misses:         misses,
		Meshes:         len(s.meshes),
		Animations:     len(s.animations),
		MotionCaptures: len(s.motionCaptures),
	}
}

// Close releases GPU buffers and forgets every resource.
func (s *Store) Close() {
	for _, r := range s.meshes {
		if r.GPU != nil {
			r.GPU.Release()
			r.GPU = nil
		}
	}
	s.files.Clear()
	clear(s.meshes)
	clear(s.animations)
	clear(s.motionCaptures)
	s.meshOrder, s.animationOrder, s.motionCaptureOrder = nil, nil, nil
}

// batch collects the resources built from one file before they are
// committed, so a failed load leaves the store untouched.
type batch struct {
	meshes         []*model.Mesh
	animations     []*animation.Animation
	motionCaptures []*animation.MotionCapture
}

func baseName(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

func (b *batch) loadL3D(path string) error {
	l3d, err := formats.ParseL3DFile(path)
	if err != nil {
		return err
	}
	m, err := model.BuildL3D(l3d)
	if err != nil {
		return err
	}
	if m.Name == "" {
		m.Name = baseName(path)
	}
	b.meshes = append(b.meshes, m)
	return nil
}

func (b *batch) loadANM(path string) error {
	anm, err := formats.ParseANMFile(path)
	if err != nil {
		return err
	}
	a, err := animation.BuildANM(anm)
	if err != nil {
		return err
	}
	if a.Name == "" {
		a.Name = baseName(path)
	}
	b.animations = append(b.animations, a)
	return nil
}

func (b *batch) loadMotionCapture(path string) error {
	raw, err := formats.ParseMotionCaptureFile(path)
	if err != nil {
		return err
	}
	mc, err := animation.BuildMotionCapture(raw)
	if err != nil {
		return err
	}
	if mc.Name == "" {
		mc.Name = baseName(path)
	}
	b.motionCaptures = append(b.motionCaptures, mc)
	return nil
}

func (b *batch) loadBVH(path string) error {
	bvh, err := formats.ParseBVHFile(path)
	if err != nil {
		return err
	}
	a, err := animation.BuildBVH(bvh)
	if err != nil {
		return err
	}
	a.Name = baseName(path)
	b.animations = append(b.animations, a)
	return nil
}

// load parses one file into the batch. A panic while decoding fails only
// this file.
func (b *batch) load(kind formats.Kind, path string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrCorrupt, r)
		}
	}()

	switch kind {
	case formats.KindL3D:
		return b.loadL3D(path)
	case formats.KindANM:
		return b.loadANM(path)
	case formats.KindMotionCapture:
		return b.loadMotionCapture(path)
	case formats.KindBVH:
		return b.loadBVH(path)
	case formats.KindFBX:
		return b.loadFBX(path)
	}
	return formats.ErrUnknownFormat
}

// loadFBX keeps whatever the scene holds. A scene with neither meshes nor
// animations fails.
func (b *batch) loadFBX(path string) error {
	scene, err := formats.ParseFBXSceneFile(path)
	if err != nil {
		return err
	}
	meshes, err := model.BuildFBX(scene)
	if err != nil {
		return err
	}
	anims, animErr := animation.BuildFBX(scene)
	if animErr != nil && !errors.Is(animErr, animation.ErrEmptyAnimation) && !errors.Is(animErr, animation.ErrNoSkeleton) {
		return animErr
	}
	if len(meshes) == 0 && len(anims) == 0 {
		if animErr != nil {
			return animErr
		}
		return animation.ErrEmptyAnimation
	}
	b.meshes = append(b.meshes, meshes...)
	b.animations = append(b.animations, anims...)
	return nil
}
