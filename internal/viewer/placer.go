package viewer

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Faultbox/animviewer/internal/assets"
	"github.com/Faultbox/animviewer/internal/engine/scene"
)

// ErrNoTarget is returned when an animation is opened before any mesh.
var ErrNoTarget = errors.New("no mesh to attach the animation to")

// placer turns loaded resources into scene entities. Meshes become new
// entities and the newest one is selected. The first animation of a file
// attaches to the selection. Motion captures get entities of their own.
type placer struct {
	store    *assets.Store
	scene    *scene.Scene
	log      *zap.Logger
	selected uuid.UUID
	animate  bool
}

// Load loads path and places everything it holds.
func (p *placer) Load(path string) error {
	entries, err := p.store.Load(path)
	if err != nil {
		return err
	}
	return p.place(entries)
}

func (p *placer) place(entries []assets.Entry) error {
	var errs []error
	var anim uuid.UUID
	hasMesh := false
	for _, e := range entries {
		switch e.Kind {
		case assets.KindMesh:
			ent, err := p.scene.AddMesh(e.ID)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			p.selected = ent.ID
			hasMesh = true
		case assets.KindAnimation:
			if anim == uuid.Nil {
				anim = e.ID
			}
		case assets.KindMotionCapture:
			if _, err := p.scene.AddMotionCapture(e.ID); err != nil {
				errs = append(errs, err)
			}
		}
	}

	// A scene file carrying its own takes only starts playing when asked to.
	if anim != uuid.Nil && (!hasMesh || p.animate) {
		if err := p.attach(anim); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (p *placer) attach(animID uuid.UUID) error {
	if p.selected == uuid.Nil {
		return ErrNoTarget
	}
	if _, err := p.scene.Entity(p.selected); err != nil {
		p.selected = uuid.Nil
		return ErrNoTarget
	}
	if err := p.scene.AttachAnimation(p.selected, animID); err != nil {
		return fmt.Errorf("attaching animation: %w", err)
	}
	p.log.Debug("animation attached", zap.Stringer("entity", p.selected), zap.Stringer("animation", animID))
	return nil
}
