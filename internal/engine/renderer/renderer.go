// Package renderer provides OpenGL rendering for skinned meshes and motion
// capture markers.
package renderer

import (
	"errors"
	"fmt"
	"unsafe"

	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/Faultbox/animviewer/internal/assets"
	"github.com/Faultbox/animviewer/internal/engine/model"
	"github.com/Faultbox/animviewer/internal/engine/shader"
	"github.com/Faultbox/animviewer/internal/logger"
)

// MaxJoints is the size of the joint palette in the skinning shader. Bones
// past it are drawn with the last palette entry.
const MaxJoints = 60

// ErrEmptyMesh is returned when uploading a mesh with no triangles.
var ErrEmptyMesh = errors.New("mesh has no triangles")

// Config holds renderer configuration.
type Config struct {
	Width      int
	Height     int
	Background [3]float32
}

// Renderer handles all OpenGL rendering.
type Renderer struct {
	config Config
	log    *zap.Logger

	meshProgram  *shader.Program
	pointProgram *shader.Program

	pointVAO      uint32
	pointVBO      uint32
	pointCapacity int
}

// MeshBuffers is a mesh uploaded to the GPU.
type MeshBuffers struct {
	vao, vbo, ebo uint32
	count         int32
}

// Release deletes the GPU buffers. It is safe to call twice.
func (b *MeshBuffers) Release() {
	if b.vao == 0 {
		return
	}
	gl.DeleteVertexArrays(1, &b.vao)
	gl.DeleteBuffers(1, &b.vbo)
	gl.DeleteBuffers(1, &b.ebo)
	*b = MeshBuffers{}
}

var _ assets.Uploader = (*Renderer)(nil)

// New creates a new renderer.
// IMPORTANT: Must be called AFTER OpenGL context is created!
func New(cfg Config) (*Renderer, error) {
	r := &Renderer{
		config: cfg,
		log:    logger.Named("renderer"),
	}

	if err := gl.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize OpenGL: %w", err)
	}

	r.log.Info("OpenGL initialized",
		zap.String("version", gl.GoStr(gl.GetString(gl.VERSION))),
		zap.String("renderer", gl.GoStr(gl.GetString(gl.RENDERER))),
	)

	gl.Enable(gl.DEPTH_TEST)
	gl.DepthFunc(gl.LESS)
	gl.Enable(gl.PROGRAM_POINT_SIZE)
	bg := cfg.Background
	gl.ClearColor(bg[0], bg[1], bg[2], 1.0)

	var err error
	r.meshProgram, err = shader.Compile(meshVertexShader, meshFragmentShader)
	if err != nil {
		return nil, fmt.Errorf("mesh shader: %w", err)
	}
	r.pointProgram, err = shader.Compile(pointVertexShader, pointFragmentShader)
	if err != nil {
		r.meshProgram.Delete()
		return nil, fmt.Errorf("point shader: %w", err)
	}

	gl.GenVertexArrays(1, &r.pointVAO)
	gl.GenBuffers(1, &r.pointVBO)
	gl.BindVertexArray(r.pointVAO)
	gl.BindBuffer(gl.ARRAY_BUFFER, r.pointVBO)
	gl.VertexAttribPointerWithOffset(0, 3, gl.FLOAT, false, 3*4, 0)
	gl.EnableVertexAttribArray(0)
	gl.BindVertexArray(0)

	r.Resize(cfg.Width, cfg.Height)
	return r, nil
}

// Close cleans up renderer resources.
func (r *Renderer) Close() {
	r.log.Info("closing renderer")
	if r.pointVAO != 0 {
		gl.DeleteVertexArrays(1, &r.pointVAO)
	}
	if r.pointVBO != 0 {
		gl.DeleteBuffers(1, &r.pointVBO)
	}
	if r.meshProgram != nil {
		r.meshProgram.Delete()
	}
	if r.pointProgram != nil {
		r.pointProgram.Delete()
	}
}

// Resize handles window resize.
func (r *Renderer) Resize(width, height int) {
	r.config.Width = width
	r.config.Height = height
	gl.Viewport(0, 0, int32(width), int32(height))
	r.log.Debug("renderer resized",
		zap.Int("width", width),
		zap.Int("height", height),
	)
}

// Aspect returns the viewport aspect ratio.
func (r *Renderer) Aspect() float32 {
	if r.config.Height == 0 {
		return 1
	}
	return float32(r.config.Width) / float32(r.config.Height)
}

// Begin starts a new frame.
func (r *Renderer) Begin() {
	gl.Clear(gl.COLOR_BUFFER_BIT | gl.DEPTH_BUFFER_BIT)
}

// End finishes the current frame.
func (r *Renderer) End() {
	gl.BindVertexArray(0)
	gl.UseProgram(0)
}

// UploadMesh copies a mesh's vertices and indices to the GPU.
func (r *Renderer) UploadMesh(vertices []model.Vertex, indices []uint16) (assets.GPUMesh, error) {
	if len(vertices) == 0 || len(indices) == 0 {
		return nil, ErrEmptyMesh
	}

	b := &MeshBuffers{count: int32(len(indices))}
	gl.GenVertexArrays(1, &b.vao)
	gl.BindVertexArray(b.vao)

	gl.GenBuffers(1, &b.vbo)
	gl.BindBuffer(gl.ARRAY_BUFFER, b.vbo)
	gl.BufferData(gl.ARRAY_BUFFER, len(vertices)*int(vertexSize), unsafe.Pointer(&vertices[0]), gl.STATIC_DRAW)
	for i, a := range vertexAttributes {
		if a.integer {
			gl.VertexAttribIPointerWithOffset(uint32(i), a.size, a.xtype, vertexSize, a.offset)
		} else {
			gl.VertexAttribPointerWithOffset(uint32(i), a.size, a.xtype, false, vertexSize, a.offset)
		}
		gl.EnableVertexAttribArray(uint32(i))
	}

	gl.GenBuffers(1, &b.ebo)
	gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, b.ebo)
	gl.BufferData(gl.ELEMENT_ARRAY_BUFFER, len(indices)*2, unsafe.Pointer(&indices[0]), gl.STATIC_DRAW)
	gl.BindVertexArray(0)

	if code := gl.GetError(); code != gl.NO_ERROR {
		b.Release()
		return nil, fmt.Errorf("uploading mesh: GL error 0x%x", code)
	}

	r.log.Debug("mesh uploaded",
		zap.Uint32("vao", b.vao),
		zap.Int("vertices", len(vertices)),
		zap.Int("indices", len(indices)),
	)
	return b, nil
}

// DrawMesh draws an uploaded mesh posed by joints.
func (r *Renderer) DrawMesh(gpu assets.GPUMesh, viewProj, modelMatrix mgl32.Mat4, joints []mgl32.Mat4, color [3]float32) {
	b, ok := gpu.(*MeshBuffers)
	if !ok || b.vao == 0 {
		return
	}

	palette := jointPalette(joints)
	p := r.meshProgram
	p.Use()
	gl.UniformMatrix4fv(p.Uniform("uViewProj"), 1, false, &viewProj[0])
	gl.UniformMatrix4fv(p.Uniform("uModel"), 1, false, &modelMatrix[0])
	gl.UniformMatrix4fv(p.Uniform("uJoints"), int32(len(palette)), false, &palette[0][0])
	gl.Uniform3f(p.Uniform("uColor"), color[0], color[1], color[2])

	gl.BindVertexArray(b.vao)
	gl.DrawElementsWithOffset(gl.TRIANGLES, b.count, gl.UNSIGNED_SHORT, 0)
	gl.BindVertexArray(0)
}

// DrawPoints draws motion capture markers as screen-space squares.
func (r *Renderer) DrawPoints(points []mgl32.Vec3, mvp mgl32.Mat4, size float32, color [3]float32) {
	if len(points) == 0 {
		return
	}

	gl.BindVertexArray(r.pointVAO)
	gl.BindBuffer(gl.ARRAY_BUFFER, r.pointVBO)
	bytes := len(points) * 3 * 4
	if len(points) > r.pointCapacity {
		gl.BufferData(gl.ARRAY_BUFFER, bytes, unsafe.Pointer(&points[0]), gl.DYNAMIC_DRAW)
		r.pointCapacity = len(points)
	} else {
		gl.BufferSubData(gl.ARRAY_BUFFER, 0, bytes, unsafe.Pointer(&points[0]))
	}

	p := r.pointProgram
	p.Use()
	gl.UniformMatrix4fv(p.Uniform("uMVP"), 1, false, &mvp[0])
	gl.Uniform1f(p.Uniform("uPointSize"), size)
	gl.Uniform3f(p.Uniform("uColor"), color[0], color[1], color[2])
	gl.DrawArrays(gl.POINTS, 0, int32(len(points)))
	gl.BindVertexArray(0)
}

// jointPalette returns the joint matrices sent to the shader. An empty
// pose yields a single identity joint.
func jointPalette(joints []mgl32.Mat4) []mgl32.Mat4 {
	switch {
	case len(joints) == 0:
		return []mgl32.Mat4{mgl32.Ident4()}
	case len(joints) > MaxJoints:
		return joints[:MaxJoints]
	}
	return joints
}
