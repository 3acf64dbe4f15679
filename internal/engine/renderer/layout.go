package renderer

import (
	"unsafe"

	"github.com/go-gl/gl/v4.1-core/gl"

	"github.com/Faultbox/animviewer/internal/engine/model"
)

// vertexSize is the stride of model.Vertex, which is uploaded as is.
const vertexSize = int32(unsafe.Sizeof(model.Vertex{}))

type attribute struct {
	size    int32
	xtype   uint32
	offset  uintptr
	integer bool
}

// vertexAttributes lists the shader inputs in location order.
var vertexAttributes = []attribute{
	{3, gl.FLOAT, unsafe.Offsetof(model.Vertex{}.Position), false},
	{3, gl.FLOAT, unsafe.Offsetof(model.Vertex{}.Normal), false},
	{2, gl.FLOAT, unsafe.Offsetof(model.Vertex{}.TexCoord), false},
	{1, gl.UNSIGNED_SHORT, unsafe.Offsetof(model.Vertex{}.BoneID), true},
	{1, gl.UNSIGNED_SHORT, unsafe.Offsetof(model.Vertex{}.BlendBoneID), true},
	{1, gl.FLOAT, unsafe.Offsetof(model.Vertex{}.BlendWeight), false},
}

// Vertices are stored in the space of their bone, so the joint matrix
// alone places them in model space.
const meshVertexShader = `
#version 410 core

layout (location = 0) in vec3 aPosition;
layout (location = 1) in vec3 aNormal;
layout (location = 2) in vec2 aTexCoord;
layout (location = 3) in uint aBone;
layout (location = 4) in uint aBlendBone;
layout (location = 5) in float aBlendWeight;

uniform mat4 uViewProj;
uniform mat4 uModel;
uniform mat4 uJoints[60];

out vec3 vNormal;

mat4 joint(uint i) {
	return uJoints[min(i, 59u)];
}

void main() {
	mat4 skin = joint(aBone) * (1.0 - aBlendWeight) + joint(aBlendBone) * aBlendWeight;
	vec4 world = uModel * skin * vec4(aPosition, 1.0);
	vNormal = mat3(uModel * skin) * aNormal;
	gl_Position = uViewProj * world;
}
`

const meshFragmentShader = `
#version 410 core

in vec3 vNormal;
uniform vec3 uColor;
out vec4 FragColor;

void main() {
	vec3 n = normalize(vNormal);
	float diffuse = max(dot(n, normalize(vec3(0.4, 1.0, 0.6))), 0.0);
	FragColor = vec4(uColor * (0.3 + 0.7 * diffuse), 1.0);
}
`

const pointVertexShader = `
#version 410 core

layout (location = 0) in vec3 aPosition;
uniform mat4 uMVP;
uniform float uPointSize;

void main() {
	gl_Position = uMVP * vec4(aPosition, 1.0);
	gl_PointSize = uPointSize;
}
`

const pointFragmentShader = `
#version 410 core

uniform vec3 uColor;
out vec4 FragColor;

void main() {
	FragColor = vec4(uColor, 1.0);
}
`
