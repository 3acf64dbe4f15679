// FBX loading. The node tree is read by modelconv's fbx package; this file
// converts its loosely typed attributes into the values the scene views in
// fbx_scene.go need.
package formats

import (
	"errors"
	"math"
	"strings"

	"github.com/binzume/modelconv/fbx"
)

// ErrInvalidFBX is returned when the FBX reader rejects a file.
var ErrInvalidFBX = errors.New("invalid FBX file")

// FBXTicksPerSecond is the KTime resolution.
const FBXTicksPerSecond = 46186158000

// fbxChild returns the first child of n with the given name, or nil.
func fbxChild(n *fbx.Node, name string) *fbx.Node {
	if n == nil {
		return nil
	}
	return n.FindChild(name)
}

// fbxChildren returns every child of n with the given name.
func fbxChildren(n *fbx.Node, name string) []*fbx.Node {
	if n == nil {
		return nil
	}
	var out []*fbx.Node
	for _, c := range n.GetChildren() {
		if c.Name == name {
			out = append(out, c)
		}
	}
	return out
}

// fbxAttr returns the raw value of attribute i, or nil when absent.
func fbxAttr(n *fbx.Node, i int) any {
	if n == nil {
		return nil
	}
	if a := n.Attr(i); a != nil {
		return a.Value
	}
	return nil
}

// fbxInt converts a scalar attribute to int64. Non-numeric values give 0.
func fbxInt(v any) int64 {
	switch v := v.(type) {
	case int16:
		return int64(v)
	case bool:
		if v {
			return 1
		}
		return 0
	case int32:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	case float32:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}

// fbxFloat converts a scalar attribute to float64. Non-numeric values give 0.
func fbxFloat(v any) float64 {
	switch v := v.(type) {
	case float32:
		return float64(v)
	case float64:
		return v
	}
	return float64(fbxInt(v))
}

// fbxString returns a string attribute. Object names of the form
// "Name\x00\x01Class" are cut at the separator.
func fbxString(v any) string {
	var s string
	switch v := v.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	}
	if i := strings.Index(s, "\x00\x01"); i >= 0 {
		s = s[:i]
	}
	return s
}

// fbxFloats converts a numeric array attribute to float64.
func fbxFloats(v any) []float64 {
	switch v := v.(type) {
	case []float64:
		return v
	case []float32:
		return convertSlice[float32, float64](v)
	case []int32:
		return convertSlice[int32, float64](v)
	case []int64:
		return convertSlice[int64, float64](v)
	}
	return nil
}

// fbxInt32s converts an integer array attribute to int32. Values that do not
// fit give nil.
func fbxInt32s(v any) []int32 {
	switch v := v.(type) {
	case []int32:
		return v
	case []int64:
		for _, x := range v {
			if x > math.MaxInt32 || x < math.MinInt32 {
				return nil
			}
		}
		return convertSlice[int64, int32](v)
	}
	return nil
}

// fbxInt64s converts an integer array attribute to int64.
func fbxInt64s(v any) []int64 {
	switch v := v.(type) {
	case []int64:
		return v
	case []int32:
		return convertSlice[int32, int64](v)
	}
	return nil
}

func convertSlice[From, To int32 | int64 | float32 | float64](in []From) []To {
	out := make([]To, len(in))
	for i, x := range in {
		out[i] = To(x)
	}
	return out
}
