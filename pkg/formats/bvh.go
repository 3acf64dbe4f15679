// BVH (Biovision hierarchy) motion capture parser.
package formats

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
)

// BVH format errors.
var (
	ErrInvalidBVHHeader = errors.New("invalid BVH header: expected 'HIERARCHY'")
	ErrMalformedBVH     = errors.New("malformed BVH")
	ErrTruncatedBVHData = errors.New("truncated BVH motion data")
)

// BVHEndSiteName names the joints produced from End Site blocks.
const BVHEndSiteName = "EndSite"

// BVHMaxFrames bounds the frame count of a motion without channels.
const BVHMaxFrames = 1 << 20

// BVHChannel identifies one motion channel.
type BVHChannel uint8

// BVH channel codes.
const (
	BVHXPosition BVHChannel = 0x01
	BVHYPosition BVHChannel = 0x02
	BVHZPosition BVHChannel = 0x04
	BVHZRotation BVHChannel = 0x10
	BVHXRotation BVHChannel = 0x20
	BVHYRotation BVHChannel = 0x40
)

var bvhChannelNames = map[string]BVHChannel{
	"xposition": BVHXPosition,
	"yposition": BVHYPosition,
	"zposition": BVHZPosition,
	"zrotation": BVHZRotation,
	"xrotation": BVHXRotation,
	"yrotation": BVHYRotation,
}

// IsRotation reports whether the channel is a rotation channel.
func (c BVHChannel) IsRotation() bool {
	return c&(BVHXRotation|BVHYRotation|BVHZRotation) != 0
}

// String returns the channel name as written in BVH files.
func (c BVHChannel) String() string {
	switch c {
	case BVHXPosition:
		return "Xposition"
	case BVHYPosition:
		return "Yposition"
	case BVHZPosition:
		return "Zposition"
	case BVHZRotation:
		return "Zrotation"
	case BVHXRotation:
		return "Xrotation"
	case BVHYRotation:
		return "Yrotation"
	default:
		return fmt.Sprintf("BVHChannel(%d)", uint8(c))
	}
}

// BVHJoint is a hierarchy node. Joints are stored depth-first, so a parent
// always precedes its children.
type BVHJoint struct {
	Name         string
	Parent       int // -1 for roots
	Offset       [3]float32
	Channels     []BVHChannel
	ChannelStart int // index of the first channel in a motion frame
}

// IsEndSite reports whether the joint came from an End Site block.
func (j *BVHJoint) IsEndSite() bool {
	return j.Name == BVHEndSiteName
}

// BVH represents a parsed BVH file.
type BVH struct {
	Joints       []BVHJoint
	ChannelCount int
	FrameTime    float32 // seconds per frame
	Motion       [][]float32
}

// ParseBVH parses BVH text.
func ParseBVH(data []byte) (*BVH, error) {
	p := &bvhParser{tokens: strings.Fields(string(data))}
	if p.next() != BVHMagic {
		return nil, ErrInvalidBVHHeader
	}

	bvh := &BVH{}
	for p.peek() == "ROOT" {
		p.next()
		if err := p.parseJoint(bvh, -1); err != nil {
			return nil, err
		}
	}
	if len(bvh.Joints) == 0 {
		return nil, fmt.Errorf("%w: no ROOT joint", ErrMalformedBVH)
	}

	if err := p.expect("MOTION"); err != nil {
		return nil, err
	}
	if err := p.expect("Frames:"); err != nil {
		return nil, err
	}
	frames, err := strconv.Atoi(p.next())
	if err != nil || frames < 0 {
		return nil, fmt.Errorf("%w: bad frame count", ErrMalformedBVH)
	}
	if err := p.expect("Frame"); err != nil {
		return nil, err
	}
	if err := p.expect("Time:"); err != nil {
		return nil, err
	}
	ft, err := strconv.ParseFloat(p.next(), 32)
	if err != nil || !(ft > 0) || math.IsInf(ft, 0) {
		return nil, fmt.Errorf("%w: bad frame time", ErrMalformedBVH)
	}
	bvh.FrameTime = float32(ft)

	// Compare by division: frames comes from the file and the product can
	// overflow. Channel-less joints consume no tokens, so cap those too.
	remaining := len(p.tokens) - p.pos
	if (bvh.ChannelCount == 0 && frames > BVHMaxFrames) ||
		(bvh.ChannelCount > 0 && frames > remaining/bvh.ChannelCount) {
		return nil, fmt.Errorf("%w: need %d frames of %d channels", ErrTruncatedBVHData, frames, bvh.ChannelCount)
	}
	bvh.Motion = make([][]float32, frames)
	for f := range bvh.Motion {
		row := make([]float32, bvh.ChannelCount)
		for c := range row {
			v, err := strconv.ParseFloat(p.next(), 32)
			if err != nil {
				return nil, fmt.Errorf("%w: frame %d channel %d: %v", ErrMalformedBVH, f, c, err)
			}
			row[c] = float32(v)
		}
		bvh.Motion[f] = row
	}

	return bvh, nil
}

// ParseBVHFile parses a BVH file from disk.
func ParseBVHFile(path string) (*BVH, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading BVH file: %w", err)
	}
	return ParseBVH(data)
}

// FrameCount returns the number of motion frames.
func (b *BVH) FrameCount() int {
	return len(b.Motion)
}

type bvhParser struct {
	tokens []string
	pos    int
}

func (p *bvhParser) next() string {
	if p.pos >= len(p.tokens) {
		return ""
	}
	t := p.tokens[p.pos]
	p.pos++
	return t
}

func (p *bvhParser) peek() string {
	if p.pos >= len(p.tokens) {
		return ""
	}
	return p.tokens[p.pos]
}

func (p *bvhParser) expect(tok string) error {
	if got := p.next(); got != tok {
		return fmt.Errorf("%w: expected %q, got %q", ErrMalformedBVH, tok, got)
	}
	return nil
}

// parseJoint reads a joint name and its braced block. The ROOT or JOINT
// keyword has already been consumed.
func (p *bvhParser) parseJoint(bvh *BVH, parent int) error {
	name := p.next()
	if name == "" || name == "{" {
		return fmt.Errorf("%w: joint without a name", ErrMalformedBVH)
	}
	return p.parseBlock(bvh, name, parent)
}

func (p *bvhParser) parseBlock(bvh *BVH, name string, parent int) error {
	if err := p.expect("{"); err != nil {
		return err
	}
	index := len(bvh.Joints)
	bvh.Joints = append(bvh.Joints, BVHJoint{Name: name, Parent: parent, ChannelStart: bvh.ChannelCount})

	for {
		switch tok := p.next(); tok {
		case "OFFSET":
			for i := 0; i < 3; i++ {
				v, err := strconv.ParseFloat(p.next(), 32)
				if err != nil {
					return fmt.Errorf("%w: %s offset: %v", ErrMalformedBVH, name, err)
				}
				bvh.Joints[index].Offset[i] = float32(v)
			}
		case "CHANNELS":
			n, err := strconv.Atoi(p.next())
			if err != nil || n < 0 || n > 6 {
				return fmt.Errorf("%w: %s channel count", ErrMalformedBVH, name)
			}
			channels := make([]BVHChannel, n)
			for i := range channels {
				ch, ok := bvhChannelNames[strings.ToLower(p.next())]
				if !ok {
					return fmt.Errorf("%w: %s unknown channel", ErrMalformedBVH, name)
				}
				channels[i] = ch
			}
			bvh.Joints[index].Channels = channels
			bvh.Joints[index].ChannelStart = bvh.ChannelCount
			bvh.ChannelCount += n
		case "JOINT":
			if err := p.parseJoint(bvh, index); err != nil {
				return err
			}
		case "End":
			if err := p.expect("Site"); err != nil {
				return err
			}
			if err := p.parseBlock(bvh, BVHEndSiteName, index); err != nil {
				return err
			}
		case "}":
			return nil
		case "":
			return fmt.Errorf("%w: unterminated joint %s", ErrMalformedBVH, name)
		default:
			return fmt.Errorf("%w: unexpected %q in joint %s", ErrMalformedBVH, tok, name)
		}
	}
}
