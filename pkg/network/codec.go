package network

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/opd-ai/go-vehicle/pkg/physics"
	"github.com/opd-ai/go-vehicle/pkg/replication"
)

// Datagram sizes. Every datagram starts with a four byte magic naming its
// kind.
const (
	DatagramSize     = len("VSY1") + 3*8 // drive triple
	SlipDatagramSize = len("VSL1") + 2   // wheel index, slipping flag
	PoseDatagramSize = len("VPS1") + 4*8 // position, heading

	// MaxDatagramSize is the largest datagram a peer sends
	MaxDatagramSize = PoseDatagramSize
)

var (
	datagramMagic = [4]byte{'V', 'S', 'Y', '1'}
	slipMagic     = [4]byte{'V', 'S', 'L', '1'}
	poseMagic     = [4]byte{'V', 'P', 'S', '1'}
)

// ErrMalformedDatagram is returned for datagrams that fail to decode
var ErrMalformedDatagram = errors.New("malformed datagram")

// Kind identifies the payload of a datagram
type Kind int

const (
	KindUnknown Kind = iota
	KindTriple
	KindSlip
	KindPose
)

func (k Kind) String() string {
	switch k {
	case KindTriple:
		return "triple"
	case KindSlip:
		return "slip"
	case KindPose:
		return "pose"
	default:
		return "unknown"
	}
}

// KindOf reports the kind named by the magic of b
func KindOf(b []byte) Kind {
	if len(b) < 4 {
		return KindUnknown
	}
	switch {
	case bytes.Equal(b[:4], datagramMagic[:]):
		return KindTriple
	case bytes.Equal(b[:4], slipMagic[:]):
		return KindSlip
	case bytes.Equal(b[:4], poseMagic[:]):
		return KindPose
	default:
		return KindUnknown
	}
}

func putFloats(buf []byte, fs ...float64) {
	for i, f := range fs {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(f))
	}
}

func readFloats(b []byte, n int) ([]float64, error) {
	out := make([]float64, n)
	for i := range out {
		f := math.Float64frombits(binary.LittleEndian.Uint64(b[i*8:]))
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("%w: component %d is not finite", ErrMalformedDatagram, i)
		}
		out[i] = f
	}
	return out, nil
}

func checkFrame(b []byte, magic [4]byte, size int) error {
	if len(b) != size {
		return fmt.Errorf("%w: %d bytes", ErrMalformedDatagram, len(b))
	}
	if !bytes.Equal(b[:4], magic[:]) {
		return fmt.Errorf("%w: bad magic %q", ErrMalformedDatagram, b[:4])
	}
	return nil
}

// EncodeTriple writes v as magic followed by three little-endian float64s
func EncodeTriple(v mgl64.Vec3) []byte {
	buf := make([]byte, DatagramSize)
	copy(buf, datagramMagic[:])
	putFloats(buf[4:], v[0], v[1], v[2])
	return buf
}

// DecodeTriple parses a datagram produced by EncodeTriple. Non-finite
// components are rejected so a bad peer cannot poison the control state.
func DecodeTriple(b []byte) (mgl64.Vec3, error) {
	if err := checkFrame(b, datagramMagic, DatagramSize); err != nil {
		return mgl64.Vec3{}, err
	}
	fs, err := readFloats(b[4:], 3)
	if err != nil {
		return mgl64.Vec3{}, err
	}
	return mgl64.Vec3{fs[0], fs[1], fs[2]}, nil
}

// EncodeSlip writes a slip transition as magic, wheel index and flag
func EncodeSlip(s replication.Slip) []byte {
	buf := make([]byte, SlipDatagramSize)
	copy(buf, slipMagic[:])
	buf[4] = byte(s.Wheel)
	if s.Slipping {
		buf[5] = 1
	}
	return buf
}

// DecodeSlip parses a datagram produced by EncodeSlip
func DecodeSlip(b []byte) (replication.Slip, error) {
	if err := checkFrame(b, slipMagic, SlipDatagramSize); err != nil {
		return replication.Slip{}, err
	}
	wheel := physics.WheelPosition(b[4])
	if wheel > physics.RearRight {
		return replication.Slip{}, fmt.Errorf("%w: wheel %d", ErrMalformedDatagram, b[4])
	}
	if b[5] > 1 {
		return replication.Slip{}, fmt.Errorf("%w: slip flag %d", ErrMalformedDatagram, b[5])
	}
	return replication.Slip{Wheel: wheel, Slipping: b[5] == 1}, nil
}

// EncodePose writes a chassis pose as magic and four little-endian float64s
func EncodePose(p replication.Pose) []byte {
	buf := make([]byte, PoseDatagramSize)
	copy(buf, poseMagic[:])
	putFloats(buf[4:], p.Position[0], p.Position[1], p.Position[2], p.Heading)
	return buf
}

// DecodePose parses a datagram produced by EncodePose
func DecodePose(b []byte) (replication.Pose, error) {
	if err := checkFrame(b, poseMagic, PoseDatagramSize); err != nil {
		return replication.Pose{}, err
	}
	fs, err := readFloats(b[4:], 4)
	if err != nil {
		return replication.Pose{}, err
	}
	return replication.Pose{Position: mgl64.Vec3{fs[0], fs[1], fs[2]}, Heading: fs[3]}, nil
}
