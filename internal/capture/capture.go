// Package capture implements the binary parser (C1): it decodes a vendor
// telemetry capture's fixed header, disk sub-header, session metadata
// document, channel descriptors, and sample matrix into in-memory channel
// arrays addressable by name.
//
// Layout (little-endian), in order: a 112-byte fixed header, a 32-byte
// disk sub-header, a UTF-8 session metadata document, N 144-byte channel
// descriptor records, then the sample matrix. This mirrors the teacher's
// fixed-record binary decoding in internal/lidar/parse/extract.go: sizes
// and offsets are constants, every read is bounds-checked against the
// buffer before it happens, and unknown type codes are a hard error
// rather than a silent misread.
package capture

import (
	"encoding/binary"
	"fmt"

	"github.com/banshee-data/telemetry-core/internal/errs"
)

const (
	headerSize     = 112
	subHeaderSize  = 32
	varHeaderSize  = 144
	varNameLen     = 32
	varDescLen     = 64
	varUnitLen     = 32
)

// ChannelType is the wire type code for a channel descriptor.
type ChannelType int32

const (
	TypeBool    ChannelType = 1
	TypeInt32   ChannelType = 2
	TypeBitfield ChannelType = 3
	TypeFloat32 ChannelType = 4
	TypeDouble  ChannelType = 5
)

func (t ChannelType) size() (int, error) {
	switch t {
	case TypeBool:
		return 1, nil
	case TypeInt32, TypeBitfield, TypeFloat32:
		return 4, nil
	case TypeDouble:
		return 8, nil
	default:
		return 0, fmt.Errorf("unrecognised channel type code %d", t)
	}
}

// ChannelDescriptor is one 144-byte descriptor record.
type ChannelDescriptor struct {
	Type      ChannelType
	Offset    int32 // byte offset within a sample row
	Count     int32 // array length (1 for scalar channels)
	Name      string
	Desc      string
	Unit      string
}

// Channel is a decoded, name-addressable time series.
type Channel struct {
	Name string
	Type ChannelType
	// Float64, Int32, Bool hold the decoded column; exactly one is
	// populated depending on Type (TypeBitfield decodes into Int32).
	Float64 []float64
	Int32   []int32
	Bool    []bool
}

// Len reports the channel's sample count.
func (c Channel) Len() int {
	switch c.Type {
	case TypeFloat32, TypeDouble:
		return len(c.Float64)
	case TypeInt32, TypeBitfield:
		return len(c.Int32)
	case TypeBool:
		return len(c.Bool)
	default:
		return 0
	}
}

// AsFloat64 returns the channel's values widened to float64 regardless of
// underlying storage, for use by continuous-channel consumers (C3, C4).
func (c Channel) AsFloat64() []float64 {
	switch c.Type {
	case TypeFloat32, TypeDouble:
		return c.Float64
	case TypeInt32, TypeBitfield:
		out := make([]float64, len(c.Int32))
		for i, v := range c.Int32 {
			out[i] = float64(v)
		}
		return out
	case TypeBool:
		out := make([]float64, len(c.Bool))
		for i, v := range c.Bool {
			if v {
				out[i] = 1
			}
		}
		return out
	default:
		return nil
	}
}

// SessionMeta is the subset of the session metadata document the core
// relies on.
type SessionMeta struct {
	TrackID          string
	TrackName        string
	TrackLengthM     float64
	CarID            string
	CarName          string
	DriverID         string
	DriverName       string
	SampleFrequencyHz float64
}

// Capture is the fully decoded in-memory representation of one capture
// file: session metadata plus a sample table addressable by channel name.
type Capture struct {
	Meta        SessionMeta
	NumSamples  int
	TickRate    float64
	descriptors map[string]ChannelDescriptor
	sampleSize  int
	rows        []byte // raw sample matrix, NumSamples rows of sampleSize bytes
}

type header struct {
	numVars         int32
	varHeaderOffset int32
	numBuf          int32
	bufLen          int32
	sessionInfoOff  int32
	sessionInfoLen  int32
	tickRate        int32
	numSamples      int32
	sampleOffset    int32
	sampleSize      int32
}

// Decode parses a complete capture buffer. It validates every offset and
// length against the buffer size before dereferencing it, per §4.1.
func Decode(buf []byte) (*Capture, error) {
	if len(buf) < headerSize+subHeaderSize {
		return nil, errs.Wrap(errs.MalformedCapture, nil, "buffer too small for fixed header (%d bytes)", len(buf))
	}

	h, err := parseHeader(buf[:headerSize])
	if err != nil {
		return nil, err
	}

	if h.sessionInfoOff < 0 || h.sessionInfoLen < 0 ||
		int(h.sessionInfoOff)+int(h.sessionInfoLen) > len(buf) {
		return nil, errs.Wrap(errs.MalformedCapture, nil,
			"session metadata region [%d,+%d) out of bounds (file %d bytes)",
			h.sessionInfoOff, h.sessionInfoLen, len(buf))
	}
	metaDoc := buf[h.sessionInfoOff : h.sessionInfoOff+h.sessionInfoLen]

	meta, err := parseSessionMeta(metaDoc)
	if err != nil {
		return nil, err
	}
	meta.SampleFrequencyHz = float64(h.tickRate)

	if h.varHeaderOffset < 0 || h.numVars < 0 {
		return nil, errs.Wrap(errs.MalformedCapture, nil, "negative channel table offset/count")
	}
	descTableEnd := int(h.varHeaderOffset) + int(h.numVars)*varHeaderSize
	if descTableEnd > len(buf) {
		return nil, errs.Wrap(errs.MalformedCapture, nil,
			"channel descriptor table [%d,+%d) exceeds file size %d",
			h.varHeaderOffset, int(h.numVars)*varHeaderSize, len(buf))
	}

	descriptors, sampleSize, err := parseDescriptors(buf[h.varHeaderOffset:descTableEnd], int(h.numVars))
	if err != nil {
		return nil, err
	}
	if int(h.sampleSize) > sampleSize {
		sampleSize = int(h.sampleSize)
	}

	if h.sampleOffset < 0 || h.numSamples < 0 {
		return nil, errs.Wrap(errs.MalformedCapture, nil, "negative sample matrix offset/count")
	}
	rowsEnd := int(h.sampleOffset) + int(h.numSamples)*sampleSize
	if rowsEnd > len(buf) {
		return nil, errs.Wrap(errs.MalformedCapture, nil,
			"sample matrix [%d,+%d) exceeds file size %d",
			h.sampleOffset, int(h.numSamples)*sampleSize, len(buf))
	}

	return &Capture{
		Meta:        meta,
		NumSamples:  int(h.numSamples),
		TickRate:    float64(h.tickRate),
		descriptors: descriptors,
		sampleSize:  sampleSize,
		rows:        buf[h.sampleOffset:rowsEnd],
	}, nil
}

func parseHeader(b []byte) (header, error) {
	if len(b) < headerSize {
		return header{}, errs.Wrap(errs.MalformedCapture, nil, "header region too short")
	}
	le := binary.LittleEndian
	return header{
		numVars:         int32(le.Uint32(b[0:4])),
		varHeaderOffset: int32(le.Uint32(b[4:8])),
		numBuf:          int32(le.Uint32(b[8:12])),
		bufLen:          int32(le.Uint32(b[12:16])),
		sessionInfoOff:  int32(le.Uint32(b[16:20])),
		sessionInfoLen:  int32(le.Uint32(b[20:24])),
		tickRate:        int32(le.Uint32(b[24:28])),
		numSamples:      int32(le.Uint32(b[28:32])),
		sampleOffset:    int32(le.Uint32(b[32:36])),
		sampleSize:      int32(le.Uint32(b[36:40])),
	}, nil
}

// parseDescriptors decodes n fixed 144-byte records starting at b[0].
func parseDescriptors(b []byte, n int) (map[string]ChannelDescriptor, int, error) {
	out := make(map[string]ChannelDescriptor, n)
	maxEnd := 0
	le := binary.LittleEndian
	for i := 0; i < n; i++ {
		rec := b[i*varHeaderSize : (i+1)*varHeaderSize]
		typ := ChannelType(int32(le.Uint32(rec[0:4])))
		size, err := typ.size()
		if err != nil {
			return nil, 0, errs.Wrap(errs.UnsupportedChannelType, err, "descriptor %d", i)
		}
		offset := int32(le.Uint32(rec[4:8]))
		count := int32(le.Uint32(rec[8:12]))
		name := cString(rec[12 : 12+varNameLen])
		desc := cString(rec[12+varNameLen : 12+varNameLen+varDescLen])
		unit := cString(rec[12+varNameLen+varDescLen : 12+varNameLen+varDescLen+varUnitLen])

		end := int(offset) + size*int(count)
		if end > maxEnd {
			maxEnd = end
		}
		out[name] = ChannelDescriptor{Type: typ, Offset: offset, Count: count, Name: name, Desc: desc, Unit: unit}
	}
	return out, maxEnd, nil
}

func cString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

// RequiredChannels is the canonical set of channel names the core relies
// on, per §3.
var RequiredChannels = []string{
	"Speed", "Throttle", "Brake", "SteeringWheelAngle", "Lat", "Lon", "Alt",
	"Lap", "LapCurrentLapTime", "LapDist", "LapDistPct",
	"SessionTime", "SessionTick", "RPM", "Gear", "PlayerTrackSurface",
	"PlayerCarMyIncidentCount", "OnPitRoad",
}

// Channel materialises a single named channel's full column. Extraction
// computes a base offset and a row stride once, then slices every sample
// row with that stride — there is no per-channel rescan of the file.
func (c *Capture) Channel(name string) (Channel, error) {
	d, ok := c.descriptors[name]
	if !ok {
		return Channel{}, errs.Wrap(errs.MissingChannel, nil, "channel %q not present in capture", name)
	}
	size, err := d.Type.size()
	if err != nil {
		return Channel{}, errs.Wrap(errs.UnsupportedChannelType, err, "channel %q", name)
	}
	if int(d.Offset)+size > c.sampleSize {
		return Channel{}, errs.Wrap(errs.MalformedCapture, nil,
			"channel %q offset %d size %d exceeds sample row width %d", name, d.Offset, size, c.sampleSize)
	}

	ch := Channel{Name: name, Type: d.Type}
	base := int(d.Offset)
	stride := c.sampleSize
	le := binary.LittleEndian

	switch d.Type {
	case TypeFloat32:
		vals := make([]float64, c.NumSamples)
		for i := 0; i < c.NumSamples; i++ {
			off := i*stride + base
			vals[i] = float64(float32FromBits(le.Uint32(c.rows[off : off+4])))
		}
		ch.Float64 = vals
	case TypeDouble:
		vals := make([]float64, c.NumSamples)
		for i := 0; i < c.NumSamples; i++ {
			off := i*stride + base
			vals[i] = float64FromBits(le.Uint64(c.rows[off : off+8]))
		}
		ch.Float64 = vals
	case TypeInt32, TypeBitfield:
		vals := make([]int32, c.NumSamples)
		for i := 0; i < c.NumSamples; i++ {
			off := i*stride + base
			vals[i] = int32(le.Uint32(c.rows[off : off+4]))
		}
		ch.Int32 = vals
	case TypeBool:
		vals := make([]bool, c.NumSamples)
		for i := 0; i < c.NumSamples; i++ {
			off := i*stride + base
			vals[i] = c.rows[off] != 0
		}
		ch.Bool = vals
	default:
		return Channel{}, errs.Wrap(errs.UnsupportedChannelType, nil, "channel %q type %d", name, d.Type)
	}
	return ch, nil
}

// RequireChannels decodes every channel in RequiredChannels, returning
// MissingChannel on the first absence.
func (c *Capture) RequireChannels() (map[string]Channel, error) {
	out := make(map[string]Channel, len(RequiredChannels))
	for _, name := range RequiredChannels {
		ch, err := c.Channel(name)
		if err != nil {
			return nil, err
		}
		out[name] = ch
	}
	return out, nil
}

// HasChannel reports whether a channel descriptor exists by name, without
// materialising its column.
func (c *Capture) HasChannel(name string) bool {
	_, ok := c.descriptors[name]
	return ok
}
