package capture

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// buildFixture assembles a minimal, valid capture buffer with three
// channels (Speed float32, Lap int32, OnPitRoad bool) and numSamples rows,
// so C1 behaviour can be tested without a real vendor file.
func buildFixture(t *testing.T, numSamples int) []byte {
	t.Helper()

	const (
		sessionInfoOff = headerSize + subHeaderSize
	)
	metaDoc := []byte("WeekendInfo:\n  TrackID: \"219\"\n  TrackDisplayName: Mount Panorama\n  TrackLength: \"6.21 km\"\nDriverInfo:\n  DriverCarIdx: 0\n  Drivers:\n    - CarIdx: 0\n      UserID: 42\n      UserName: Test Driver\n      CarID: 7\n      CarScreenName: Test Car\n")

	varHeaderOffset := sessionInfoOff + len(metaDoc)
	numVars := 3
	sampleOffset := varHeaderOffset + numVars*varHeaderSize

	type fieldSpec struct {
		name   string
		typ    ChannelType
		offset int32
		size   int
	}
	fields := []fieldSpec{
		{"Speed", TypeFloat32, 0, 4},
		{"Lap", TypeInt32, 4, 4},
		{"OnPitRoad", TypeBool, 8, 1},
	}
	sampleSize := 9

	buf := make([]byte, sampleOffset+numSamples*sampleSize)
	le := binary.LittleEndian

	le.PutUint32(buf[0:4], uint32(numVars))
	le.PutUint32(buf[4:8], uint32(varHeaderOffset))
	le.PutUint32(buf[16:20], uint32(sessionInfoOff))
	le.PutUint32(buf[20:24], uint32(len(metaDoc)))
	le.PutUint32(buf[24:28], 60)
	le.PutUint32(buf[28:32], uint32(numSamples))
	le.PutUint32(buf[32:36], uint32(sampleOffset))
	le.PutUint32(buf[36:40], uint32(sampleSize))

	copy(buf[sessionInfoOff:], metaDoc)

	for i, f := range fields {
		rec := buf[varHeaderOffset+i*varHeaderSize : varHeaderOffset+(i+1)*varHeaderSize]
		le.PutUint32(rec[0:4], uint32(f.typ))
		le.PutUint32(rec[4:8], uint32(f.offset))
		le.PutUint32(rec[8:12], 1)
		copy(rec[12:12+varNameLen], f.name)
	}

	for i := 0; i < numSamples; i++ {
		row := buf[sampleOffset+i*sampleSize:]
		le.PutUint32(row[0:4], math.Float32bits(float32(i)*1.5))
		le.PutUint32(row[4:8], uint32(i/10))
		if i%7 == 0 {
			row[8] = 1
		}
	}

	return buf
}

func TestDecode_MetaAndChannels(t *testing.T) {
	buf := buildFixture(t, 50)
	capt, err := Decode(buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if capt.Meta.TrackID != "219" {
		t.Errorf("TrackID = %q, want 219", capt.Meta.TrackID)
	}
	if capt.Meta.TrackLengthM != 6210 {
		t.Errorf("TrackLengthM = %v, want 6210", capt.Meta.TrackLengthM)
	}
	if capt.Meta.DriverName != "Test Driver" {
		t.Errorf("DriverName = %q", capt.Meta.DriverName)
	}

	speed, err := capt.Channel("Speed")
	if err != nil {
		t.Fatalf("Channel(Speed): %v", err)
	}
	if speed.Len() != 50 {
		t.Fatalf("Speed.Len() = %d, want 50", speed.Len())
	}
	if got, want := speed.Float64[10], 15.0; got != want {
		t.Errorf("Speed[10] = %v, want %v", got, want)
	}
}

func TestChannel_RoundTripDeterministic(t *testing.T) {
	buf := buildFixture(t, 30)
	capt, err := Decode(buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	a, err := capt.Channel("Lap")
	if err != nil {
		t.Fatal(err)
	}
	b, err := capt.Channel("Lap")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("re-extracting Lap twice produced different arrays (-first +second):\n%s", diff)
	}
}

func TestDecode_MissingChannel(t *testing.T) {
	buf := buildFixture(t, 5)
	capt, err := Decode(buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	_, err = capt.Channel("RPM")
	if err == nil {
		t.Fatal("expected MissingChannel error")
	}
}

func TestDecode_TruncatedBuffer(t *testing.T) {
	_, err := Decode(make([]byte, 10))
	if err == nil {
		t.Fatal("expected MalformedCapture error for truncated buffer")
	}
}
