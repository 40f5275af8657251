package ab3418

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeFrameRoundTrip(t *testing.T) {
	f := Frame{Address: 0x01, Control: ControlGet, MessType: MessGetBlockMsg, Payload: []byte{0x01, 0x7E, 0x7D}}
	wire := EncodeFrame(f)
	assert.Equal(t, byte(0x7E), wire[0])
	assert.Equal(t, byte(0x7E), wire[len(wire)-1])

	decoded, err := DecodeFrame(wire[1:len(wire)-1], true)
	require.NoError(t, err)
	assert.Equal(t, f, decoded)
}

func TestDecodeFrameRejectsBadFCS(t *testing.T) {
	f := Frame{Address: 0x01, Control: ControlGet, MessType: MessGetBlockMsg, Payload: []byte{0x01}}
	wire := EncodeFrame(f)
	wire[len(wire)-2] ^= 0xFF // corrupt the FCS high (last) byte
	_, err := DecodeFrame(wire[1:len(wire)-1], true)
	assert.ErrorIs(t, err, ErrFCSMismatch)
}

func TestReassemblerYieldsFramesFromStream(t *testing.T) {
	f1 := Frame{Address: 0x01, Control: ControlGet, MessType: MessGetBlockMsg, Payload: []byte{0x01}}
	f2 := Frame{Address: 0x01, Control: ControlSet, MessType: MessSetSoftcall, Payload: []byte{0x02, 0x00, 0x00}}
	stream := append(EncodeFrame(f1), EncodeFrame(f2)...)

	r := NewReassembler(nil)
	r.Feed(stream)

	got1, err, ok := r.Next()
	require.True(t, ok)
	require.NoError(t, err)
	assert.Equal(t, f1, got1)

	got2, err, ok := r.Next()
	require.True(t, ok)
	require.NoError(t, err)
	assert.Equal(t, f2, got2)

	_, _, ok = r.Next()
	assert.False(t, ok)
}

func TestReassemblerHandlesPartialFeeds(t *testing.T) {
	f := Frame{Address: 0x01, Control: ControlGet, MessType: MessGetBlockMsg, Payload: []byte{0x01}}
	wire := EncodeFrame(f)

	r := NewReassembler(nil)
	r.Feed(wire[:len(wire)/2])
	_, _, ok := r.Next()
	assert.False(t, ok)

	r.Feed(wire[len(wire)/2:])
	got, err, ok := r.Next()
	require.True(t, ok)
	require.NoError(t, err)
	assert.Equal(t, f, got)
}

func TestDecodeRawSpat(t *testing.T) {
	payload := []byte{0x02, 0x02, 0x02, 0x02, 60, 60, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 255}
	s, err := DecodeRawSpat(payload)
	require.NoError(t, err)
	assert.Equal(t, [2]byte{2, 2}, s.ActivePhase)
	assert.Equal(t, byte(255), s.PatternNumber)
}

func TestPollDriverStepRespectsRateLimit(t *testing.T) {
	d := NewDriver(DefaultPollTable())
	d.ObserveAddress(0x01)
	now := time.Now()

	_, ok := d.Step(now)
	require.True(t, ok)
	_, ok = d.Step(now)
	assert.False(t, ok, "second poll within the rate-limit window should be suppressed")

	_, ok = d.Step(now.Add(600 * time.Millisecond))
	assert.True(t, ok)
}

func TestPollDriverMarksRowReturnedOnResponse(t *testing.T) {
	table := DefaultPollTable()
	d := NewDriver(table)
	d.ObserveAddress(0x01)
	now := time.Now()
	_, ok := d.Step(now)
	require.True(t, ok)

	resp := Frame{MessType: table[0].ExpectResponse, Payload: []byte{table[0].Data1}}
	d.HandleResponse(resp, nil)
	assert.True(t, d.table[0].Returned)
}

func TestSoftcallWriterPacesWrites(t *testing.T) {
	w := NewSoftcallWriter(0x01)
	w.SetVehCall(0x04)
	now := time.Now()

	frame, ok := w.Flush(now)
	require.True(t, ok)
	require.NotNil(t, frame)

	w.SetPedCall(0x08)
	_, ok = w.Flush(now)
	assert.False(t, ok, "write within 20ms should be suppressed")

	frame, ok = w.Flush(now.Add(25 * time.Millisecond))
	require.True(t, ok)
	decoded, err := DecodeFrame(frame[1:len(frame)-1], true)
	require.NoError(t, err)
	assert.Equal(t, byte(0x04), decoded.Payload[0])
	assert.Equal(t, byte(0x08), decoded.Payload[1])
}
