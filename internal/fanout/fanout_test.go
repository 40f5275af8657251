package fanout

import (
	"testing"
	"time"

	"github.com/mmitss/intersection/internal/timingcard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCntrlStatusRoundTrip(t *testing.T) {
	s := CntrlStatus{
		Mode:                     timingcard.ModeCoordination,
		LocalCycleClockDs:        1234,
		CycleLengthDs:            8000,
		MaxTime2ChangePhaseExtDs: 300,
		SyncPhase:                [2]uint8{2, 6},
	}
	s.Phases[2] = timingcard.PhaseStatus{
		Color: timingcard.ColorProtectedGreen, Time2Next: timingcard.Bound{L: 50, U: 120},
		Ped: timingcard.PedWalk, PedTime2Next: timingcard.Bound{L: 20, U: 20},
	}
	s.Phases[4] = timingcard.PhaseStatus{Color: timingcard.ColorProtectedRed, Time2Next: timingcard.Bound{L: 10, U: 10}}

	buf := EncodeCntrlStatus(s)
	got, err := DecodeCntrlStatus(buf)
	require.NoError(t, err)
	assert.Equal(t, s.Mode, got.Mode)
	assert.Equal(t, s.LocalCycleClockDs, got.LocalCycleClockDs)
	assert.Equal(t, s.CycleLengthDs, got.CycleLengthDs)
	assert.Equal(t, s.MaxTime2ChangePhaseExtDs, got.MaxTime2ChangePhaseExtDs)
	assert.Equal(t, s.SyncPhase, got.SyncPhase)
	assert.Equal(t, s.Phases[2], got.Phases[2])
	assert.Equal(t, s.Phases[4], got.Phases[4])
}

func TestDecodeCntrlStatusRejectsShortPayload(t *testing.T) {
	_, err := DecodeCntrlStatus([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestHeaderRoundTrip(t *testing.T) {
	body := []byte{1, 2, 3, 4, 5}
	buf := Encode(Header{ID: MsgBSM, MsSinceMidnight: 123456}, body)
	assert.Len(t, buf, headerLen+len(body))

	h, got, err := Decode(buf)
	require.NoError(t, err)
	assert.Equal(t, MsgBSM, h.ID)
	assert.Equal(t, uint32(123456), h.MsSinceMidnight)
	assert.Equal(t, body, got)
}

func TestDecodeRejectsShortBuffer(t *testing.T) {
	_, _, err := Decode([]byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrShortHeader)
}

func TestDecodeRejectsBadMagic(t *testing.T) {
	buf := Encode(Header{ID: MsgSPAT}, nil)
	buf[0] = 'X'
	_, _, err := Decode(buf)
	assert.ErrorIs(t, err, ErrBadMagic)
}

func TestDecodeRejectsTruncatedBody(t *testing.T) {
	buf := Encode(Header{ID: MsgMAP}, []byte{1, 2, 3})
	_, _, err := Decode(buf[:headerLen+1])
	assert.Error(t, err)
}

func TestSavariHeaderRoundTrip(t *testing.T) {
	body := []byte("hello")
	buf := EncodeSavari(SavariHeader{Type: 7, IntersectionID: 1000, Seconds: 3600, Msecs: 250}, body)
	assert.Len(t, buf, savariHeaderLen+len(body))

	h, got, err := DecodeSavari(buf)
	require.NoError(t, err)
	assert.Equal(t, uint8(7), h.Type)
	assert.Equal(t, uint16(1000), h.IntersectionID)
	assert.Equal(t, uint32(3600), h.Seconds)
	assert.Equal(t, uint16(250), h.Msecs)
	assert.Equal(t, body, got)
}

func TestDispatcherShouldSendMAPPaces(t *testing.T) {
	d := NewDispatcher()
	t0 := time.Unix(1000, 0)
	assert.True(t, d.ShouldSendMAP(t0), "first call always sends")
	assert.False(t, d.ShouldSendMAP(t0.Add(500*time.Millisecond)), "within period")
	assert.True(t, d.ShouldSendMAP(t0.Add(1100*time.Millisecond)), "period elapsed")
}

func TestDispatcherShouldSendSPATOnRevisionChange(t *testing.T) {
	d := NewDispatcher()
	assert.True(t, d.ShouldSendSPAT(1), "first revision always sends")
	assert.False(t, d.ShouldSendSPAT(1), "same revision suppressed")
	assert.True(t, d.ShouldSendSPAT(2), "new revision sends")
}

func TestDispatcherShouldSendSSMSuppressedWhenEmpty(t *testing.T) {
	d := NewDispatcher()
	t0 := time.Unix(1000, 0)
	assert.False(t, d.ShouldSendSSM(t0, 0), "empty registry never sends")
	assert.True(t, d.ShouldSendSSM(t0, 1))
	assert.False(t, d.ShouldSendSSM(t0.Add(200*time.Millisecond), 1), "within period")
	assert.True(t, d.ShouldSendSSM(t0.Add(1200*time.Millisecond), 1))
}

func TestConnSendRecvRoundTrip(t *testing.T) {
	listener, err := NewListenConn("127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()

	dialer, err := NewDialConn(listener.udp.LocalAddr().String())
	require.NoError(t, err)
	defer dialer.Close()

	require.NoError(t, dialer.Send(MsgTraj, 42, []byte{9, 9}))

	h, body, err := listener.Recv()
	require.NoError(t, err)
	assert.Equal(t, MsgTraj, h.ID)
	assert.Equal(t, uint32(42), h.MsSinceMidnight)
	assert.Equal(t, []byte{9, 9}, body)
}
