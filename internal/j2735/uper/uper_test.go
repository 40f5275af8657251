package uper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstrainedIntRoundTrip(t *testing.T) {
	w := NewWriter()
	require.NoError(t, w.AppendConstrainedInt(42, 0, 127))
	require.NoError(t, w.AppendConstrainedInt(-4096, -4096, 4095))
	r := NewReader(w.Bytes())
	v1, err := r.DecodeConstrainedInt(0, 127)
	require.NoError(t, err)
	assert.EqualValues(t, 42, v1)
	v2, err := r.DecodeConstrainedInt(-4096, 4095)
	require.NoError(t, err)
	assert.EqualValues(t, -4096, v2)
}

func TestEnumeratedAndBitmapRoundTrip(t *testing.T) {
	w := NewWriter()
	require.NoError(t, w.AppendEnumerated(5, 7))
	w.AppendOptionalBitmap([]bool{true, false, true})
	w.AppendExtensionBit()
	r := NewReader(w.Bytes())
	e, err := r.DecodeEnumerated(7)
	require.NoError(t, err)
	assert.Equal(t, 5, e)
	bm, err := r.DecodeOptionalBitmap(3)
	require.NoError(t, err)
	assert.Equal(t, []bool{true, false, true}, bm)
	ext, err := r.DecodeExtensionBit()
	require.NoError(t, err)
	assert.False(t, ext)
}

func TestOctetAndBitStringRoundTrip(t *testing.T) {
	w := NewWriter()
	w.AppendOctetString([]byte{0xDE, 0xAD, 0xBE, 0xEF})
	w.AppendBitString(0b10110, 5)
	r := NewReader(w.Bytes())
	oct, err := r.DecodeOctetString(4)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xDE, 0xAD, 0xBE, 0xEF}, oct)
	bits, err := r.DecodeBitString(5)
	require.NoError(t, err)
	assert.EqualValues(t, 0b10110, bits)
}

func TestLengthDeterminantRejectsOutOfRange(t *testing.T) {
	w := NewWriter()
	err := w.AppendLengthDeterminant(200)
	assert.Error(t, err)
}

func TestDecodeMissingMandatoryOnTruncatedBuffer(t *testing.T) {
	r := NewReader([]byte{0x01})
	_, err := r.DecodeOctetString(4)
	assert.Error(t, err)
}
