package bytesio

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPackUnpackRoundTrip(t *testing.T) {
	assert.Equal(t, uint16(0xBEEF), UnpackUint16BE(PackUint16BE(0xBEEF)))
	assert.Equal(t, uint32(0x00BEEF42), UnpackUint24BE(PackUint24BE(0x00BEEF42)))
	assert.Equal(t, uint32(0xDEADBEEF), UnpackUint32BE(PackUint32BE(0xDEADBEEF)))
	assert.Equal(t, uint64(0x000000DEADBEEF), UnpackUint40BE(PackUint40BE(0x000000DEADBEEF)))
}

func TestPackMultiBytes(t *testing.T) {
	assert.Equal(t, []byte{0x01, 0x02, 0x03}, PackMultiBytes(0x010203, 3))
	assert.Equal(t, []byte{0x00, 0x00, 0x00, 0x2A}, PackMultiBytes(42, 4))
}

func TestByteStuffUnstuffRoundTrip(t *testing.T) {
	inputs := [][]byte{
		{0x00, 0x01, 0x02},
		{0x7E, 0x7D, 0x7E, 0x7D},
		bytes.Repeat([]byte{0x7E}, 10),
		{0xC0, 0x13, 0x7E, 0x33, 0x7D, 0x00},
	}
	for _, in := range inputs {
		stuffed := ByteStuff(in)
		for _, b := range stuffed {
			assert.False(t, b == 0x7E, "flag byte must not appear inside a stuffed span")
		}
		out, err := ByteUnstuff(stuffed)
		require.NoError(t, err)
		assert.Equal(t, in, out)
	}
}

func TestByteUnstuffMalformedTrailingEscape(t *testing.T) {
	_, err := ByteUnstuff([]byte{0x01, 0x7D})
	assert.ErrorIs(t, err, ErrMalformedFrame)
}

func TestFCS16KnownVector(t *testing.T) {
	// FCS16 over an empty payload is the untouched init value XORed once.
	fcs := FCS16(nil)
	assert.Equal(t, []byte{0x00, 0x00}, fcs)
}

func TestFCS16Deterministic(t *testing.T) {
	payload := []byte{0x7F, 0x13, 0xC0, 0x87, 0x01, 0x02, 0x03}
	a := FCS16(payload)
	b := FCS16(payload)
	assert.Equal(t, a, b)
	assert.Len(t, a, 2)
}
