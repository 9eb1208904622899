package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCRC16(t *testing.T) {
	testCases := []struct {
		data     []byte
		expected uint16
	}{
		{data: []byte{}, expected: 0xFFFF},
		// CRC-16/MCRF4XX check value
		{data: []byte("123456789"), expected: 0x6F91},
	}

	for i, tc := range testCases {
		result := CRC16(tc.data)
		assert.Equalf(t, tc.expected, result, "test case %d: CRC16(%v)", i, tc.data)
	}
}

func TestCRC16Consistency(t *testing.T) {
	data := []byte{0x01, 0x02, 0x03, 0x04, 0x05}

	crc1 := CRC16(data)
	crc2 := CRC16(data)

	if crc1 != crc2 {
		t.Errorf("CRC16 not consistent: first=%04X, second=%04X", crc1, crc2)
	}
}

func TestCRC16Different(t *testing.T) {
	data1 := []byte{0x01, 0x02, 0x03}
	data2 := []byte{0x01, 0x02, 0x04}

	if CRC16(data1) == CRC16(data2) {
		t.Errorf("CRC16 collision: both inputs produced %04X", CRC16(data1))
	}
}

func TestCRC16UpdateMatchesSlice(t *testing.T) {
	data := []byte{0x42, 0x01, 0x23, 0x04, 0x56}

	crc := uint16(CRC16Init)
	for _, b := range data {
		crc = CRC16Update(crc, b)
	}
	assert.Equal(t, CRC16(data), crc)
}
