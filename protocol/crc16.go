package protocol

// CRC16Init is the CRC16 seed
const CRC16Init = 0xFFFF

// CRC16Update folds one byte into crc
func CRC16Update(crc uint16, b byte) uint16 {
	b = b ^ uint8(crc&0xFF)
	b = b ^ (b << 4)
	b16 := uint16(b)
	return (b16<<8 | crc>>8) ^ (b16 >> 4) ^ (b16 << 3)
}

// CRC16 calculates the CCITT checksum carried by crc-framed lines.
// It is the same variant Klipper uses on its serial link.
func CRC16(data []byte) uint16 {
	crc := uint16(CRC16Init)
	for _, b := range data {
		crc = CRC16Update(crc, b)
	}
	return crc
}
