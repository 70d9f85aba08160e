package modbus

import "encoding/binary"

// Quantity limits from the Modbus application protocol.
const (
	maxReadQuantity  = 125
	maxWriteQuantity = 123
)

// wordsToBytes encodes register words big-endian.
func wordsToBytes(words []uint16) []byte {
	out := make([]byte, 2*len(words))
	for i, w := range words {
		binary.BigEndian.PutUint16(out[2*i:], w)
	}
	return out
}

// bytesToWords decodes big-endian register words.
func bytesToWords(b []byte) []uint16 {
	out := make([]uint16, len(b)/2)
	for i := range out {
		out[i] = binary.BigEndian.Uint16(b[2*i:])
	}
	return out
}
