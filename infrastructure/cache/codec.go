package cache

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/yksoni-monk/poke/domain/embedding"
)

// EncodeVector serializes v as little-endian float32s.
func EncodeVector(v embedding.Vector) []byte {
	buf := make([]byte, 0, len(v)*4)
	for _, x := range v {
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(x))
	}
	return buf
}

// DecodeVector parses little-endian float32s.
func DecodeVector(data []byte) (embedding.Vector, error) {
	if len(data) == 0 || len(data)%4 != 0 {
		return nil, fmt.Errorf("vector payload of %d bytes", len(data))
	}
	v := make(embedding.Vector, len(data)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return v, nil
}
