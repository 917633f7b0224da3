package audio

// EncodePCM16 serializes samples as little-endian PCM16 bytes, the wire
// layout for outbound media chunks.
func EncodePCM16(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		out[i*2] = byte(s)
		out[i*2+1] = byte(s >> 8)
	}
	return out
}

// DecodePCM16 parses little-endian PCM16 bytes into samples. A trailing
// odd byte is ignored.
func DecodePCM16(data []byte) []int16 {
	n := len(data) / 2
	out := make([]int16, n)
	for i := 0; i < n; i++ {
		out[i] = int16(data[i*2]) | int16(data[i*2+1])<<8
	}
	return out
}
