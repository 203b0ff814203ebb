package audio

import "math"

// ulawTable maps each μ-law byte to its linear PCM sample. Twilio Media
// Streams deliver 8kHz G.711 μ-law, so the table covers the whole inbound
// alphabet.
var ulawTable [256]int16

func init() {
	for i := 0; i < 256; i++ {
		ulawTable[i] = decodeUlawSample(byte(i))
	}
}

func decodeUlawSample(b byte) int16 {
	b = ^b
	sign := int16(1)
	if b&0x80 != 0 {
		sign = -1
		b &= 0x7F
	}
	exponent := int16((b >> 4) & 0x07)
	mantissa := int16(b & 0x0F)
	sample := (mantissa<<3 + 0x84) << exponent
	sample -= 0x84
	return sign * sample
}

func decodeG711Ulaw(data []byte) []float32 {
	samples := make([]float32, len(data))
	for i, b := range data {
		samples[i] = float32(ulawTable[b]) / math.MaxInt16
	}
	return samples
}
