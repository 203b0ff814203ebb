package audio

import "fmt"

// Codec tags the encoding of an opaque audio payload.
type Codec string

const (
	CodecPCM16    Codec = "pcm16"
	CodecG711Ulaw Codec = "g711_ulaw"
)

// Decode converts encoded audio bytes to float32 samples normalized to [-1, 1].
// Used for level metering only; the gateway never transcodes the media path.
func Decode(data []byte, codec Codec) ([]float32, error) {
	switch codec {
	case CodecG711Ulaw:
		return decodeG711Ulaw(data), nil
	case CodecPCM16:
		return decodePCM16(data), nil
	default:
		return nil, fmt.Errorf("unsupported codec: %s", codec)
	}
}

func decodePCM16(data []byte) []float32 {
	samples := make([]float32, len(data)/2)
	for i := range samples {
		s := int16(data[2*i]) | int16(data[2*i+1])<<8
		samples[i] = float32(s) / 32768.0
	}
	return samples
}
