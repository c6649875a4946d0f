package mixer

const fullScale = 32767

// quantize clips each accumulated sample to [-1, 1] and scales it to S16.
// The conversion truncates toward zero, so 1.0 maps to 32767 and -1.0 to
// -32767.
func quantize(dst []int16, src []float32) {
	for i, s := range src {
		s = min(max(s, -1), 1)
		dst[i] = int16(fullScale * s)
	}
}
