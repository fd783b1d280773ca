package png2exr

import "math"

func srgbInvOetf(v float32) float32 {
	if v <= 0.04045 {
		return v / 12.92
	}
	return float32(math.Pow(float64((v+0.055)/1.055), 2.4))
}

// sampleTable maps every 8-bit sample to its float value.
func sampleTable(t Transfer) *[256]float32 {
	var lut [256]float32
	for i := range lut {
		v := float32(float64(i) / maxSample)
		if t == TransferSRGB {
			v = srgbInvOetf(v)
		}
		lut[i] = v
	}
	return &lut
}
