package audioconv

import "math"

func toMono16k(x []float32, channels, rate int) []float32 {
	if channels > 1 {
		x = Downmix(x, channels)
	}
	if rate <= 0 {
		rate = 44100
	}
	return Resample(x, rate, SampleRate)
}

// Downmix averages interleaved channels into one.
func Downmix(in []float32, channels int) []float32 {
	if channels <= 1 {
		return in
	}
	out := make([]float32, len(in)/channels)
	for i := range out {
		var sum float64
		for c := range channels {
			sum += float64(in[i*channels+c])
		}
		out[i] = float32(sum / float64(channels))
	}
	return out
}

// Resample converts between rates by linear interpolation.
func Resample(in []float32, from, to int) []float32 {
	if from == to || len(in) == 0 {
		return in
	}

	ratio := float64(to) / float64(from)
	out := make([]float32, int(math.Ceil(float64(len(in))*ratio)))
	last := len(in) - 1
	for i := range out {
		src := float64(i) / ratio
		i0 := int(src)
		if i0 >= last {
			out[i] = in[last]
			continue
		}
		a := float32(src - float64(i0))
		out[i] = in[i0]*(1-a) + in[i0+1]*a
	}
	return out
}

func intsToFloat(data []int, bitDepth int) []float32 {
	out := make([]float32, len(data))
	scale := 1.0 / float64(int64(1)<<(bitDepth-1))
	for i, v := range data {
		out[i] = float32(min(max(float64(v)*scale, -1), 1))
	}
	return out
}

func int16sToFloat(data []int16) []float32 {
	out := make([]float32, len(data))
	for i, v := range data {
		out[i] = float32(v) / 32768
	}
	return out
}

func floatToInts(data []float32) []int {
	out := make([]int, len(data))
	for i, v := range data {
		out[i] = int(min(max(v, -1), 1) * 32767)
	}
	return out
}
