// ABOUTME: Simple linear resampler for converting audio sample rates
// ABOUTME: Streams int16 chunks and interpolates across chunk boundaries
package resample

// Resampler performs linear interpolation to convert between sample rates
type Resampler struct {
	inputRate  int
	outputRate int
	channels   int
	ratio      float64
	position   float64 // in input frames; negative means between prev and input[0]
	prev       []int16 // last frame of the previous chunk
	havePrev   bool
}

// New creates a new resampler
func New(inputRate, outputRate, channels int) *Resampler {
	return &Resampler{
		inputRate:  inputRate,
		outputRate: outputRate,
		channels:   channels,
		ratio:      float64(inputRate) / float64(outputRate),
		prev:       make([]int16, channels),
	}
}

// Resample converts one chunk of interleaved input to the output rate.
// The last input frame is carried so consecutive chunks join without gaps.
func (r *Resampler) Resample(input []int16) []int16 {
	frames := len(input) / r.channels
	if frames == 0 {
		return nil
	}

	sample := func(frame, ch int) int16 {
		if frame < 0 {
			return r.prev[ch]
		}
		return input[frame*r.channels+ch]
	}

	output := make([]int16, 0, r.OutputSamplesNeeded(len(input))+r.channels)
	for r.position < float64(frames-1) {
		idx := int(r.position)
		if r.position < 0 {
			idx = -1
		}
		frac := r.position - float64(idx)

		for ch := 0; ch < r.channels; ch++ {
			s1 := float64(sample(idx, ch))
			s2 := float64(sample(idx+1, ch))
			output = append(output, int16(s1*(1.0-frac)+s2*frac))
		}

		r.position += r.ratio
	}

	// Rebase onto the next chunk, keeping the fractional offset
	r.position -= float64(frames)
	copy(r.prev, input[(frames-1)*r.channels:frames*r.channels])
	r.havePrev = true

	return output
}

// Reset resets the resampler state
func (r *Resampler) Reset() {
	r.position = 0.0
	r.havePrev = false
	for i := range r.prev {
		r.prev[i] = 0
	}
}

// Ratio returns input frames consumed per output frame
func (r *Resampler) Ratio() float64 {
	return r.ratio
}

// OutputSamplesNeeded calculates how many output samples will be produced from input samples
func (r *Resampler) OutputSamplesNeeded(inputSamples int) int {
	inputFrames := inputSamples / r.channels
	outputFrames := int(float64(inputFrames) / r.ratio)
	return outputFrames * r.channels
}

// InputSamplesNeeded calculates how many input samples are needed to produce output samples
func (r *Resampler) InputSamplesNeeded(outputSamples int) int {
	outputFrames := outputSamples / r.channels
	inputFrames := int(float64(outputFrames) * r.ratio)
	return inputFrames * r.channels
}
