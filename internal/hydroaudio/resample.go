package hydroaudio

// ResampleAudio converts audio from originalRate to targetRate using cubic
// interpolation. Returns the input unchanged when the rates already match.
func ResampleAudio(audio []float32, originalRate, targetRate int) []float32 {
	if originalRate == targetRate || len(audio) == 0 {
		return audio
	}

	ratio := float64(targetRate) / float64(originalRate)
	newLength := int(float64(len(audio)) * ratio)
	resampled := make([]float32, newLength)

	if len(audio) < 4 {
		// Too short for cubic interpolation, fall back to nearest sample.
		for i := range newLength {
			idx := int(float64(i) / ratio)
			if idx >= len(audio) {
				idx = len(audio) - 1
			}
			resampled[i] = audio[idx]
		}
		return resampled
	}

	lastIndex := len(audio) - 3

	for i := range newLength {
		origPos := float64(i) / ratio
		index := int(origPos)

		// Clamp index to avoid out-of-bounds access
		if index < 1 {
			index = 1
		} else if index > lastIndex {
			index = lastIndex
		}

		frac := float32(origPos) - float32(index)

		// Inline cubic interpolation to avoid extra function calls
		y0, y1, y2, y3 := audio[index-1], audio[index], audio[index+1], audio[index+2]
		mu2 := frac * frac
		a0 := -0.5*y0 + 1.5*y1 - 1.5*y2 + 0.5*y3
		a1 := y0 - 2.5*y1 + 2*y2 - 0.5*y3
		a2 := -0.5*y0 + 0.5*y2
		a3 := y1

		resampled[i] = a0*frac*mu2 + a1*mu2 + a2*frac + a3
	}

	return resampled
}
