package hydroaudio

// Spectral analysis primitives for feature extraction: short-time Fourier
// transform, mel filterbank, discrete cosine transform and the per-frame
// scalar descriptors (centroid, roll-off, zero crossing rate).

import (
	"math"
)

const (
	fftSize   = 2048 // analysis window length in samples
	hopLength = 512  // samples between consecutive frames

	// powerFloor avoids log of zero when converting power to decibels.
	powerFloor = 1e-10
	// topDB clamps the dynamic range of log-power spectrograms.
	topDB = 80.0
)

// fft computes the discrete Fourier transform of input using the radix-2
// Cooley-Tukey algorithm. The input length must be a power of two.
func fft(input []float64) []complex128 {
	buf := make([]complex128, len(input))
	for i, v := range input {
		buf[i] = complex(v, 0)
	}
	return recursiveFFT(buf)
}

func recursiveFFT(buf []complex128) []complex128 {
	n := len(buf)
	if n <= 1 {
		return buf
	}

	even := make([]complex128, n/2)
	odd := make([]complex128, n/2)
	for i := range n / 2 {
		even[i] = buf[2*i]
		odd[i] = buf[2*i+1]
	}

	even = recursiveFFT(even)
	odd = recursiveFFT(odd)

	out := make([]complex128, n)
	for k := range n / 2 {
		angle := -2 * math.Pi * float64(k) / float64(n)
		t := complex(math.Cos(angle), math.Sin(angle)) * odd[k]
		out[k] = even[k] + t
		out[k+n/2] = even[k] - t
	}

	return out
}

// hannWindow applies a Hann window in place to reduce spectral leakage.
func hannWindow(frame []float64) {
	n := len(frame)
	if n <= 1 {
		return
	}
	for i := range frame {
		frame[i] *= 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n-1)))
	}
}

// powerSpectrogram slices the waveform into overlapping windowed frames and
// returns the one-sided power spectrum of each frame. The result has
// numFrames rows of fftSize/2+1 bins each.
func powerSpectrogram(waveform []float32) [][]float64 {
	numFrames := 1 + (len(waveform)-fftSize)/hopLength
	if len(waveform) < fftSize {
		numFrames = 1
	}

	bins := fftSize/2 + 1
	frames := make([][]float64, numFrames)

	for f := range numFrames {
		start := f * hopLength
		window := make([]float64, fftSize)
		for i := range fftSize {
			if start+i < len(waveform) {
				window[i] = float64(waveform[start+i])
			}
		}
		hannWindow(window)

		spectrum := fft(window)
		power := make([]float64, bins)
		for b := range bins {
			re := real(spectrum[b])
			im := imag(spectrum[b])
			power[b] = re*re + im*im
		}
		frames[f] = power
	}

	return frames
}

// hzToMel converts a frequency in Hz to the mel scale.
func hzToMel(hz float64) float64 {
	return 2595.0 * math.Log10(1.0+hz/700.0)
}

// melToHz converts a mel-scale value back to Hz.
func melToHz(mel float64) float64 {
	return 700.0 * (math.Pow(10, mel/2595.0) - 1.0)
}

// melFilterbank builds numMels triangular filters spanning 0 Hz to the
// Nyquist frequency, each row covering fftSize/2+1 power spectrum bins.
func melFilterbank(numMels, sampleRate int) [][]float64 {
	bins := fftSize/2 + 1
	nyquist := float64(sampleRate) / 2.0

	melPoints := make([]float64, numMels+2)
	maxMel := hzToMel(nyquist)
	for i := range melPoints {
		melPoints[i] = melToHz(maxMel * float64(i) / float64(numMels+1))
	}

	binFreqs := make([]float64, bins)
	for b := range bins {
		binFreqs[b] = float64(b) * float64(sampleRate) / float64(fftSize)
	}

	filters := make([][]float64, numMels)
	for m := range numMels {
		lower, center, upper := melPoints[m], melPoints[m+1], melPoints[m+2]
		row := make([]float64, bins)
		for b := range bins {
			f := binFreqs[b]
			switch {
			case f > lower && f < center:
				row[b] = (f - lower) / (center - lower)
			case f >= center && f < upper:
				row[b] = (upper - f) / (upper - center)
			}
		}
		filters[m] = row
	}

	return filters
}

// applyFilterbank projects power spectrum frames onto the mel filters,
// producing a [numMels][numFrames] matrix.
func applyFilterbank(filters [][]float64, frames [][]float64) [][]float64 {
	mel := make([][]float64, len(filters))
	for m, filter := range filters {
		row := make([]float64, len(frames))
		for f, frame := range frames {
			var sum float64
			for b, w := range filter {
				if w != 0 {
					sum += w * frame[b]
				}
			}
			row[f] = sum
		}
		mel[m] = row
	}
	return mel
}

// powerToDB converts a power matrix to decibels relative to its maximum,
// clamped to a topDB dynamic range.
func powerToDB(matrix [][]float64) [][]float64 {
	ref := powerFloor
	for _, row := range matrix {
		for _, v := range row {
			if v > ref {
				ref = v
			}
		}
	}

	out := make([][]float64, len(matrix))
	floor := 10*math.Log10(ref) - topDB
	for i, row := range matrix {
		dbRow := make([]float64, len(row))
		for j, v := range row {
			db := 10 * math.Log10(math.Max(v, powerFloor))
			if db < floor {
				db = floor
			}
			dbRow[j] = db - 10*math.Log10(ref)
		}
		out[i] = dbRow
	}
	return out
}

// dctII computes the orthonormal DCT-II of input, keeping numCoeffs terms.
// Used to decorrelate log-mel energies into cepstral coefficients.
func dctII(input []float64, numCoeffs int) []float64 {
	n := len(input)
	out := make([]float64, numCoeffs)
	if n == 0 {
		return out
	}

	scale0 := math.Sqrt(1.0 / float64(n))
	scale := math.Sqrt(2.0 / float64(n))

	for k := range numCoeffs {
		var sum float64
		for i := range n {
			sum += input[i] * math.Cos(math.Pi*float64(k)*(2*float64(i)+1)/(2*float64(n)))
		}
		if k == 0 {
			out[k] = sum * scale0
		} else {
			out[k] = sum * scale
		}
	}

	return out
}

// spectralCentroids returns the power-weighted mean frequency of each frame.
func spectralCentroids(frames [][]float64, sampleRate int) []float64 {
	out := make([]float64, len(frames))
	for f, frame := range frames {
		var weighted, total float64
		for b, p := range frame {
			freq := float64(b) * float64(sampleRate) / float64(fftSize)
			weighted += freq * p
			total += p
		}
		if total > 0 {
			out[f] = weighted / total
		}
	}
	return out
}

// spectralRolloffs returns, per frame, the frequency below which the given
// fraction of spectral energy is contained.
func spectralRolloffs(frames [][]float64, sampleRate int, fraction float64) []float64 {
	out := make([]float64, len(frames))
	for f, frame := range frames {
		var total float64
		for _, p := range frame {
			total += p
		}
		if total == 0 {
			continue
		}

		threshold := total * fraction
		var cumulative float64
		for b, p := range frame {
			cumulative += p
			if cumulative >= threshold {
				out[f] = float64(b) * float64(sampleRate) / float64(fftSize)
				break
			}
		}
	}
	return out
}

// zeroCrossingRates returns the fraction of sign changes in each analysis
// frame of the time-domain waveform.
func zeroCrossingRates(waveform []float32, numFrames int) []float64 {
	out := make([]float64, numFrames)
	for f := range numFrames {
		start := f * hopLength
		end := start + fftSize
		if end > len(waveform) {
			end = len(waveform)
		}
		if end-start <= 1 {
			continue
		}

		var crossings int
		for i := start + 1; i < end; i++ {
			if (waveform[i-1] >= 0) != (waveform[i] >= 0) {
				crossings++
			}
		}
		out[f] = float64(crossings) / float64(end-start-1)
	}
	return out
}
