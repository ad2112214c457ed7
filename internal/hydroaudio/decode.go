package hydroaudio

import (
	"bytes"
	"encoding/binary"
	"io"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/tphakala/flac"

	"github.com/echoguard/echoguard-go/internal/errors"
)

// getAudioDivisor returns the scale factor for converting integer PCM
// samples of the given bit depth to float32 in [-1, 1].
func getAudioDivisor(bitDepth int) (float32, error) {
	switch bitDepth {
	case 16:
		return 32768.0, nil
	case 24:
		return 8388608.0, nil
	case 32:
		return 2147483648.0, nil
	default:
		return 0, errors.Newf("unsupported audio bit depth: %d", bitDepth).
			Component("hydroaudio").
			Category(errors.CategoryAudioDecode).
			Build()
	}
}

// DecodeWaveform decodes the clip identified by src into a mono float32
// waveform resampled to targetRate. Decode failures are returned as
// audio-decode errors and never produce a silent zero waveform.
func DecodeWaveform(src AudioSource, targetRate int) ([]float32, error) {
	if src.InMemory() {
		format, err := DetectFormat(src.Name(), src.Data())
		if err != nil {
			return nil, err
		}
		return decodeReader(bytes.NewReader(src.Data()), format, targetRate)
	}

	file, err := os.Open(src.Path())
	if err != nil {
		return nil, errors.New(err).
			Component("hydroaudio").
			Category(errors.CategoryFileIO).
			FileContext(src.Path(), 0).
			Build()
	}
	defer file.Close()

	header := make([]byte, 4)
	if _, err := io.ReadFull(file, header); err != nil {
		return nil, decodeError(err, src.Name())
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return nil, decodeError(err, src.Name())
	}

	format, err := DetectFormat(src.Name(), header)
	if err != nil {
		return nil, err
	}

	return decodeReader(file, format, targetRate)
}

func decodeReader(r io.ReadSeeker, format Format, targetRate int) ([]float32, error) {
	switch format {
	case FormatWAV:
		return decodeWAV(r, targetRate)
	case FormatFLAC:
		return decodeFLAC(r, targetRate)
	default:
		return nil, errors.Newf("no decoder for format %q", format).
			Component("hydroaudio").
			Category(errors.CategoryUnsupportedFormat).
			Build()
	}
}

func decodeError(err error, name string) error {
	return errors.New(err).
		Component("hydroaudio").
		Category(errors.CategoryAudioDecode).
		FileContext(name, 0).
		Build()
}

func decodeWAV(r io.ReadSeeker, targetRate int) ([]float32, error) {
	decoder := wav.NewDecoder(r)
	decoder.ReadInfo()
	if !decoder.IsValidFile() {
		return nil, errors.Newf("input is not a valid WAV audio file").
			Component("hydroaudio").
			Category(errors.CategoryAudioDecode).
			Build()
	}

	numChans := int(decoder.NumChans)
	if numChans != 1 && numChans != 2 {
		return nil, errors.Newf("unsupported number of channels: %d", numChans).
			Component("hydroaudio").
			Category(errors.CategoryAudioDecode).
			Build()
	}

	divisor, err := getAudioDivisor(int(decoder.BitDepth))
	if err != nil {
		return nil, err
	}

	sourceRate := int(decoder.SampleRate)

	var waveform []float32
	buf := &audio.IntBuffer{
		Data:   make([]int, 65536),
		Format: &audio.Format{SampleRate: sourceRate, NumChannels: numChans},
	}

	for {
		n, err := decoder.PCMBuffer(buf)
		if err != nil {
			return nil, decodeError(err, "")
		}
		if n == 0 {
			break
		}

		// Downmix interleaved channels to mono by averaging.
		for i := 0; i+numChans <= n; i += numChans {
			var sum float32
			for c := range numChans {
				sum += float32(buf.Data[i+c]) / divisor
			}
			waveform = append(waveform, sum/float32(numChans))
		}
	}

	return ResampleAudio(waveform, sourceRate, targetRate), nil
}

func decodeFLAC(r io.Reader, targetRate int) ([]float32, error) {
	decoder, err := flac.NewDecoder(r)
	if err != nil {
		return nil, decodeError(err, "")
	}

	divisor, err := getAudioDivisor(decoder.BitsPerSample)
	if err != nil {
		return nil, err
	}

	bytesPerSample := decoder.BitsPerSample / 8
	stride := bytesPerSample * decoder.NChannels

	var waveform []float32
	for {
		frame, err := decoder.Next()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, decodeError(err, "")
		}

		for i := 0; i+stride <= len(frame); i += stride {
			var sum float32
			for c := range decoder.NChannels {
				offset := i + c*bytesPerSample
				var sample int32
				switch decoder.BitsPerSample {
				case 16:
					sample = int32(int16(binary.LittleEndian.Uint16(frame[offset:])))
				case 24:
					sample = int32(frame[offset]) | int32(frame[offset+1])<<8 | int32(frame[offset+2])<<16
				case 32:
					sample = int32(binary.LittleEndian.Uint32(frame[offset:]))
				}
				sum += float32(sample) / divisor
			}
			waveform = append(waveform, sum/float32(decoder.NChannels))
		}
	}

	return ResampleAudio(waveform, decoder.SampleRate, targetRate), nil
}
