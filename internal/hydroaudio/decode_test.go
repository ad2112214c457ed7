package hydroaudio

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/echoguard/echoguard-go/internal/errors"
)

// writeTestWAV writes a mono 16-bit WAV file and returns its path.
func writeTestWAV(t *testing.T, sampleRate, samples int) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "clip.wav")
	file, err := os.Create(path)
	require.NoError(t, err)
	defer file.Close()

	encoder := wav.NewEncoder(file, sampleRate, 16, 1, 1)
	buf := &audio.IntBuffer{
		Data:   make([]int, samples),
		Format: &audio.Format{SampleRate: sampleRate, NumChannels: 1},
	}
	for i := range buf.Data {
		buf.Data[i] = int(int16((i % 128) * 256))
	}
	require.NoError(t, encoder.Write(buf))
	require.NoError(t, encoder.Close())

	return path
}

func TestDetectFormat(t *testing.T) {
	t.Parallel()

	t.Run("wav by extension and magic", func(t *testing.T) {
		t.Parallel()
		format, err := DetectFormat("clip.wav", []byte("RIFFxxxx"))
		require.NoError(t, err)
		assert.Equal(t, FormatWAV, format)
	})

	t.Run("flac by extension and magic", func(t *testing.T) {
		t.Parallel()
		format, err := DetectFormat("clip.flac", []byte("fLaCxxxx"))
		require.NoError(t, err)
		assert.Equal(t, FormatFLAC, format)
	})

	t.Run("unsupported extension is rejected before processing", func(t *testing.T) {
		t.Parallel()
		_, err := DetectFormat("clip.mp3", nil)
		require.Error(t, err)
		assert.True(t, errors.IsCategory(err, errors.CategoryUnsupportedFormat))
	})

	t.Run("magic mismatch is rejected", func(t *testing.T) {
		t.Parallel()
		_, err := DetectFormat("clip.wav", []byte("fLaCxxxx"))
		require.Error(t, err)
		assert.True(t, errors.IsCategory(err, errors.CategoryUnsupportedFormat))
	})
}

func TestDecodeWaveform_FromFile(t *testing.T) {
	t.Parallel()

	path := writeTestWAV(t, 22050, 22050)

	waveform, err := DecodeWaveform(FileSource(path), 22050)
	require.NoError(t, err)
	assert.Len(t, waveform, 22050)
}

func TestDecodeWaveform_ResamplesToTargetRate(t *testing.T) {
	t.Parallel()

	path := writeTestWAV(t, 44100, 44100)

	waveform, err := DecodeWaveform(FileSource(path), 22050)
	require.NoError(t, err)
	assert.Len(t, waveform, 22050)
}

func TestDecodeWaveform_FromBytes(t *testing.T) {
	t.Parallel()

	path := writeTestWAV(t, 22050, 2205)
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	waveform, err := DecodeWaveform(BytesSource("clip.wav", data), 22050)
	require.NoError(t, err)
	assert.Len(t, waveform, 2205)
}

func TestDecodeWaveform_GarbageBytesFail(t *testing.T) {
	t.Parallel()

	// Valid magic but truncated garbage after it: decode must fail loudly,
	// never fall back to a silent zero waveform.
	data := append([]byte("RIFF"), []byte("not really a wav file")...)

	_, err := DecodeWaveform(BytesSource("clip.wav", data), 22050)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryAudioDecode))
}

func TestAudioSourceVariants(t *testing.T) {
	t.Parallel()

	file := FileSource("/data/clips/a.wav")
	assert.False(t, file.InMemory())
	assert.Equal(t, "a.wav", file.Name())

	mem := BytesSource("b.flac", []byte{1, 2, 3})
	assert.True(t, mem.InMemory())
	assert.Equal(t, []byte{1, 2, 3}, mem.Data())
}
