// Package hydroaudio decodes hydrophone audio clips and transforms them
// into the fixed-length feature vectors consumed by the classifier.
package hydroaudio

import (
	"bytes"
	"path/filepath"
	"strings"

	"github.com/echoguard/echoguard-go/internal/errors"
)

// Format identifies a supported audio container.
type Format string

const (
	FormatWAV     Format = "wav"
	FormatFLAC    Format = "flac"
	FormatUnknown Format = ""
)

// AudioSource identifies one audio clip either by file reference or as an
// in-memory buffer. Exactly one of path or data is set; the variant is
// resolved once at construction, never by duck typing downstream.
type AudioSource struct {
	path string
	data []byte
	name string // original file name, used for format detection
}

// FileSource creates an AudioSource referring to a file on disk.
func FileSource(path string) AudioSource {
	return AudioSource{path: path, name: filepath.Base(path)}
}

// BytesSource creates an AudioSource from an in-memory buffer. name is the
// original upload file name and is used only for format detection.
func BytesSource(name string, data []byte) AudioSource {
	return AudioSource{name: name, data: data}
}

// Name returns the original file name of the source.
func (s AudioSource) Name() string { return s.name }

// Path returns the file path for file-backed sources, empty otherwise.
func (s AudioSource) Path() string { return s.path }

// InMemory reports whether the source holds its clip bytes directly.
func (s AudioSource) InMemory() bool { return s.path == "" }

// Data returns the raw clip bytes for in-memory sources, nil otherwise.
func (s AudioSource) Data() []byte { return s.data }

var (
	riffMagic = []byte("RIFF")
	flacMagic = []byte("fLaC")
)

// DetectFormat determines the container format from the file extension and,
// when header bytes are available, the magic number. It returns an
// unsupported-format error for anything the pipeline cannot decode; no
// partial processing is attempted on such input.
func DetectFormat(name string, header []byte) (Format, error) {
	ext := strings.ToLower(filepath.Ext(name))

	var want Format
	switch ext {
	case ".wav":
		want = FormatWAV
	case ".flac":
		want = FormatFLAC
	default:
		return FormatUnknown, errors.Newf("unsupported audio format: %q", ext).
			Component("hydroaudio").
			Category(errors.CategoryUnsupportedFormat).
			FileContext(name, 0).
			Build()
	}

	if len(header) >= 4 {
		switch want {
		case FormatWAV:
			if !bytes.HasPrefix(header, riffMagic) {
				return FormatUnknown, formatMismatchError(name, "RIFF")
			}
		case FormatFLAC:
			if !bytes.HasPrefix(header, flacMagic) {
				return FormatUnknown, formatMismatchError(name, "fLaC")
			}
		}
	}

	return want, nil
}

func formatMismatchError(name, magic string) error {
	return errors.Newf("file %q does not start with %s magic", name, magic).
		Component("hydroaudio").
		Category(errors.CategoryUnsupportedFormat).
		FileContext(name, 0).
		Build()
}
