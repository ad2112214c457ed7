package errors

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorBuilder_CategoryAndComponent(t *testing.T) {
	t.Parallel()

	err := Newf("decode failed: %s", "truncated header").
		Component("hydroaudio").
		Category(CategoryAudioDecode).
		Context("file_extension", "wav").
		Build()

	require.Error(t, err)
	assert.Equal(t, "decode failed: truncated header", err.Error())
	assert.Equal(t, "hydroaudio", err.GetComponent())
	assert.Equal(t, CategoryAudioDecode, err.Category)
	assert.Equal(t, "wav", err.GetContext()["file_extension"])
	assert.WithinDuration(t, time.Now(), err.GetTimestamp(), time.Minute)
}

func TestIsCategory(t *testing.T) {
	t.Parallel()

	inner := Newf("model file missing").Category(CategoryModelUnavailable).Build()
	wrapped := New(inner).Component("classifier").Build()

	assert.True(t, IsCategory(wrapped, CategoryModelUnavailable))
	assert.False(t, IsCategory(wrapped, CategoryAudioDecode))
}

func TestEnhancedError_IsMatchesByCategory(t *testing.T) {
	t.Parallel()

	a := Newf("a").Category(CategoryUnsupportedFormat).Build()
	b := Newf("b").Category(CategoryUnsupportedFormat).Build()

	assert.True(t, Is(a, b))
}

func TestDetectCategory_PropagatesFromChain(t *testing.T) {
	t.Parallel()

	inner := Newf("no rows").Category(CategoryNotFound).Build()
	outer := New(inner).Build()

	assert.Equal(t, CategoryNotFound, outer.Category)
	assert.True(t, IsNotFound(outer))
}

func TestGetContext_ReturnsCopy(t *testing.T) {
	t.Parallel()

	err := Newf("x").Context("k", "v").Build()
	ctx := err.GetContext()
	ctx["k"] = "mutated"

	assert.Equal(t, "v", err.GetContext()["k"])
}
