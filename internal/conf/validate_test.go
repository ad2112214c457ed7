package conf

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/echoguard/echoguard-go/internal/errors"
)

func validSettings() *Settings {
	return &Settings{
		Audio: AudioSettings{
			SampleRate:   22050,
			ClipDuration: 5.0,
			ClipPath:     "clips/",
		},
		Model: ModelSettings{Path: "models/echoguard.tflite"},
		Alerts: AlertSettings{
			Enabled: true,
			Timeout: 10 * time.Second,
		},
		Realtime: RealtimeSettings{
			KeepaliveInterval: 30 * time.Second,
			SendBuffer:        32,
		},
		Output: OutputSettings{
			SQLite: SQLiteSettings{Enabled: true, Path: "echoguard.db"},
		},
	}
}

func TestValidateSettings_Valid(t *testing.T) {
	t.Parallel()

	require.NoError(t, ValidateSettings(validSettings()))
}

func TestValidateSettings_RequiresModelPath(t *testing.T) {
	t.Parallel()

	s := validSettings()
	s.Model.Path = ""

	err := ValidateSettings(s)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))

	// Sandbox mode explicitly opts out of requiring a model file.
	s.Model.Sandbox = true
	require.NoError(t, ValidateSettings(s))
}

func TestValidateSettings_RequiresDatabaseOutput(t *testing.T) {
	t.Parallel()

	s := validSettings()
	s.Output.SQLite.Enabled = false

	err := ValidateSettings(s)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}

func TestValidateSettings_RejectsBadWebhookURL(t *testing.T) {
	t.Parallel()

	s := validSettings()
	s.Alerts.WebhookURL = "ftp://example.com/hook"

	err := ValidateSettings(s)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}
