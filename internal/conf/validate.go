package conf

import (
	"strings"

	"github.com/echoguard/echoguard-go/internal/errors"
)

// ValidateSettings checks the loaded settings for values the rest of the
// system cannot work with. It returns the first problem found.
func ValidateSettings(s *Settings) error {
	if s.Audio.SampleRate <= 0 {
		return errors.Newf("audio.samplerate must be positive, got %d", s.Audio.SampleRate).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}

	if s.Audio.ClipDuration <= 0 {
		return errors.Newf("audio.clipduration must be positive, got %f", s.Audio.ClipDuration).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}

	if !s.Model.Sandbox && s.Model.Path == "" {
		return errors.Newf("model.path is required unless model.sandbox is enabled").
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}

	if !s.Output.SQLite.Enabled && !s.Output.MySQL.Enabled {
		return errors.Newf("no database output enabled, enable output.sqlite or output.mysql").
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}

	if s.Alerts.WebhookURL != "" &&
		!strings.HasPrefix(s.Alerts.WebhookURL, "http://") &&
		!strings.HasPrefix(s.Alerts.WebhookURL, "https://") {
		return errors.Newf("alerts.webhookurl must be an http or https URL").
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}

	if s.Realtime.SendBuffer <= 0 {
		return errors.Newf("realtime.sendbuffer must be positive, got %d", s.Realtime.SendBuffer).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}

	return nil
}
