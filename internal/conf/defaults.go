package conf

import (
	"time"

	"github.com/spf13/viper"
)

// setDefaultConfig registers the default value for every setting with viper.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	// Audio ingestion
	viper.SetDefault("audio.samplerate", 22050)
	viper.SetDefault("audio.clipduration", 5.0)
	viper.SetDefault("audio.clippath", "clips/")

	// Classification model
	viper.SetDefault("model.path", "models/echoguard.tflite")
	viper.SetDefault("model.threads", 0)
	viper.SetDefault("model.sandbox", false)

	// Alerts
	viper.SetDefault("alerts.enabled", true)
	viper.SetDefault("alerts.webhookurl", "")
	viper.SetDefault("alerts.timeout", 10*time.Second)

	// Realtime hub
	viper.SetDefault("realtime.keepaliveinterval", 30*time.Second)
	viper.SetDefault("realtime.sendbuffer", 32)

	// Persistence
	viper.SetDefault("output.sqlite.enabled", true)
	viper.SetDefault("output.sqlite.path", "echoguard.db")
	viper.SetDefault("output.mysql.enabled", false)
	viper.SetDefault("output.mysql.username", "echoguard")
	viper.SetDefault("output.mysql.password", "echoguard")
	viper.SetDefault("output.mysql.database", "echoguard")
	viper.SetDefault("output.mysql.host", "localhost")
	viper.SetDefault("output.mysql.port", "3306")

	// Web server
	viper.SetDefault("webserver.enabled", true)
	viper.SetDefault("webserver.port", "8080")
	viper.SetDefault("webserver.debug", false)
}
