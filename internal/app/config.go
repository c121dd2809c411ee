package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/aminovpavel/aprs-mqtt/internal/aprsis"
	"github.com/aminovpavel/aprs-mqtt/internal/config"
	"github.com/aminovpavel/aprs-mqtt/internal/geo"
	"github.com/aminovpavel/aprs-mqtt/internal/mqtt"
	"github.com/aminovpavel/aprs-mqtt/internal/pipeline"
	"github.com/aminovpavel/aprs-mqtt/internal/topic"
)

// Version is reported in the APRS-IS login line.
var Version = "1.0"

// ClientID returns the broker client id, <subtopic>_<pid>.
func ClientID(subtopic string, pid int) string {
	return fmt.Sprintf("%s_%d", strings.Trim(strings.TrimSpace(subtopic), "/"), pid)
}

// BuildMQTTConfig translates the application configuration into a session config.
func BuildMQTTConfig(cfg *config.App, builder topic.Builder, pid int) mqtt.Config {
	if cfg == nil {
		return mqtt.Config{}
	}

	return mqtt.Config{
		BrokerHost:             strings.TrimSpace(cfg.MQTTHost),
		BrokerPort:             cfg.MQTTPort,
		TLS:                    cfg.MQTTTLS,
		Username:               strings.TrimSpace(cfg.MQTTUsername),
		Password:               cfg.MQTTPassword,
		ClientID:               ClientID(cfg.MQTTSubtopic, pid),
		PresenceTopic:          builder.Presence(),
		ConnectRetryDelay:      seconds(cfg.MQTTConnectRetrySeconds),
		ServerUnavailableDelay: seconds(cfg.MQTTUnavailableRetrySeconds),
		ReconnectDelay:         seconds(cfg.MQTTReconnectSeconds),
	}
}

// BuildFeedConfig translates the application configuration into an APRS-IS
// login. The filter is applied by the pipeline after login.
func BuildFeedConfig(cfg *config.App) aprsis.Config {
	if cfg == nil {
		return aprsis.Config{}
	}

	return aprsis.Config{
		Host:     strings.TrimSpace(cfg.APRSHost),
		Port:     cfg.APRSPort,
		Callsign: strings.ToUpper(strings.TrimSpace(cfg.APRSCallsign)),
		Passcode: strings.TrimSpace(cfg.APRSPassword),
		Software: "aprs-mqtt",
		Version:  Version,
	}
}

// BuildPipelineConfig returns the feed loop settings.
func BuildPipelineConfig(cfg *config.App) pipeline.Config {
	if cfg == nil {
		return pipeline.Config{}
	}
	return pipeline.Config{
		Filter:         strings.TrimSpace(cfg.APRSFilter),
		ReconnectDelay: seconds(cfg.APRSReconnectSeconds),
	}
}

// BuildReference returns the configured reference position, nil when unset.
func BuildReference(cfg *config.App) *geo.Reference {
	if cfg == nil {
		return nil
	}
	return geo.NewReference(cfg.APRSLatitude, cfg.APRSLongitude, cfg.MetricUnits)
}

func seconds(n int) time.Duration {
	if n <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second
}
