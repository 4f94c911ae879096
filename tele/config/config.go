package tele_config

type Config struct { //nolint:maligned
	Enabled           bool   `hcl:"enable"`
	DeviceId          string `hcl:"device_id"`
	LogDebug          bool   `hcl:"log_debug"`
	KeepaliveSec      int    `hcl:"keepalive_sec"`
	MqttBroker        string `hcl:"mqtt_broker"`
	MqttPassword      string `hcl:"mqtt_password"`
	NetworkTimeoutSec int    `hcl:"network_timeout_sec"`
	TopicPrefix       string `hcl:"topic_prefix"`
}
