package tele

import (
	"context"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/juju/errors"

	"github.com/trackguard/trackguard/helpers"
	tele_config "github.com/trackguard/trackguard/tele/config"
	"github.com/trackguard/trackguard/log2"
)

const defaultTopicPrefix = "train/data/"

type transportMqtt struct {
	log  *log2.Log
	m    mqtt.Client
	mopt *mqtt.ClientOptions

	topicTelemetry string
	networkTimeout time.Duration
}

func (self *transportMqtt) Init(ctx context.Context, log *log2.Log, teleConfig tele_config.Config) error {
	self.log = log
	mqtt.ERROR = log
	mqtt.CRITICAL = log
	mqtt.WARN = log

	if teleConfig.MqttBroker == "" {
		return errors.Errorf("tele config mqtt_broker=empty")
	}
	if teleConfig.DeviceId == "" {
		return errors.Errorf("tele config device_id=empty")
	}
	clientId := teleConfig.DeviceId
	credFun := func() (string, string) {
		return clientId, teleConfig.MqttPassword
	}

	topicPrefix := teleConfig.TopicPrefix
	if topicPrefix == "" {
		topicPrefix = defaultTopicPrefix
	}
	self.topicTelemetry = topicPrefix + teleConfig.DeviceId
	keepAlive := helpers.IntSecondDefault(teleConfig.KeepaliveSec, 60*time.Second)
	self.networkTimeout = helpers.IntSecondDefault(teleConfig.NetworkTimeoutSec, defaultNetworkTimeout)

	self.mopt = mqtt.NewClientOptions().
		AddBroker(teleConfig.MqttBroker).
		SetClientID(clientId).
		SetCredentialsProvider(credFun).
		SetCleanSession(true).
		SetKeepAlive(keepAlive).
		SetPingTimeout(self.networkTimeout).
		SetOrderMatters(false).
		SetConnectRetry(true).
		SetConnectRetryInterval(keepAlive / 2).
		SetOnConnectHandler(self.onConnectHandler).
		SetConnectionLostHandler(self.connectLostHandler)
	self.m = mqtt.NewClient(self.mopt)
	token := self.m.Connect()
	if token.Error() != nil {
		self.log.Errorf("tele mqtt connect: %v", token.Error())
	}
	return nil
}

func (self *transportMqtt) Close() {
	self.m.Disconnect(uint(self.networkTimeout / time.Millisecond))
}

func (self *transportMqtt) IsConnected() bool {
	return self.m.IsConnectionOpen()
}

func (self *transportMqtt) SendTelemetry(payload []byte) bool {
	token := self.m.Publish(self.topicTelemetry, 1, false, payload)
	if !token.WaitTimeout(self.networkTimeout) {
		self.log.Errorf("tele mqtt publish timeout topic=%s", self.topicTelemetry)
		return false
	}
	if err := token.Error(); err != nil {
		self.log.Errorf("tele mqtt publish topic=%s err=%v", self.topicTelemetry, err)
		return false
	}
	return true
}

func (self *transportMqtt) connectLostHandler(c mqtt.Client, err error) {
	self.log.Infof("tele mqtt disconnect err=%v", err)
}

func (self *transportMqtt) onConnectHandler(c mqtt.Client) {
	self.log.Infof("tele mqtt connect broker=%s", self.mopt.Servers)
}
