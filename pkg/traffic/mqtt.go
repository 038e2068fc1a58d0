package traffic

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Highlander2003/EcoFlow/pkg/config"
	"github.com/Highlander2003/EcoFlow/pkg/metrics"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

const (
	sourceMQTT = "mqtt"

	connectTimeout       = 10 * time.Second
	connectRetryInterval = 5 * time.Second
	disconnectWait       = 250 // ms
)

// MQTTSubscriber feeds sensor readings published on the broker into an Ingester.
type MQTTSubscriber struct {
	cfg    config.MQTTConfig
	sink   Ingester
	logger *zap.Logger
}

func NewMQTTSubscriber(cfg config.MQTTConfig, sink Ingester, logger *zap.Logger) *MQTTSubscriber {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MQTTSubscriber{cfg: cfg, sink: sink, logger: logger}
}

func (m *MQTTSubscriber) clientOptions() *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions().
		AddBroker(m.cfg.Broker).
		SetClientID(m.cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(connectRetryInterval).
		SetConnectTimeout(connectTimeout)
	if m.cfg.Username != "" {
		opts.SetUsername(m.cfg.Username)
		opts.SetPassword(m.cfg.Password)
	}

	// subscriptions are not restored by the client after a reconnect
	opts.SetOnConnectHandler(func(c mqtt.Client) {
		token := c.Subscribe(m.cfg.Topic, m.cfg.QoS, m.onMessage)
		if token.WaitTimeout(connectTimeout) && token.Error() != nil {
			m.logger.Error("mqtt subscribe failed", zap.String("topic", m.cfg.Topic), zap.Error(token.Error()))
			return
		}
		m.logger.Info("mqtt subscribed", zap.String("topic", m.cfg.Topic), zap.Uint8("qos", m.cfg.QoS))
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		m.logger.Warn("mqtt connection lost", zap.Error(err))
	})
	return opts
}

// Run connects to the broker and blocks until ctx is done. an unreachable broker is retried in the
// background and never returns an error, so the rest of the engine keeps serving.
func (m *MQTTSubscriber) Run(ctx context.Context) error {
	client := mqtt.NewClient(m.clientOptions())
	token := client.Connect()

	slow := time.NewTimer(connectTimeout)
	defer slow.Stop()
	for connected := false; !connected; {
		select {
		case <-ctx.Done():
			client.Disconnect(disconnectWait)
			m.logger.Info("mqtt stopped before connecting", zap.String("broker", m.cfg.Broker))
			return nil
		case <-slow.C:
			m.logger.Warn("mqtt broker unreachable, retrying", zap.String("broker", m.cfg.Broker),
				zap.Duration("retry_interval", connectRetryInterval))
		case <-token.Done():
			if err := token.Error(); err != nil {
				m.logger.Error("mqtt connect failed, sensor ingestion over mqtt disabled",
					zap.String("broker", m.cfg.Broker), zap.Error(err))
				return nil
			}
			connected = true
		}
	}
	m.logger.Info("mqtt connected", zap.String("broker", m.cfg.Broker))

	<-ctx.Done()
	client.Disconnect(disconnectWait)
	m.logger.Info("mqtt disconnected")
	return nil
}

func (m *MQTTSubscriber) onMessage(_ mqtt.Client, msg mqtt.Message) {
	m.handlePayload(msg.Topic(), msg.Payload())
}

// handlePayload malformed payloads are logged and dropped.
func (m *MQTTSubscriber) handlePayload(topic string, payload []byte) {
	var r SensorReading
	if err := json.Unmarshal(payload, &r); err != nil {
		metrics.SensorReadings.WithLabelValues(sourceMQTT, "malformed").Inc()
		m.logger.Warn("malformed sensor payload", zap.String("topic", topic), zap.Error(err))
		return
	}
	res, err := m.sink.Ingest(sourceMQTT, r)
	if err != nil {
		m.logger.Warn("sensor reading rejected", zap.String("topic", topic), zap.Error(err))
		return
	}
	m.logger.Debug("sensor reading ingested",
		zap.String("sensor_id", r.SensorID),
		zap.Bool("applied", res.Applied),
		zap.Float64("congestion", res.Congestion))
}
