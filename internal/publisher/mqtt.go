package publisher

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/jgoulah/gridbill/internal/config"
	"github.com/jgoulah/gridbill/pkg/models"
)

// Publisher sends monthly bills to an MQTT broker
type Publisher struct {
	client      mqtt.Client
	topicPrefix string
	log         *zap.Logger
}

// New connects to the broker described by cfg
func New(cfg config.MQTTConfig, log *zap.Logger) (*Publisher, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("MQTT publishing is not enabled in config")
	}
	if cfg.Broker == "" {
		return nil, fmt.Errorf("MQTT broker address is required when enabled")
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s", cfg.Broker))
	opts.SetClientID(cfg.GetClientID())
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectTimeout(10 * time.Second)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connecting to MQTT broker: %w", token.Error())
	}
	log.Info("connected to MQTT broker", zap.String("broker", cfg.Broker))

	return &Publisher{
		client:      client,
		topicPrefix: cfg.GetTopicPrefix(),
		log:         log,
	}, nil
}

// BillPayload is the retained message published per site
type BillPayload struct {
	Period   string  `json:"period"`
	Site     string  `json:"site"`
	UsageKWh float64 `json:"usage_kwh"`
	Overuse  bool    `json:"overuse"`
	Bill     string  `json:"bill"`
	RunID    string  `json:"run_id,omitempty"`
}

// Payload encodes a bill record as published
func Payload(rec models.BillRecord) ([]byte, error) {
	body, err := json.Marshal(BillPayload{
		Period:   rec.PeriodID(),
		Site:     rec.Site,
		UsageKWh: rec.UsageKWh,
		Overuse:  rec.Overuse,
		Bill:     rec.Bill.StringFixed(2),
		RunID:    rec.RunID,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding payload: %w", err)
	}
	return body, nil
}

var topicReplacer = strings.NewReplacer("/", "_", "+", "_", "#", "_", " ", "_")

// Topic returns the topic a site's bills go to. MQTT wildcard and level
// separators in the site name are replaced.
func Topic(prefix, site string) string {
	return fmt.Sprintf("%s/%s/bill", prefix, topicReplacer.Replace(strings.ToLower(site)))
}

// Publish sends one bill as a retained QoS 1 message
func (p *Publisher) Publish(rec models.BillRecord) error {
	body, err := Payload(rec)
	if err != nil {
		return err
	}

	topic := Topic(p.topicPrefix, rec.Site)
	token := p.client.Publish(topic, 1, true, body)
	if !token.WaitTimeout(10 * time.Second) {
		return fmt.Errorf("publishing to %s: timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publishing to %s: %w", topic, err)
	}

	p.log.Debug("bill published", zap.String("topic", topic), zap.String("period", rec.PeriodID()))
	return nil
}

// Close disconnects from the MQTT broker
func (p *Publisher) Close() {
	if p.client != nil && p.client.IsConnected() {
		p.client.Disconnect(250)
	}
}
