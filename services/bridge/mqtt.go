package bridge

import (
	"context"
	"errors"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// mqttTransport dials a broker with paho. Reconnects are driven by the
// bridge's own backoff, so paho's auto-reconnect is off.
type mqttTransport struct {
	cfg MQTTConfig
}

func newMQTTTransport(tc TransportConfig) (Transport, error) {
	if tc.MQTT == nil || tc.MQTT.Broker == "" {
		return nil, errors.New("mqtt transport requires a broker")
	}
	return &mqttTransport{cfg: *tc.MQTT}, nil
}

func (t *mqttTransport) String() string { return "mqtt " + t.cfg.Broker }

func (t *mqttTransport) Open(ctx context.Context) (Client, error) {
	c := &mqttClient{qos: t.cfg.QoS, done: make(chan struct{})}

	clientID := t.cfg.ClientID
	if clientID == "" {
		clientID = defaultPrefix
	}
	opts := mqtt.NewClientOptions().AddBroker(t.cfg.Broker).SetClientID(clientID)
	opts.SetKeepAlive(10 * time.Second)
	opts.SetPingTimeout(2 * time.Second)
	opts.SetConnectTimeout(5 * time.Second)
	opts.SetAutoReconnect(false)
	opts.SetCleanSession(true)
	if t.cfg.Username != "" {
		opts.SetUsername(t.cfg.Username)
		opts.SetPassword(t.cfg.Password)
	}
	opts.SetConnectionLostHandler(func(mqtt.Client, error) { c.lost() })

	c.cl = mqtt.NewClient(opts)
	if err := wait(ctx, c.cl.Connect()); err != nil {
		return nil, err
	}
	return c, nil
}

type mqttClient struct {
	cl   mqtt.Client
	qos  byte
	once sync.Once
	done chan struct{}
}

func (c *mqttClient) lost() { c.once.Do(func() { close(c.done) }) }

func (c *mqttClient) Publish(topic string, payload []byte, retained bool) error {
	tok := c.cl.Publish(topic, c.qos, retained, payload)
	tok.Wait()
	return tok.Error()
}

func (c *mqttClient) Subscribe(filter string, fn func(topic string, payload []byte)) error {
	tok := c.cl.Subscribe(filter, c.qos, func(_ mqtt.Client, m mqtt.Message) {
		fn(m.Topic(), m.Payload())
	})
	tok.Wait()
	return tok.Error()
}

func (c *mqttClient) Done() <-chan struct{} { return c.done }

func (c *mqttClient) Close() {
	c.cl.Disconnect(250)
	c.lost()
}

// wait blocks on a paho token, giving up when ctx ends.
func wait(ctx context.Context, tok mqtt.Token) error {
	select {
	case <-tok.Done():
		return tok.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}
