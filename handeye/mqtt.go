package handeye

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// JobHandler is called for every message on the request topic. Either job is
// set or err explains why the payload could not be decoded.
type JobHandler func(job *CalibrationJob, err error)

// MQTTClient manages the broker connection and the calibration request
// subscription
type MQTTClient struct {
	client      mqtt.Client
	config      *Config
	jobHandler  JobHandler
	isConnected bool
	mu          sync.RWMutex
}

// InitMQTT connects to the broker named by MQTT_BROKER or mqtt.broker.
// With neither set MQTT is disabled and InitMQTT returns nil, nil.
func InitMQTT(config *Config, handler JobHandler) (*MQTTClient, error) {
	broker := os.Getenv("MQTT_BROKER")
	if broker == "" && config != nil {
		broker = config.MQTT.Broker
	}
	if broker == "" {
		log.Println("[MQTT] disabled: MQTT_BROKER not set")
		return nil, nil
	}
	if config == nil {
		return nil, fmt.Errorf("MQTT enabled but no configuration provided")
	}

	c := &MQTTClient{
		config:     config,
		jobHandler: handler,
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(envOr("MQTT_CLIENT_ID", config.MQTT.ClientID, "handeye"))

	if username := envOr("MQTT_USERNAME", config.MQTT.Username, ""); username != "" {
		opts.SetUsername(username)
		opts.SetPassword(envOr("MQTT_PASSWORD", config.MQTT.Password, ""))
	}

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetCleanSession(false)
	// Jobs are independent; a slow solve must not block the next delivery.
	opts.SetOrderMatters(false)

	opts.SetOnConnectHandler(c.onConnect)
	opts.SetConnectionLostHandler(c.onConnectionLost)
	opts.SetReconnectingHandler(func(mqtt.Client, *mqtt.ClientOptions) {
		log.Println("[MQTT] reconnecting...")
	})

	c.client = mqtt.NewClient(opts)
	go c.connectWithRetry()
	return c, nil
}

func envOr(key, configured, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	if configured != "" {
		return configured
	}
	return fallback
}

// connectWithRetry connects with exponential backoff capped at one minute
func (c *MQTTClient) connectWithRetry() {
	retryDelay := 1 * time.Second
	maxRetryDelay := 60 * time.Second

	for {
		log.Println("[MQTT] connecting to broker...")
		token := c.client.Connect()
		if token.WaitTimeout(10 * time.Second) {
			if token.Error() == nil {
				log.Println("[MQTT] connected")
				c.setConnected(true)
				return
			}
			log.Printf("[MQTT] connection failed: %v", token.Error())
		} else {
			log.Println("[MQTT] connection timeout")
		}

		log.Printf("[MQTT] retrying in %v...", retryDelay)
		time.Sleep(retryDelay)
		retryDelay = min(retryDelay*2, maxRetryDelay)
	}
}

func (c *MQTTClient) onConnect(client mqtt.Client) {
	c.setConnected(true)

	topic := c.config.MQTT.RequestTopic
	if topic == "" {
		log.Println("[MQTT] connected, no request topic configured")
		return
	}
	log.Printf("[MQTT] subscribing to %s", topic)
	token := client.Subscribe(topic, 1, c.handleRequest)
	if token.WaitTimeout(5*time.Second) && token.Error() != nil {
		log.Printf("[MQTT] error subscribing to %s: %v", topic, token.Error())
	}
}

func (c *MQTTClient) onConnectionLost(_ mqtt.Client, err error) {
	log.Printf("[MQTT] connection interrupted (%v), auto-reconnect will retry", err)
	c.setConnected(false)
}

// handleRequest decodes a CalibrationJob payload and hands it to the job
// handler.
func (c *MQTTClient) handleRequest(_ mqtt.Client, msg mqtt.Message) {
	payload := msg.Payload()
	log.Printf("[MQTT] calibration request on %s (%d bytes)", msg.Topic(), len(payload))
	if c.jobHandler == nil {
		return
	}

	job, err := DecodeJob(payload)
	if err != nil {
		log.Printf("[MQTT] rejecting request: %v", err)
	}
	c.jobHandler(job, err)
}

// DecodeJob parses and validates a JSON CalibrationJob.
func DecodeJob(payload []byte) (*CalibrationJob, error) {
	var job CalibrationJob
	if err := json.Unmarshal(payload, &job); err != nil {
		return nil, fmt.Errorf("decoding calibration job: %w", err)
	}
	if err := job.Validate(); err != nil {
		return nil, err
	}
	return &job, nil
}

// IsConnected returns true if the MQTT client is connected
func (c *MQTTClient) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.isConnected
}

func (c *MQTTClient) setConnected(connected bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.isConnected = connected
}

// Disconnect closes the connection with a 250ms quiesce period.
func (c *MQTTClient) Disconnect() {
	if c.client != nil && c.client.IsConnected() {
		log.Println("[MQTT] disconnecting...")
		c.client.Disconnect(250)
		c.setConnected(false)
	}
}

// GetClient returns the underlying client for publishing
func (c *MQTTClient) GetClient() mqtt.Client {
	return c.client
}

// newMQTTClientWithMock wraps an existing client, bypassing InitMQTT.
func newMQTTClientWithMock(client mqtt.Client, config *Config, handler JobHandler) *MQTTClient {
	return &MQTTClient{
		client:     client,
		config:     config,
		jobHandler: handler,
	}
}
