package handeye

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// ResultMessage is the payload published for one method.
type ResultMessage struct {
	Method      string           `json:"method"`
	OK          bool             `json:"ok"`
	Error       string           `json:"error,omitempty"`
	X           *Transform       `json:"x,omitempty"`
	Y           *Transform       `json:"y,omitempty"`
	Translation *ErrorStatistics `json:"translation,omitempty"`
	Rotation    *ErrorStatistics `json:"rotation,omitempty"`
	Timestamp   int64            `json:"timestamp"`
}

// NewResultMessage converts a batch outcome to its published form.
func NewResultMessage(o Outcome, ts time.Time) ResultMessage {
	msg := ResultMessage{Method: o.Method, OK: o.OK(), Timestamp: ts.Unix()}
	if o.OK() {
		x, y := o.Result.X, o.Result.Y
		t, r := o.Result.Translation, o.Result.Rotation
		msg.X, msg.Y, msg.Translation, msg.Rotation = &x, &y, &t, &r
	} else if o.Err != nil {
		msg.Error = o.Err.Error()
	}
	return msg
}

// Publisher publishes calibration results to MQTT
type Publisher struct {
	client        mqtt.Client
	publishPrefix string
	qos           byte
	retain        bool
}

// NewPublisher creates a publisher with prefix MQTT_PUBLISH_PREFIX, or
// "handeye" when unset. Messages are retained so late subscribers see the
// latest calibration.
func NewPublisher(client mqtt.Client) *Publisher {
	prefix := os.Getenv("MQTT_PUBLISH_PREFIX")
	if prefix == "" {
		prefix = "handeye"
	}
	return &Publisher{
		client:        client,
		publishPrefix: prefix,
		qos:           0,
		retain:        true,
	}
}

// SetPrefix overrides the topic prefix. Empty values are ignored.
func (p *Publisher) SetPrefix(prefix string) {
	if prefix != "" {
		p.publishPrefix = prefix
	}
}

// SetQoS sets the Quality of Service level for publishing (0, 1, or 2)
func (p *Publisher) SetQoS(qos byte) {
	if qos <= 2 {
		p.qos = qos
	}
}

// SetRetain sets whether published messages should be retained by the broker
func (p *Publisher) SetRetain(retain bool) {
	p.retain = retain
}

// PublishBatch publishes each outcome of a known method to {prefix}/{method}
// and the whole set, unknown names included, to {prefix}/results.
func (p *Publisher) PublishBatch(res *BatchResult) error {
	if p.client == nil || !p.client.IsConnected() {
		return fmt.Errorf("MQTT client not connected")
	}

	now := time.Now()
	msgs := make([]ResultMessage, 0, len(res.Outcomes))
	for _, o := range res.Outcomes {
		msg := NewResultMessage(o, now)
		msgs = append(msgs, msg)
		if _, err := ParseMethod(o.Method); err != nil {
			// Not a topic-safe identifier; reported in the combined results only.
			continue
		}
		if err := p.publish(fmt.Sprintf("%s/%s", p.publishPrefix, o.Method), msg); err != nil {
			log.Printf("[MQTT] error publishing %s: %v", o.Method, err)
			return err
		}
	}

	combined := map[string]interface{}{
		"poseCount": res.PoseCount,
		"results":   msgs,
		"timestamp": now.Unix(),
	}
	if err := p.publish(p.publishPrefix+"/results", combined); err != nil {
		log.Printf("[MQTT] error publishing combined results: %v", err)
		return err
	}
	log.Printf("[MQTT] published %d results under %s", len(msgs), p.publishPrefix)
	return nil
}

func (p *Publisher) publish(topic string, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", topic, err)
	}
	token := p.client.Publish(topic, p.qos, p.retain, payload)
	if token.WaitTimeout(2*time.Second) && token.Error() != nil {
		return fmt.Errorf("publishing to %s: %w", topic, token.Error())
	}
	return nil
}
