package handeye

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleBatch() *BatchResult {
	x, y := knownX, knownY
	return &BatchResult{
		PoseCount: 6,
		Started:   time.Now(),
		Outcomes: []Outcome{
			{Method: "shah", Result: &CalibrationResult{X: x, Y: y, Translation: ErrorStatistics{Mean: 0.5}}},
			{Method: "tsai-lenz", Err: errors.New("algorithm failed: no motion")},
		},
	}
}

func TestNewPublisher_Defaults(t *testing.T) {
	t.Setenv("MQTT_PUBLISH_PREFIX", "")
	p := NewPublisher(NewMockClient())
	assert.Equal(t, "handeye", p.publishPrefix)
	assert.Equal(t, byte(0), p.qos)
	assert.True(t, p.retain)
}

func TestNewPublisher_EnvPrefix(t *testing.T) {
	t.Setenv("MQTT_PUBLISH_PREFIX", "cell7/handeye")
	p := NewPublisher(NewMockClient())
	assert.Equal(t, "cell7/handeye", p.publishPrefix)
}

func TestPublisher_Setters(t *testing.T) {
	p := NewPublisher(NewMockClient())

	p.SetPrefix("robots")
	assert.Equal(t, "robots", p.publishPrefix)
	p.SetPrefix("")
	assert.Equal(t, "robots", p.publishPrefix, "empty prefix should be ignored")

	p.SetQoS(2)
	assert.Equal(t, byte(2), p.qos)
	p.SetQoS(3)
	assert.Equal(t, byte(2), p.qos, "invalid QoS should be ignored")

	p.SetRetain(false)
	assert.False(t, p.retain)
}

func TestPublisher_PublishBatch(t *testing.T) {
	mock := NewMockClient()
	mock.SetConnected(true)
	p := NewPublisher(mock)
	p.SetPrefix("test")
	p.SetQoS(1)

	require.NoError(t, p.PublishBatch(sampleBatch()))

	msgs := mock.GetPublishedMessages()
	require.Len(t, msgs, 3)
	assert.Equal(t, "test/shah", msgs[0].Topic)
	assert.Equal(t, "test/tsai-lenz", msgs[1].Topic)
	assert.Equal(t, "test/results", msgs[2].Topic)
	for _, m := range msgs {
		assert.Equal(t, byte(1), m.QoS)
		assert.True(t, m.Retain)
	}

	var ok ResultMessage
	require.NoError(t, json.Unmarshal(msgs[0].Payload, &ok))
	assert.True(t, ok.OK)
	require.NotNil(t, ok.X)
	assert.InDelta(t, knownX.At(0, 3), ok.X.At(0, 3), 1e-9)
	require.NotNil(t, ok.Translation)
	assert.Equal(t, 0.5, ok.Translation.Mean)

	var failed ResultMessage
	require.NoError(t, json.Unmarshal(msgs[1].Payload, &failed))
	assert.False(t, failed.OK)
	assert.Contains(t, failed.Error, "no motion")
	assert.Nil(t, failed.X)

	var combined struct {
		PoseCount int             `json:"poseCount"`
		Results   []ResultMessage `json:"results"`
	}
	require.NoError(t, json.Unmarshal(msgs[2].Payload, &combined))
	assert.Equal(t, 6, combined.PoseCount)
	assert.Len(t, combined.Results, 2)
}

func TestPublisher_UnknownMethodsOnlyInResults(t *testing.T) {
	mock := NewMockClient()
	mock.SetConnected(true)
	p := NewPublisher(mock)
	p.SetPrefix("cell")

	res := sampleBatch()
	res.Outcomes = append(res.Outcomes,
		Outcome{Method: "x/#", Err: ErrUnknownMethod},
		Outcome{Method: "+", Err: ErrUnknownMethod},
	)
	require.NoError(t, p.PublishBatch(res))

	msgs := mock.GetPublishedMessages()
	var topics []string
	for _, m := range msgs {
		topics = append(topics, m.Topic)
	}
	assert.Equal(t, []string{"cell/shah", "cell/tsai-lenz", "cell/results"}, topics)

	var combined struct {
		Results []ResultMessage `json:"results"`
	}
	require.NoError(t, json.Unmarshal(msgs[2].Payload, &combined))
	require.Len(t, combined.Results, 4)
	assert.Equal(t, "x/#", combined.Results[2].Method)
	assert.False(t, combined.Results[2].OK)
}

func TestPublisher_NotConnected(t *testing.T) {
	p := NewPublisher(NewMockClient())
	err := p.PublishBatch(sampleBatch())
	assert.EqualError(t, err, "MQTT client not connected")

	p = NewPublisher(nil)
	assert.Error(t, p.PublishBatch(sampleBatch()))
}

func TestPublisher_PublishError(t *testing.T) {
	mock := NewMockClient()
	mock.SetConnected(true)
	mock.SetPublishError(errors.New("broker full"))

	err := NewPublisher(mock).PublishBatch(sampleBatch())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker full")
	assert.Empty(t, mock.GetPublishedMessages())
}
