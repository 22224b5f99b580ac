package mykafka

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProducer_RequiresBrokers(t *testing.T) {
	t.Parallel()

	p, err := NewProducer(nil)
	assert.Nil(t, p)
	assert.Error(t, err)
}

func TestNewProducer_ConfiguresWriter(t *testing.T) {
	t.Parallel()

	p, err := NewProducer([]string{"localhost:9092"})
	require.NoError(t, err)
	assert.Equal(t, "localhost:9092", p.writer.Addr.String())
	assert.Empty(t, p.writer.Topic)
	assert.True(t, p.writer.AllowAutoTopicCreation)
	require.NoError(t, p.Close())
}

func TestPublishEvent_MarshalError(t *testing.T) {
	t.Parallel()

	p, err := NewProducer([]string{"localhost:9092"})
	require.NoError(t, err)
	defer p.Close()

	err = p.PublishEvent(context.Background(), TopicProductEvents, "1", make(chan int))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "json.Marshal")
}

func TestNop(t *testing.T) {
	t.Parallel()

	var n Nop
	assert.NoError(t, n.PublishEvent(context.Background(), TopicUserEvents, "1", UserEvent{}))
	assert.NoError(t, n.Close())
}

func TestProductEvent_JSON(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal(ProductEvent{Type: ProductCreated, ProductID: 7, Name: "Lamp", At: time.Unix(0, 0).UTC()})
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Equal(t, "product_created", m["type"])
	assert.EqualValues(t, 7, m["productID"])
	assert.Equal(t, "Lamp", m["name"])
	assert.NotContains(t, m, "productIDs")
}
