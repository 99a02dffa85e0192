package message_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/get-eventually/go-eventstore/message"
)

func TestMetadata(t *testing.T) {
	var metadata message.Metadata

	metadata = metadata.With("Event-Id", "1")
	assert.Equal(t, message.Metadata{"Event-Id": "1"}, metadata)

	merged := metadata.Merge(message.Metadata{"Recorded-At": "now"})
	assert.Equal(t, message.Metadata{"Event-Id": "1", "Recorded-At": "now"}, merged)

	v, ok := merged.Get("Recorded-At")
	assert.True(t, ok)
	assert.Equal(t, "now", v)

	clone := merged.Clone()
	clone["Event-Id"] = "2"
	assert.Equal(t, "1", merged["Event-Id"])

	assert.Nil(t, message.Metadata(nil).Clone())
	assert.Equal(t, message.Metadata{"a": "b"}, message.Metadata(nil).Merge(message.Metadata{"a": "b"}))
}
