package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPayload(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		schema  Schema
		raw     string
		wantErr bool
	}{
		{
			name:   "queue without incoming",
			schema: QueueDetails,
			raw:    `{"name":"q1","messages":3}`,
		},
		{
			name:   "queue with detailed stats",
			schema: QueueDetails,
			raw:    `{"name":"q1","incoming":[{"exchange":{"name":"ex1","vhost":"/"},"stats":{"publish":100,"publish_details":{"rate":2.5}}}]}`,
		},
		{
			name:    "incoming entry without exchange",
			schema:  QueueDetails,
			raw:     `{"name":"q1","incoming":[{"stats":{"publish":1}}]}`,
			wantErr: true,
		},
		{
			name:   "negative rate sample",
			schema: QueueDetails,
			raw:    `{"name":"q1","incoming":[{"exchange":{"name":"e"},"stats":{"publish":4,"publish_details":{"rate":-0.2}}}]}`,
		},
		{
			name:    "negative publish count",
			schema:  QueueDetails,
			raw:     `{"name":"q1","incoming":[{"exchange":{"name":"e"},"stats":{"publish":-1}}]}`,
			wantErr: true,
		},
		{
			name:   "bindings list",
			schema: QueueBindings,
			raw:    `[{"source":"","destination":"q1","routing_key":"q1"},{"source":"ex1","destination":"q1"}]`,
		},
		{
			name:    "bindings must be a list",
			schema:  QueueBindings,
			raw:     `{"source":"ex1"}`,
			wantErr: true,
		},
		{
			name:    "not json",
			schema:  QueueBindings,
			raw:     `<html>`,
			wantErr: true,
		},
		{
			name:    "unknown schema",
			schema:  Schema("exchange"),
			raw:     `{}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Payload(tt.schema, []byte(tt.raw))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}
