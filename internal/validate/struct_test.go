package validate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStruct(t *testing.T) {
	t.Parallel()

	type sample struct {
		URL     string        `validate:"required,url"`
		Mode    string        `validate:"omitempty,oneof=rate count"`
		Timeout time.Duration `validate:"gt=0"`
	}

	tests := []struct {
		name    string
		in      sample
		wantErr string
	}{
		{name: "valid", in: sample{URL: "http://localhost:15672", Mode: "rate", Timeout: time.Second}},
		{name: "missing url", in: sample{Timeout: time.Second}, wantErr: "URL: field is required"},
		{name: "bad url", in: sample{URL: "not a url", Timeout: time.Second}, wantErr: "URL: must be a valid URL"},
		{name: "bad mode", in: sample{URL: "http://x", Mode: "bytes", Timeout: time.Second}, wantErr: "Mode: must be one of [rate count]"},
		{name: "zero timeout", in: sample{URL: "http://x"}, wantErr: "Timeout: must be greater than 0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Struct(tt.in)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.EqualError(t, err, tt.wantErr)
		})
	}
}
