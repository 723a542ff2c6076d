package foundation

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/MalithGihan/rabbitflow/internal/validate"
)

const maxBodySize = 1 << 20 // 1 MB

// Decode reads and decodes the JSON body of an HTTP request into a value of T
// and checks its validate tags. It limits the request body size, disallows
// unknown JSON fields, and rejects bodies containing more than a single JSON
// value.
func Decode[T any](w http.ResponseWriter, r *http.Request) (T, error) {
	body := http.MaxBytesReader(w, r.Body, maxBodySize)
	defer body.Close()

	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()

	var data T
	if err := dec.Decode(&data); err != nil {
		return data, fmt.Errorf("request: decode: %w", err)
	}

	if dec.More() {
		return data, fmt.Errorf("request: decode: body must contain a single JSON value")
	}

	if err := validate.Struct(data); err != nil {
		return data, fmt.Errorf("request: %w", err)
	}
	return data, nil
}
