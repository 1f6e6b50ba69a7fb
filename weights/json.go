package weights

import (
	"encoding/json"
	"fmt"

	"github.com/openfluke/digitscope/nn"
)

// ParseJSON decodes a JSON object mapping "model.<tag>.weight" to nested arrays
// [out][in] and "model.<tag>.bias" to [out].
func ParseJSON(data []byte) (*nn.Bundle, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedModel, err)
	}

	c := collector{}
	for key, value := range raw {
		tag, param, ok, err := layerKey(key)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}

		if param == "weight" {
			var w [][]float64
			if err := json.Unmarshal(value, &w); err != nil {
				return nil, fmt.Errorf("%w: %s is not a 2-D number array: %v", ErrMalformedModel, key, err)
			}
			if w == nil {
				return nil, fmt.Errorf("%w: %s is null", ErrMalformedModel, key)
			}
			c.setWeight(tag, w)
			continue
		}

		var b []float64
		if err := json.Unmarshal(value, &b); err != nil {
			return nil, fmt.Errorf("%w: %s is not a 1-D number array: %v", ErrMalformedModel, key, err)
		}
		if b == nil {
			return nil, fmt.Errorf("%w: %s is null", ErrMalformedModel, key)
		}
		c.setBias(tag, b)
	}
	return c.bundle()
}
