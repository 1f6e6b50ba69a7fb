// Package weights reads dense-layer state dicts and caches the resulting bundle.
//
// Tensors are keyed "model.<tag>.weight" ([out][in]) and "model.<tag>.bias" ([out]),
// the layout PyTorch uses for an nn.Sequential stored under the attribute "model".
// Tags are non-negative integers that need not be contiguous; layers run in ascending
// tag order. Other keys are ignored.
package weights

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/openfluke/digitscope/nn"
)

// ErrMalformedModel reports a weight file that could not be parsed into layers.
var ErrMalformedModel = errors.New("malformed model file")

const keyPrefix = "model"

// layerKey splits "model.<tag>.weight" or "model.<tag>.bias". ok is false for keys
// that do not describe a layer parameter. Tags must be written canonically so "01"
// and "1" cannot name the same layer.
func layerKey(key string) (tag int, param string, ok bool, err error) {
	parts := strings.Split(key, ".")
	if len(parts) != 3 || parts[0] != keyPrefix {
		return 0, "", false, nil
	}
	param = parts[2]
	if param != "weight" && param != "bias" {
		return 0, "", false, nil
	}
	tag, err = strconv.Atoi(parts[1])
	if err != nil || tag < 0 || strconv.Itoa(tag) != parts[1] {
		return 0, "", false, fmt.Errorf("%w: key %q has an invalid layer tag", ErrMalformedModel, key)
	}
	return tag, param, true, nil
}

type layerParts struct {
	weight     [][]float64
	bias       []float64
	haveWeight bool
	haveBias   bool
}

// collector gathers weights and biases by tag as a file is decoded.
type collector map[int]*layerParts

func (c collector) get(tag int) *layerParts {
	p, ok := c[tag]
	if !ok {
		p = &layerParts{}
		c[tag] = p
	}
	return p
}

func (c collector) setWeight(tag int, w [][]float64) {
	p := c.get(tag)
	p.weight, p.haveWeight = w, true
}

func (c collector) setBias(tag int, b []float64) {
	p := c.get(tag)
	p.bias, p.haveBias = b, true
}

// bundle checks every tag has both parameters and builds the bundle.
func (c collector) bundle() (*nn.Bundle, error) {
	if len(c) == 0 {
		return nil, fmt.Errorf("%w: no model.<n>.weight keys found", ErrMalformedModel)
	}
	specs := make([]nn.LayerSpec, 0, len(c))
	for tag, p := range c {
		switch {
		case !p.haveWeight:
			return nil, fmt.Errorf("%w: layer %d has a bias but no weight", ErrMalformedModel, tag)
		case !p.haveBias:
			return nil, fmt.Errorf("%w: layer %d has a weight but no bias", ErrMalformedModel, tag)
		}
		specs = append(specs, nn.LayerSpec{Tag: tag, Weight: p.weight, Bias: p.bias})
	}
	return nn.NewBundle(specs...)
}

// LoadFile reads a model from disk. Files ending in .safetensors are read as
// safetensors, .json as a JSON state dict; anything else is sniffed.
func LoadFile(path string) (*nn.Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return ParseJSON(data)
	case ".safetensors":
		return ParseSafetensors(data)
	}
	if looksLikeJSON(data) {
		return ParseJSON(data)
	}
	return ParseSafetensors(data)
}

func looksLikeJSON(data []byte) bool {
	for _, b := range data {
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		case '{':
			return true
		default:
			return false
		}
	}
	return false
}
