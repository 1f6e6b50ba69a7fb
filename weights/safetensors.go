package weights

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"

	"github.com/openfluke/digitscope/nn"
)

// TensorInfo describes a tensor's properties in a safetensors header
type TensorInfo struct {
	DType  string `json:"dtype"`
	Shape  []int  `json:"shape"`
	Offset []int  `json:"data_offsets"`
}

var dtypeSize = map[string]int{
	"F64":  8,
	"F32":  4,
	"F16":  2,
	"BF16": 2,
}

// ParseSafetensors decodes a safetensors blob holding "model.<tag>.weight" ([out, in])
// and "model.<tag>.bias" ([out]) tensors.
func ParseSafetensors(data []byte) (*nn.Bundle, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("%w: data too short: need at least 8 bytes for header size", ErrMalformedModel)
	}

	// Header size is the first 8 bytes, little-endian
	headerSize := binary.LittleEndian.Uint64(data[0:8])
	if headerSize > uint64(len(data)-8) {
		return nil, fmt.Errorf("%w: header size %d but only %d bytes available", ErrMalformedModel, headerSize, len(data)-8)
	}

	var rawHeader map[string]json.RawMessage
	if err := json.Unmarshal(data[8:8+headerSize], &rawHeader); err != nil {
		return nil, fmt.Errorf("%w: failed to parse header: %v", ErrMalformedModel, err)
	}

	// Tensor data starts after header
	allData := data[8+headerSize:]

	c := collector{}
	for name, value := range rawHeader {
		if name == "__metadata__" {
			continue
		}
		tag, param, ok, err := layerKey(name)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}

		var info TensorInfo
		if err := json.Unmarshal(value, &info); err != nil {
			return nil, fmt.Errorf("%w: tensor %s: %v", ErrMalformedModel, name, err)
		}
		values, err := readTensor(name, info, allData)
		if err != nil {
			return nil, err
		}

		if param == "bias" {
			if len(info.Shape) != 1 {
				return nil, fmt.Errorf("%w: bias %s has shape %v, expected 1-D", ErrMalformedModel, name, info.Shape)
			}
			c.setBias(tag, values)
			continue
		}

		if len(info.Shape) != 2 {
			return nil, fmt.Errorf("%w: weight %s has shape %v, expected 2-D", ErrMalformedModel, name, info.Shape)
		}
		rows, cols := info.Shape[0], info.Shape[1]
		if rows*cols != len(values) {
			return nil, fmt.Errorf("%w: weight %s shape %v does not match its data", ErrMalformedModel, name, info.Shape)
		}
		w := make([][]float64, rows)
		for r := range w {
			w[r] = values[r*cols : (r+1)*cols]
		}
		c.setWeight(tag, w)
	}
	return c.bundle()
}

// readTensor converts one tensor's bytes to float64 values.
func readTensor(name string, info TensorInfo, allData []byte) ([]float64, error) {
	size, ok := dtypeSize[info.DType]
	if !ok {
		return nil, fmt.Errorf("%w: tensor %s has unsupported dtype %s", ErrMalformedModel, name, info.DType)
	}
	if len(info.Offset) != 2 {
		return nil, fmt.Errorf("%w: tensor %s has no data_offsets", ErrMalformedModel, name)
	}

	numElements := 1
	for _, dim := range info.Shape {
		if dim < 0 {
			return nil, fmt.Errorf("%w: tensor %s has negative dimension", ErrMalformedModel, name)
		}
		if dim > 0 && numElements > math.MaxInt/size/dim {
			return nil, fmt.Errorf("%w: tensor %s shape %v is too large", ErrMalformedModel, name, info.Shape)
		}
		numElements *= dim
	}

	start, end := info.Offset[0], info.Offset[1]
	if start < 0 || end > len(allData) || end-start != numElements*size {
		return nil, fmt.Errorf("%w: tensor %s: data out of bounds", ErrMalformedModel, name)
	}
	raw := allData[start:end]

	out := make([]float64, numElements)
	for i := range out {
		switch info.DType {
		case "F64":
			out[i] = math.Float64frombits(binary.LittleEndian.Uint64(raw[i*8:]))
		case "F32":
			out[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:])))
		case "F16":
			out[i] = float64(float16ToFloat32(binary.LittleEndian.Uint16(raw[i*2:])))
		case "BF16":
			out[i] = float64(bfloat16ToFloat32(binary.LittleEndian.Uint16(raw[i*2:])))
		}
	}
	return out, nil
}

// float16ToFloat32 converts a float16 (half precision) to float32
func float16ToFloat32(f16 uint16) float32 {
	sign := uint32((f16 >> 15) & 0x1)
	exponent := uint32((f16 >> 10) & 0x1F)
	mantissa := uint32(f16 & 0x3FF)

	var f32bits uint32
	if exponent == 0 {
		if mantissa == 0 {
			// Zero
			f32bits = sign << 31
		} else {
			// Subnormal
			exponent = 1
			for (mantissa & 0x400) == 0 {
				mantissa <<= 1
				exponent--
			}
			mantissa &= 0x3FF
			f32bits = (sign << 31) | ((exponent + (127 - 15)) << 23) | (mantissa << 13)
		}
	} else if exponent == 0x1F {
		// Inf or NaN
		f32bits = (sign << 31) | (0xFF << 23) | (mantissa << 13)
	} else {
		// Normal
		f32bits = (sign << 31) | ((exponent + (127 - 15)) << 23) | (mantissa << 13)
	}

	return math.Float32frombits(f32bits)
}

// bfloat16ToFloat32 converts a bfloat16 to float32
func bfloat16ToFloat32(bf16 uint16) float32 {
	// bfloat16 is just the top 16 bits of float32
	return math.Float32frombits(uint32(bf16) << 16)
}
