package nn

// ModelTelemetry represents a loaded model's structure
type ModelTelemetry struct {
	ID          string           `json:"id"`
	TotalLayers int              `json:"total_layers"`
	TotalParams int              `json:"total_parameters"`
	InputSize   int              `json:"input_size"`
	OutputSize  int              `json:"output_size"`
	Layers      []LayerTelemetry `json:"layers"`
}

// LayerTelemetry contains metadata about a specific layer
type LayerTelemetry struct {
	Index      int    `json:"index"`
	Tag        int    `json:"tag"`
	Type       string `json:"type"`
	Activation string `json:"activation"`
	Parameters int    `json:"parameters"`
	InputSize  int    `json:"input_size"`
	OutputSize int    `json:"output_size"`
}

// Blueprint extracts telemetry data from a bundle.
func Blueprint(b *Bundle, modelID string) ModelTelemetry {
	telemetry := ModelTelemetry{
		ID:          modelID,
		TotalLayers: len(b.Layers),
		Layers:      make([]LayerTelemetry, 0, len(b.Layers)),
	}
	if len(b.Layers) == 0 {
		return telemetry
	}

	for i := range b.Layers {
		l := &b.Layers[i]
		activation := "relu"
		if i == len(b.Layers)-1 {
			activation = "none"
		}
		telemetry.Layers = append(telemetry.Layers, LayerTelemetry{
			Index:      i,
			Tag:        l.Tag,
			Type:       "dense",
			Activation: activation,
			Parameters: l.Params(),
			InputSize:  l.InDim(),
			OutputSize: l.OutDim(),
		})
		telemetry.TotalParams += l.Params()
	}

	telemetry.InputSize = b.InDim()
	telemetry.OutputSize = b.OutDim()
	return telemetry
}
