package nn

import (
	"bytes"
	"encoding/json"
	"log"
	"net/http"
	"time"
)

// Observer receives one event per layer during Run.
type Observer interface {
	OnForward(event LayerEvent)
}

// LayerStats summarises one layer's output.
type LayerStats struct {
	AvgActivation float64 `json:"avg_activation"`
	MaxActivation float64 `json:"max_activation"`
	MinActivation float64 `json:"min_activation"`
	ActiveNeurons int     `json:"active_neurons"`
	TotalNeurons  int     `json:"total_neurons"`
}

// LayerEvent describes the output of one layer.
type LayerEvent struct {
	LayerIdx int        `json:"layer_idx"`
	Tag      int        `json:"tag"`
	Logits   bool       `json:"logits"`
	Stats    LayerStats `json:"stats"`
	Output   []float64  `json:"output,omitempty"`
}

// computeLayerStats calculates summary statistics for an activation slice
func computeLayerStats(data []float64, threshold float64) LayerStats {
	if len(data) == 0 {
		return LayerStats{}
	}

	var sum float64
	max, min := data[0], data[0]
	activeCount := 0

	for _, v := range data {
		sum += v
		if v > max {
			max = v
		}
		if v < min {
			min = v
		}
		if v > threshold {
			activeCount++
		}
	}

	return LayerStats{
		AvgActivation: sum / float64(len(data)),
		MaxActivation: max,
		MinActivation: min,
		ActiveNeurons: activeCount,
		TotalNeurons:  len(data),
	}
}

// notifyObserver sends an event to the observer if one is set. The output slice is
// copied so observers may keep it.
func notifyObserver(o Observer, layerIdx, tag int, output []float64, logits bool) {
	if o == nil {
		return
	}
	o.OnForward(LayerEvent{
		LayerIdx: layerIdx,
		Tag:      tag,
		Logits:   logits,
		Stats:    computeLayerStats(output, 0),
		Output:   cloneVec(output),
	})
}

// ConsoleObserver logs layer events
type ConsoleObserver struct {
	Logger  *log.Logger // nil uses the standard logger
	Verbose bool        // If true, log output values of small layers
}

func (o *ConsoleObserver) OnForward(event LayerEvent) {
	logf := log.Printf
	if o.Logger != nil {
		logf = o.Logger.Printf
	}
	logf("[FWD] Layer %d (tag %d): avg=%.4f max=%.4f active=%d/%d",
		event.LayerIdx, event.Tag,
		event.Stats.AvgActivation, event.Stats.MaxActivation,
		event.Stats.ActiveNeurons, event.Stats.TotalNeurons)

	if o.Verbose && len(event.Output) <= 20 {
		logf("       Output: %v", event.Output)
	}
}

// HTTPObserver posts layer events to an HTTP endpoint (for visualization)
type HTTPObserver struct {
	URL    string
	client *http.Client
}

func NewHTTPObserver(url string) *HTTPObserver {
	return &HTTPObserver{
		URL: url,
		client: &http.Client{
			Timeout: 100 * time.Millisecond, // Fast timeout to not hold up predictions
		},
	}
}

func (o *HTTPObserver) OnForward(event LayerEvent) {
	// Stats only, raw activations stay local
	event.Output = nil

	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	go func() {
		resp, err := o.client.Post(o.URL, "application/json", bytes.NewReader(data))
		if err == nil && resp != nil {
			resp.Body.Close()
		}
	}()
}

// ChannelObserver sends events to a Go channel (for internal processing)
type ChannelObserver struct {
	Events chan LayerEvent
}

func NewChannelObserver(bufferSize int) *ChannelObserver {
	return &ChannelObserver{
		Events: make(chan LayerEvent, bufferSize),
	}
}

func (o *ChannelObserver) OnForward(event LayerEvent) {
	select {
	case o.Events <- event:
	default:
		// Channel full, drop event to avoid blocking
	}
}
