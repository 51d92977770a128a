package checkpoint

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/FlavioCFOliveira/LightCNN/internal/tensor"
)

// FormatVersion is written to JSON checkpoints.
const FormatVersion = "1"

// WeightData is the serialised form of one tensor.
type WeightData struct {
	Shape []int     `json:"shape"`
	Data  []float64 `json:"data"`
}

type jsonCheckpoint struct {
	Version   string                `json:"version,omitempty"`
	StateDict map[string]WeightData `json:"state_dict"`
}

// ReadJSON decodes a JSON checkpoint. The document must carry a
// "state_dict" object and every entry's data must match its shape.
func ReadJSON(r io.Reader) (StateDict, error) {
	var doc jsonCheckpoint
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkpoint: %w", err)
	}
	if doc.StateDict == nil {
		return nil, fmt.Errorf("checkpoint has no %q key", StateDictKey)
	}

	sd := make(StateDict, len(doc.StateDict))
	for name, wd := range doc.StateDict {
		if n := tensor.Numel(wd.Shape); n != len(wd.Data) {
			return nil, fmt.Errorf("%s: shape %v needs %d values, got %d", name, wd.Shape, n, len(wd.Data))
		}
		sd[name] = tensor.FromData(wd.Data, wd.Shape...)
	}
	return sd, nil
}

// WriteJSON encodes sd under the "state_dict" key.
func WriteJSON(w io.Writer, sd StateDict) error {
	doc := jsonCheckpoint{
		Version:   FormatVersion,
		StateDict: make(map[string]WeightData, len(sd)),
	}
	for name, t := range sd {
		doc.StateDict[name] = WeightData{Shape: t.Shape, Data: t.Data}
	}
	if err := json.NewEncoder(w).Encode(doc); err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}
	return nil
}
