package network

import (
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"

	"gorgonia.org/tensor"
)

type archDoc struct {
	Params Params `json:"params"`
}

// Save writes the architecture as JSON and the weights as a gob blob, one
// tensor per layer in tower order.
func (n *Net) Save(archPath, weightsPath string) error {
	if n == nil || len(n.weights) == 0 {
		return ErrNoModel
	}

	arch, err := json.MarshalIndent(archDoc{Params: n.params}, "", "  ")
	if err != nil {
		return fmt.Errorf("network: failed to serialize architecture: %v", err)
	}
	if err := os.WriteFile(archPath, arch, 0o644); err != nil {
		return fmt.Errorf("network: failed to write %s: %v", archPath, err)
	}

	f, err := os.Create(weightsPath)
	if err != nil {
		return fmt.Errorf("network: failed to create %s: %v", weightsPath, err)
	}
	defer f.Close()

	dense := make([]*tensor.Dense, len(n.weights))
	for i, w := range n.weights {
		d, ok := w.(*tensor.Dense)
		if !ok {
			return fmt.Errorf("network: layer %d weight is not a dense tensor", i)
		}
		dense[i] = d
	}
	if err := gob.NewEncoder(f).Encode(dense); err != nil {
		return fmt.Errorf("network: failed to encode weights: %v", err)
	}
	return nil
}

// Load reconstructs a network from a saved architecture document and
// weight blob, overwriting nothing until both files parse.
func Load(archPath, weightsPath string) (*Net, error) {
	arch, err := os.ReadFile(archPath)
	if err != nil {
		return nil, fmt.Errorf("network: failed to read %s: %v", archPath, err)
	}
	var doc archDoc
	if err := json.Unmarshal(arch, &doc); err != nil {
		return nil, fmt.Errorf("network: failed to parse architecture: %v", err)
	}

	n, err := New(doc.Params)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(weightsPath)
	if err != nil {
		return nil, fmt.Errorf("network: failed to open %s: %v", weightsPath, err)
	}
	defer f.Close()

	var dense []*tensor.Dense
	if err := gob.NewDecoder(f).Decode(&dense); err != nil {
		return nil, fmt.Errorf("network: failed to decode weights: %v", err)
	}
	if len(dense) != len(n.weights) {
		return nil, fmt.Errorf("network: weight blob has %d layers, architecture expects %d", len(dense), len(n.weights))
	}
	for i, d := range dense {
		if !d.Shape().Eq(n.weights[i].Shape()) {
			return nil, fmt.Errorf("network: layer %d weight shape %v does not match architecture %v", i, d.Shape(), n.weights[i].Shape())
		}
		n.weights[i] = d
	}
	return n, nil
}
