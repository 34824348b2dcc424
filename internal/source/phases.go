package source

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/Faultbox/bimscene/pkg/phase"
)

// ErrInvalidPhaseOrder is returned when a phase order file is not a list of scalars.
var ErrInvalidPhaseOrder = errors.New("invalid phase order")

// LoadPhaseOrder reads the project phase ordering from a YAML file. The file
// holds either a bare sequence or a mapping with a "phases" sequence:
//
//	phases:
//	  - existing
//	  - "2024"
//	  - 2025
//
// Unquoted numeric ids are normalized the way numeric phase tags in a model
// export are: the shortest decimal text of the value, so 2.0 becomes "2" and
// 1e3 becomes "1000". Quote an id to keep its literal text.
func LoadPhaseOrder(path string) ([]phase.ID, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParsePhaseOrder(data)
}

// ParsePhaseOrder decodes a phase ordering document.
func ParsePhaseOrder(data []byte) ([]phase.ID, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPhaseOrder, err)
	}
	if len(doc.Content) == 0 {
		return nil, nil
	}

	seq := doc.Content[0]
	if seq.Kind == yaml.MappingNode {
		seq = mappingValue(seq, "phases")
		if seq == nil {
			return nil, fmt.Errorf("%w: no phases key", ErrInvalidPhaseOrder)
		}
	}
	if seq.Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("%w: expected a sequence at line %d", ErrInvalidPhaseOrder, seq.Line)
	}

	order := make([]phase.ID, 0, len(seq.Content))
	for _, item := range seq.Content {
		if item.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("%w: entry at line %d is not a scalar", ErrInvalidPhaseOrder, item.Line)
		}
		order = append(order, scalarID(item))
	}
	return order, nil
}

func scalarID(n *yaml.Node) phase.ID {
	switch n.ShortTag() {
	case "!!int", "!!float":
		var f float64
		if err := n.Decode(&f); err == nil {
			return phase.ID(strconv.FormatFloat(f, 'f', -1, 64))
		}
	}
	return phase.ID(n.Value)
}

func mappingValue(m *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	return nil
}
