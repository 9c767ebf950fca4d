package model

import "fmt"

// MetadataTopologyKey is the rule-metadata key the topology splitter reads.
const MetadataTopologyKey = "topology"

// TopologyKey partitions the constraint problem by scheduling domain.
type TopologyKey string

const (
	TopologyZone TopologyKey = "zone"
	TopologyRack TopologyKey = "rack"
	TopologyNode TopologyKey = "node"
)

// ParseTopologyKey validates a topology metadata value.
func ParseTopologyKey(s string) (TopologyKey, error) {
	switch s {
	case "zone":
		return TopologyZone, nil
	case "rack":
		return TopologyRack, nil
	case "node":
		return TopologyNode, nil
	default:
		return "", fmt.Errorf("unknown topology key %q", s)
	}
}

func (k TopologyKey) String() string { return string(k) }
