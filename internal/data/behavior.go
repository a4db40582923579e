package data

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// BehaviorTable assigns behaviour tags to prototypes and rooms by vnum. The
// core only stores the tags; the AI and command layers act on them.
type BehaviorTable struct {
	Mobiles map[int32]string `yaml:"mobiles"`
	Objects map[int32]string `yaml:"objects"`
	Rooms   map[int32]string `yaml:"rooms"`
}

// LoadBehaviorTable loads tag assignments from a YAML file. An empty path
// yields an empty table.
func LoadBehaviorTable(path string) (*BehaviorTable, error) {
	t := &BehaviorTable{}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read behavior table: %w", err)
		}
		if err := yaml.Unmarshal(raw, t); err != nil {
			return nil, fmt.Errorf("parse behavior table: %w", err)
		}
	}
	if t.Mobiles == nil {
		t.Mobiles = map[int32]string{}
	}
	if t.Objects == nil {
		t.Objects = map[int32]string{}
	}
	if t.Rooms == nil {
		t.Rooms = map[int32]string{}
	}
	return t, nil
}

// Count returns the number of assignments.
func (t *BehaviorTable) Count() int {
	return len(t.Mobiles) + len(t.Objects) + len(t.Rooms)
}
