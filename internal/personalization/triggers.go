package personalization

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type triggerFile struct {
	Triggers []Trigger `yaml:"triggers"`
}

// LoadTriggers reads a trigger list from a YAML file of the form
//
//	triggers:
//	  - phrase: "my name is"
//	    key: name
func LoadTriggers(path string) ([]Trigger, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read triggers file: %w", err)
	}
	var f triggerFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("decode triggers file: %w", err)
	}
	if len(f.Triggers) == 0 {
		return nil, fmt.Errorf("triggers file %s defines no triggers", path)
	}
	return f.Triggers, nil
}
