package config

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed topics.yaml
var topicsYAML []byte

// Topic is a one-word shortcut for a common search.
type Topic struct {
	Name  string `yaml:"name"`
	Label string `yaml:"label"`
	Query string `yaml:"query"`
}

// LoadTopics returns the built-in topic shortcuts in file order.
func LoadTopics() ([]Topic, error) {
	var doc struct {
		Topics []Topic `yaml:"topics"`
	}
	if err := yaml.Unmarshal(topicsYAML, &doc); err != nil {
		return nil, fmt.Errorf("parse topics: %w", err)
	}
	return doc.Topics, nil
}

// FindTopic looks a shortcut up by name, case-insensitively.
func FindTopic(topics []Topic, name string) (Topic, bool) {
	for _, t := range topics {
		if strings.EqualFold(t.Name, strings.TrimSpace(name)) {
			return t, true
		}
	}
	return Topic{}, false
}
