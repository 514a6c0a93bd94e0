/*
load.go - YAML catalog files

PURPOSE:
  Deployments supply their own content as a single YAML file:

    achievements:
      - id: first-steps
        title: First Steps
        tier: bronze
        criteria: {type: activity_count, threshold: 1}
    rewards:
      - id: movie-night
        title: Pick the Movie
        points_cost: 150
    challenge_templates:
      - title: Finish a math activity
        category: math
        bonus_points: 20

  Loading validates the same way New does: a bad file fails startup rather
  than producing silent nil lookups later.
*/
package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type catalogFile struct {
	Achievements       []Achievement       `yaml:"achievements"`
	Rewards            []Reward            `yaml:"rewards"`
	ChallengeTemplates []ChallengeTemplate `yaml:"challenge_templates"`
}

// Load reads and validates a YAML catalog file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

// Parse validates YAML catalog content.
func Parse(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	c, err := New(file.Achievements, file.Rewards, file.ChallengeTemplates)
	if err != nil {
		return nil, fmt.Errorf("invalid catalog: %w", err)
	}
	return c, nil
}
