package classifier

import (
	_ "embed"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed data/training.yaml
var defaultDataset []byte

// Sample is one labelled expense name.
type Sample struct {
	Name     string
	Category string
}

type datasetGroup struct {
	Category string   `yaml:"category"`
	Examples []string `yaml:"examples"`
}

// DefaultSamples returns the built-in training set.
func DefaultSamples() []Sample {
	samples, err := parseSamples(defaultDataset)
	if err != nil {
		panic(fmt.Sprintf("embedded training set is invalid: %v", err))
	}
	return samples
}

// LoadSamples reads a training set in the same YAML layout as the built-in
// one: a list of {category, examples} groups.
func LoadSamples(r io.Reader) ([]Sample, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return parseSamples(data)
}

// LoadSamplesFile is LoadSamples on a file path.
func LoadSamplesFile(path string) ([]Sample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadSamples(f)
}

// Categories returns the distinct sample labels, sorted.
func Categories(samples []Sample) []string {
	labels := make([]string, len(samples))
	for i, s := range samples {
		labels[i] = s.Category
	}
	return uniqueSorted(labels)
}

// MarshalSamples writes samples in the layout LoadSamples reads. Groups are
// sorted by category; within a group names keep their order and repeats
// (ignoring case and surrounding space) are dropped.
func MarshalSamples(samples []Sample) ([]byte, error) {
	byCategory := make(map[string]*datasetGroup)
	seen := make(map[string]bool)
	for _, s := range samples {
		category := strings.TrimSpace(s.Category)
		name := strings.TrimSpace(s.Name)
		if category == "" || name == "" {
			continue
		}
		key := category + "\x00" + strings.ToLower(name)
		if seen[key] {
			continue
		}
		seen[key] = true
		g, ok := byCategory[category]
		if !ok {
			g = &datasetGroup{Category: category}
			byCategory[category] = g
		}
		g.Examples = append(g.Examples, name)
	}

	groups := make([]datasetGroup, 0, len(byCategory))
	for _, category := range slices.Sorted(maps.Keys(byCategory)) {
		groups = append(groups, *byCategory[category])
	}
	return yaml.Marshal(groups)
}

func parseSamples(data []byte) ([]Sample, error) {
	var groups []datasetGroup
	if err := yaml.Unmarshal(data, &groups); err != nil {
		return nil, fmt.Errorf("failed to parse training set: %w", err)
	}

	var samples []Sample
	for i, g := range groups {
		category := strings.TrimSpace(g.Category)
		if category == "" {
			return nil, fmt.Errorf("group %d has no category", i)
		}
		for _, ex := range g.Examples {
			if strings.TrimSpace(ex) == "" {
				continue
			}
			samples = append(samples, Sample{Name: ex, Category: category})
		}
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("training set has no examples")
	}
	return samples, nil
}
