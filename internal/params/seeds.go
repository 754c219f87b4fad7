package params

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"trawl/internal/services"
)

type seedFile struct {
	Seeds []string `yaml:"seeds"`
}

// LoadSeedFile reads seed artist ids from path. Files ending in .yaml or .yml
// hold either a top-level list or a `seeds:` key; anything else is read as
// one id per line with `#` comments.
func LoadSeedFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read seeds file: %w", services.ErrConfiguration, err)
	}

	var seeds []string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		seeds, err = parseYAMLSeeds(data)
		if err != nil {
			return nil, fmt.Errorf("%w: parse seeds file %s: %w", services.ErrConfiguration, path, err)
		}
	default:
		seeds = parseTextSeeds(data)
	}

	seeds = uniqueOrdered(seeds, nil)
	if len(seeds) == 0 {
		return nil, fmt.Errorf("%w: seeds file %s lists no artists", services.ErrConfiguration, path)
	}
	return seeds, nil
}

func parseYAMLSeeds(data []byte) ([]string, error) {
	var list []string
	if err := yaml.Unmarshal(data, &list); err == nil {
		return list, nil
	}
	var doc seedFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc.Seeds, nil
}

func parseTextSeeds(data []byte) []string {
	var out []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := scanner.Text()
		if idx := strings.IndexByte(line, '#'); idx >= 0 {
			line = line[:idx]
		}
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}
