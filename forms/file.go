package forms

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ncklrs/next-sanity-embedded-starter-sub001/model"
)

type catalogFile struct {
	Forms []model.FormConfig `yaml:"forms"`
}

// LoadFile reads a YAML list of form definitions and validates each one.
func LoadFile(path string) ([]model.FormConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var file catalogFile
	if err = yaml.Unmarshal(b, &file); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	slugs := make(map[string]bool, len(file.Forms))
	for i, f := range file.Forms {
		if err = f.Validate(); err != nil {
			return nil, fmt.Errorf("%s: forms[%d] (%s): %w", path, i, f.Slug, err)
		}
		if slugs[f.Slug] {
			return nil, fmt.Errorf("%s: forms[%d]: duplicate slug %q", path, i, f.Slug)
		}
		slugs[f.Slug] = true
	}
	return file.Forms, nil
}
