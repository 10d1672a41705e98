package definitions

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/roach88/hearth/internal/instance"
)

func (l *Loader) parseYAML(name string, data []byte) ([]instance.Definition, error) {
	var doc fileDoc
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%s: parse YAML: %w", name, err)
	}
	return doc.definitions(name)
}
