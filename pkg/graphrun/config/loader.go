package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format is a document encoding.
type Format string

// Supported document formats.
const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
	FormatHCL  Format = "hcl"
)

// ErrUnsupportedFormat is returned for documents whose format has no decoder.
var ErrUnsupportedFormat = errors.New("unsupported document format")

var extensions = map[string]Format{
	".yaml": FormatYAML,
	".yml":  FormatYAML,
	".json": FormatJSON,
	".hcl":  FormatHCL,
}

// FormatOf returns the format implied by a file name's extension.
func FormatOf(path string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if f, ok := extensions[ext]; ok {
		return f, nil
	}
	return "", fmt.Errorf("%w: extension %q", ErrUnsupportedFormat, ext)
}

// Parse decodes a document. name is only used in HCL diagnostics.
func Parse(data []byte, format Format, name string) (Config, error) {
	switch format {
	case FormatYAML:
		return FromYAML(data)
	case FormatJSON:
		return FromJSON(data)
	case FormatHCL:
		return FromHCL(data, name)
	}
	return Config{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
}

// FromFile reads and decodes a graph document, choosing the decoder from
// the extension.
func FromFile(path string) (Config, error) {
	format, err := FormatOf(path)
	if err != nil {
		return Config{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read document: %w", err)
	}
	return Parse(data, format, filepath.Base(path))
}

// FromYAML decodes a YAML mapping.
func FromYAML(data []byte) (Config, error) {
	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Config{}, fmt.Errorf("decode yaml: %w", err)
	}
	return New(m), nil
}

// FromJSON decodes a JSON object. Numbers are kept as json.Number so
// integral values are not rounded through float64.
func FromJSON(data []byte) (Config, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return Config{}, fmt.Errorf("decode json: %w", err)
	}
	return New(m), nil
}
