package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// ParseParametersYAML parses Parameters from YAML bytes on top of
// DefaultParameters and validates them. Unknown keys are rejected.
// This is used for APIs where parameters are provided as payload (not via filesystem).
func ParseParametersYAML(data []byte) (*Parameters, error) {
	params := DefaultParameters()
	if err := decodeStrict(data, params); err != nil {
		return nil, fmt.Errorf("failed to parse parameters yaml: %w", err)
	}

	if err := validateParameters(params); err != nil {
		return nil, fmt.Errorf("invalid parameters: %w", err)
	}

	return params, nil
}

// ParseParametersYAMLString parses Parameters from a YAML string and validates them.
func ParseParametersYAMLString(yamlText string) (*Parameters, error) {
	return ParseParametersYAML([]byte(yamlText))
}

// ParseSiteYAML parses a Site from YAML bytes and validates it.
func ParseSiteYAML(data []byte) (*Site, error) {
	var site Site
	if err := decodeStrict(data, &site); err != nil {
		return nil, fmt.Errorf("failed to parse site yaml: %w", err)
	}

	if err := validateSite(&site); err != nil {
		return nil, fmt.Errorf("invalid site: %w", err)
	}

	return &site, nil
}

// ParseSiteYAMLString parses a Site from a YAML string and validates it.
func ParseSiteYAMLString(yamlText string) (*Site, error) {
	return ParseSiteYAML([]byte(yamlText))
}

// MarshalParametersYAML serializes a parameter set for run records.
func MarshalParametersYAML(p *Parameters) (string, error) {
	if p == nil {
		return "", errors.New("parameters are nil")
	}
	out, err := yaml.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("failed to marshal parameters: %w", err)
	}
	return string(out), nil
}

func decodeStrict(data []byte, out any) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
