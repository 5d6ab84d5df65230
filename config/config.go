// Package config loads benchmark settings from a YAML or JSON file.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// File is the on-disk configuration. Every field is optional; zero values
// leave the command-line default in place.
type File struct {
	Operations        []string `json:"operations" yaml:"operations"`
	VMACounts         []int    `json:"vma_counts" yaml:"vma_counts"`
	MaxVMAs           int      `json:"max_vmas" yaml:"max_vmas"`
	Trials            int      `json:"trials" yaml:"trials"`
	BatchSize         int      `json:"batch_size" yaml:"batch_size"`
	Timer             string   `json:"timer" yaml:"timer"`
	IncludeUserCycles bool     `json:"include_user_cycles" yaml:"include_user_cycles"`
	ErrorMode         string   `json:"error_mode" yaml:"error_mode"`
	Protect           string   `json:"protect" yaml:"protect"`
	Advice            string   `json:"advice" yaml:"advice"`
	VerifyLayout      bool     `json:"verify_layout" yaml:"verify_layout"`
	Table             bool     `json:"table" yaml:"table"`
	MetricsFile       string   `json:"metrics_file" yaml:"metrics_file"`
}

// Load reads and decodes the file at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	return f, nil
}

// Parse decodes JSON or YAML, rejecting unknown fields. An empty document
// yields an empty File.
func Parse(data []byte) (*File, error) {
	var f File

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	if err := dec.Decode(&f); err == nil {
		return &f, nil
	}

	f = File{}

	ydec := yaml.NewDecoder(bytes.NewReader(data))
	ydec.KnownFields(true)

	if err := ydec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	return &f, nil
}
