package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"afropedia/api/internal/consensus"
	"afropedia/api/internal/workflow"
)

// LoadPolicy reads the consensus policy file. An empty path yields the
// default policy; keys missing from the file keep their defaults.
func LoadPolicy(path string) (consensus.Policy, error) {
	policy := consensus.DefaultPolicy()
	if path == "" {
		return policy, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return consensus.Policy{}, fmt.Errorf("read policy file: %w", err)
	}
	return ParsePolicy(raw)
}

func ParsePolicy(raw []byte) (consensus.Policy, error) {
	policy := consensus.DefaultPolicy()
	decoder := yaml.NewDecoder(bytes.NewReader(raw))
	decoder.KnownFields(true)
	if err := decoder.Decode(&policy); err != nil && !errors.Is(err, io.EOF) {
		return consensus.Policy{}, fmt.Errorf("decode policy: %w", err)
	}
	for _, criterion := range policy.RequiredCriteria {
		if _, err := workflow.ParseCriterion(string(criterion)); err != nil {
			return consensus.Policy{}, fmt.Errorf("policy requiredCriteria: %w", err)
		}
	}
	if err := policy.Validate(); err != nil {
		return consensus.Policy{}, fmt.Errorf("policy: %w", err)
	}
	return policy, nil
}
