// Package scenario runs yaml-described command sequences against an AUT and
// reports which expectations held.
package scenario

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Expectation is the outcome a step must produce.
type Expectation string

const (
	ExpectTrue  Expectation = "true"
	ExpectFalse Expectation = "false"
	ExpectError Expectation = "error"
	ExpectText  Expectation = "text"
)

// WaitCommand is executed locally instead of being sent to the agent.
const WaitCommand = "waitSeconds"

var ErrInvalidScenario = errors.New("invalid scenario")

// Step is one agent command.
type Step struct {
	Command string      `yaml:"command"`
	Element string      `yaml:"element,omitempty"` // Element key resolved through the element list
	Args    []string    `yaml:"args,omitempty"`
	Expect  Expectation `yaml:"expect,omitempty"` // Defaults to true
	Text    string      `yaml:"text,omitempty"`   // Expected response for expect: text
}

// Scenario is a named list of steps run between one start and one teardown.
type Scenario struct {
	Name       string `yaml:"name"`
	TestName   string `yaml:"testName,omitempty"`
	Executable string `yaml:"executable,omitempty"`
	Elements   string `yaml:"elements,omitempty"` // Element list file, relative to the scenario
	Steps      []Step `yaml:"steps"`
}

// Load reads and validates a scenario file. Relative element list paths are
// made relative to the scenario's directory.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario %s: %w", path, err)
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}
	if sc.Elements != "" && !filepath.IsAbs(sc.Elements) {
		sc.Elements = filepath.Join(filepath.Dir(path), sc.Elements)
	}
	if err := sc.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &sc, nil
}

// Validate fills in default expectations and rejects malformed steps.
func (sc *Scenario) Validate() error {
	if sc.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidScenario)
	}
	if len(sc.Steps) == 0 {
		return fmt.Errorf("%w: no steps", ErrInvalidScenario)
	}
	for i := range sc.Steps {
		st := &sc.Steps[i]
		if st.Command == "" {
			return fmt.Errorf("%w: step %d has no command", ErrInvalidScenario, i+1)
		}
		if st.Expect == "" {
			st.Expect = ExpectTrue
		}
		switch st.Expect {
		case ExpectTrue, ExpectFalse, ExpectError, ExpectText:
		default:
			return fmt.Errorf("%w: step %d: unknown expectation %q", ErrInvalidScenario, i+1, st.Expect)
		}
		if st.Command == WaitCommand && len(st.Args) != 1 {
			return fmt.Errorf("%w: step %d: %s takes exactly one argument", ErrInvalidScenario, i+1, WaitCommand)
		}
	}
	return nil
}

// EffectiveTestName is the name sent to the agent for this scenario.
func (sc *Scenario) EffectiveTestName() string {
	if sc.TestName != "" {
		return sc.TestName
	}
	return sc.Name
}
