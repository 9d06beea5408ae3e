package harness

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// SuiteResult summarizes a directory of scenarios.
type SuiteResult struct {
	Total    int               `json:"total"`
	Passed   int               `json:"passed"`
	Failed   int               `json:"failed"`
	Failures []ScenarioFailure `json:"failures,omitempty"`
}

// ScenarioFailure represents a scenario that could not be loaded, could not
// run, or failed its assertions.
type ScenarioFailure struct {
	Scenario string `json:"scenario"`
	Path     string `json:"path"`
	Error    string `json:"error"`
}

// OK reports whether every scenario passed.
func (r *SuiteResult) OK() bool { return r.Failed == 0 }

// ScenarioFiles lists the *.yaml and *.yml files under dir in lexical order.
func ScenarioFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read scenario dir: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		if ext == ".yaml" || ext == ".yml" {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// RunDir loads and runs every scenario under dir. When filter is non-empty
// only scenarios whose name contains it are run.
//
// For each scenario file:
// 1. Load and validate it
// 2. Run it against fresh fakes
// 3. Collect the outcome
func RunDir(dir, filter string) (*SuiteResult, error) {
	paths, err := ScenarioFiles(dir)
	if err != nil {
		return nil, err
	}

	result := &SuiteResult{}
	for _, path := range paths {
		scenario, err := LoadScenario(path)
		if err != nil {
			result.Total++
			result.fail("", path, fmt.Sprintf("failed to load scenario: %v", err))
			continue
		}
		if filter != "" && !strings.Contains(scenario.Name, filter) {
			continue
		}
		result.Total++

		run, err := Run(scenario)
		if err != nil {
			result.fail(scenario.Name, path, fmt.Sprintf("scenario execution failed: %v", err))
			continue
		}
		if !run.Pass {
			result.fail(scenario.Name, path, fmt.Sprintf("scenario assertions failed: %v", run.Errors))
			continue
		}
		result.Passed++
		slog.Debug("scenario passed", "scenario", scenario.Name)
	}
	return result, nil
}

func (r *SuiteResult) fail(name, path, msg string) {
	r.Failed++
	r.Failures = append(r.Failures, ScenarioFailure{Scenario: name, Path: path, Error: msg})
}
