package harness

import (
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// RenderTrace renders a trace as golden text: a header line naming the
// scenario, then one line per event.
func RenderTrace(scenarioName string, trace []TraceEvent) []byte {
	var buf strings.Builder
	buf.WriteString("scenario: ")
	buf.WriteString(scenarioName)
	buf.WriteByte('\n')
	for _, event := range trace {
		buf.WriteString(event.String())
		buf.WriteByte('\n')
	}
	return []byte(buf.String())
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if trace doesn't match golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	AssertGolden(t, scenario.Name, result)
	return result, nil
}

// AssertGolden compares the given result's trace against a golden file
// without re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, RenderTrace(scenarioName, result.Trace))
}
