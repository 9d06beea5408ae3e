package harness

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/iamp15/elpatio-appCajeros/internal/journal"
)

// validIdentifier matches valid SQL identifiers (column names).
// Only allows alphanumeric and underscore, must start with letter or underscore.
// This prevents SQL injection via identifier interpolation.
var validIdentifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  %s\n", event)
		}
	}
	return buf.String()
}

// AssertionContext provides context for evaluating assertions.
type AssertionContext struct {
	Journal *journal.Journal
	Ctx     context.Context
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// The actx parameter provides journal access for journal_count assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertSentCount:
			err = assertSentCount(result, assertion)
		case AssertSentContains:
			err = assertSentContains(result, assertion)
		case AssertSentOrder:
			err = assertSentOrder(result, assertion)
		case AssertAlertContains:
			err = assertAlertContains(result, assertion)
		case AssertNoticeCount:
			err = assertNoticeCount(result, assertion)
		case AssertFinalState:
			err = assertFinalState(result, assertion)
		case AssertTransportOpens:
			if result.Opens != assertion.Count {
				err = &AssertionError{
					Type:     AssertTransportOpens,
					Expected: fmt.Sprintf("%d connection attempts", assertion.Count),
					Actual:   fmt.Sprintf("%d connection attempts", result.Opens),
				}
			}
		case AssertJournalCount:
			if actx == nil || actx.Journal == nil {
				err = fmt.Errorf("assertion[%d]: journal_count requires a journal", i)
			} else {
				err = assertJournalCount(actx.Ctx, actx.Journal, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}

// assertSentCount checks that frames of a kind were sent exactly Count times.
func assertSentCount(result *Result, assertion Assertion) error {
	count := 0
	for _, f := range result.Sent {
		if string(f.Type) == assertion.Kind {
			count++
		}
	}
	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertSentCount,
			Expected: fmt.Sprintf("%d frames of %s", assertion.Count, assertion.Kind),
			Actual:   fmt.Sprintf("%d frames", count),
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertSentContains checks that a frame of the kind was sent whose payload
// contains the expected fields (subset match).
func assertSentContains(result *Result, assertion Assertion) error {
	expected, err := normalize(assertion.Payload)
	if err != nil {
		return fmt.Errorf("sent_contains: %w", err)
	}
	for _, f := range result.Sent {
		if string(f.Type) != assertion.Kind {
			continue
		}
		var actual any
		if err := json.Unmarshal(f.Payload, &actual); err != nil {
			continue
		}
		if containsSubset(actual, expected) {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertSentContains,
		Expected: fmt.Sprintf("frame %s with payload %v", assertion.Kind, assertion.Payload),
		Actual:   "not sent",
		Trace:    result.Trace,
	}
}

// assertSentOrder checks that kinds were first sent in the given order.
// Frames don't need to be consecutive (intervening frames are allowed).
func assertSentOrder(result *Result, assertion Assertion) error {
	positions := make(map[string]int)
	for i, f := range result.Sent {
		kind := string(f.Type)
		if positions[kind] == 0 {
			positions[kind] = i + 1 // 1-indexed for readability
		}
	}

	for _, kind := range assertion.Kinds {
		if positions[kind] == 0 {
			return &AssertionError{
				Type:     AssertSentOrder,
				Expected: fmt.Sprintf("all kinds sent: %v", assertion.Kinds),
				Actual:   fmt.Sprintf("missing kind: %s", kind),
				Trace:    result.Trace,
			}
		}
	}

	for i := 1; i < len(assertion.Kinds); i++ {
		prev, curr := assertion.Kinds[i-1], assertion.Kinds[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertSentOrder,
				Expected: fmt.Sprintf("kinds in order: %v", assertion.Kinds),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: result.Trace,
			}
		}
	}
	return nil
}

func assertAlertContains(result *Result, assertion Assertion) error {
	var seen []string
	for _, e := range result.Events(EventAlert) {
		if e.Text == assertion.Text {
			return nil
		}
		seen = append(seen, e.Text)
	}
	return &AssertionError{
		Type:     AssertAlertContains,
		Expected: fmt.Sprintf("alert %q", assertion.Text),
		Actual:   fmt.Sprintf("alerts %q", seen),
	}
}

func assertNoticeCount(result *Result, assertion Assertion) error {
	count := 0
	for _, e := range result.Events(EventNotice) {
		if e.Name == assertion.Level {
			count++
		}
	}
	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertNoticeCount,
			Expected: fmt.Sprintf("%d %s notices", assertion.Count, assertion.Level),
			Actual:   fmt.Sprintf("%d notices", count),
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertFinalState checks the client snapshot (subset semantics - only
// fields in Expect are checked).
func assertFinalState(result *Result, assertion Assertion) error {
	keys := make([]string, 0, len(assertion.Expect))
	for k := range assertion.Expect {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		actual, exists := result.State[key]
		if !exists {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("field %q to exist", key),
				Actual:   fmt.Sprintf("fields: %v", stateKeys(result.State)),
			}
		}
		expected, err := normalize(assertion.Expect[key])
		if err != nil {
			return fmt.Errorf("final_state %s: %w", key, err)
		}
		if !reflect.DeepEqual(expected, actual) {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("field %q = %v", key, expected),
				Actual:   fmt.Sprintf("field %q = %v", key, actual),
			}
		}
	}
	return nil
}

// assertJournalCount counts journal rows matching Where with parameterized
// SQL. Column names are validated against a whitelist pattern to prevent SQL
// injection via identifier interpolation.
func assertJournalCount(ctx context.Context, j *journal.Journal, assertion Assertion) error {
	whereSQL, whereArgs, err := buildWhereClause(assertion.Where)
	if err != nil {
		return err
	}

	query := "SELECT COUNT(*) FROM entries"
	if whereSQL != "" {
		query += " WHERE " + whereSQL
	}

	rows, err := j.Query(ctx, query, whereArgs...)
	if err != nil {
		return &AssertionError{
			Type:     AssertJournalCount,
			Expected: "query journal",
			Actual:   fmt.Sprintf("query error: %v", err),
		}
	}
	defer rows.Close()

	var count int
	if rows.Next() {
		if err := rows.Scan(&count); err != nil {
			return fmt.Errorf("scan count: %w", err)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("read count: %w", err)
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertJournalCount,
			Expected: fmt.Sprintf("%d entries where %s", assertion.Count, formatWhereClause(assertion.Where)),
			Actual:   fmt.Sprintf("%d entries", count),
		}
	}
	return nil
}

// buildWhereClause constructs parameterized WHERE clause from where.
// Returns SQL fragment, arguments slice, and error. Keys are sorted for determinism.
func buildWhereClause(where map[string]any) (string, []any, error) {
	if len(where) == 0 {
		return "", nil, nil
	}

	keys := make([]string, 0, len(where))
	for k := range where {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	clauses := make([]string, 0, len(keys))
	args := make([]any, 0, len(keys))
	for _, key := range keys {
		if !validIdentifier.MatchString(key) {
			return "", nil, fmt.Errorf("invalid column name %q in where clause: must match pattern %s", key, validIdentifier.String())
		}
		clauses = append(clauses, fmt.Sprintf("%s = ?", key))
		args = append(args, toSQLValue(where[key]))
	}
	return strings.Join(clauses, " AND "), args, nil
}

// toSQLValue converts a YAML-parsed value to a SQL-compatible value.
func toSQLValue(v any) any {
	switch val := v.(type) {
	case string, int, int64, bool:
		return val
	default:
		return fmt.Sprintf("%v", val)
	}
}

// formatWhereClause creates a human-readable description of WHERE conditions.
func formatWhereClause(where map[string]any) string {
	if len(where) == 0 {
		return "(no conditions)"
	}

	keys := make([]string, 0, len(where))
	for k := range where {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, where[k]))
	}
	return strings.Join(parts, " AND ")
}

// normalize round-trips v through JSON so YAML-parsed and wire-decoded values
// compare equal (all numbers become float64).
func normalize(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// containsSubset reports whether actual contains every field of expected.
// Nested objects are matched the same way; other values must be equal.
func containsSubset(actual, expected any) bool {
	em, ok := expected.(map[string]any)
	if !ok {
		return reflect.DeepEqual(actual, expected)
	}
	am, ok := actual.(map[string]any)
	if !ok {
		return false
	}
	for key, ev := range em {
		av, exists := am[key]
		if !exists || !containsSubset(av, ev) {
			return false
		}
	}
	return true
}

func stateKeys(state map[string]any) []string {
	keys := make([]string, 0, len(state))
	for k := range state {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
