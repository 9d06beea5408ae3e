package harness

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Scenario drives one cashier client through a scripted exchange with a fake
// realtime service and backend, then checks what it sent and how it ended.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Options configures the fakes.
	Options Options `yaml:"options,omitempty"`

	// Flow is executed in order; the loop is settled after every step.
	Flow []FlowStep `yaml:"flow"`

	// Assertions validate the final trace and state.
	Assertions []Assertion `yaml:"assertions"`
}

// Options configures the fake collaborators.
type Options struct {
	// ManualConnect leaves connection attempts pending until an accept step.
	ManualConnect bool `yaml:"manual_connect,omitempty"`
	// Minimum is the minimum deposit served by the backend, in display
	// units. Defaults to "10".
	Minimum string `yaml:"minimum,omitempty"`
	// MinimumUnavailable makes the minimum deposit endpoint fail.
	MinimumUnavailable bool `yaml:"minimum_unavailable,omitempty"`
	// UploadFails makes evidence uploads fail.
	UploadFails bool `yaml:"upload_fails,omitempty"`
	// Cashier is returned by the login endpoint.
	Cashier string `yaml:"cashier,omitempty"`
}

// FlowStep is one scripted input. Which fields apply depends on Step.
type FlowStep struct {
	Step string `yaml:"step"`

	Email    string `yaml:"email,omitempty"`
	Password string `yaml:"password,omitempty"`
	Token    string `yaml:"token,omitempty"`

	// Kind and Payload describe an inbound frame (deliver, ack).
	Kind    string         `yaml:"kind,omitempty"`
	Payload map[string]any `yaml:"payload,omitempty"`

	ID       string `yaml:"id,omitempty"`
	Amount   string `yaml:"amount,omitempty"`
	Reason   string `yaml:"reason,omitempty"`
	Evidence string `yaml:"evidence,omitempty"`
	Duration string `yaml:"duration,omitempty"`
}

// Step names.
const (
	StepLogin       = "login"
	StepResume      = "resume"
	StepAccept      = "accept"
	StepDeliver     = "deliver"
	StepAck         = "ack"
	StepDrop        = "drop"
	StepAdvance     = "advance"
	StepRefresh     = "refresh"
	StepRevokeToken = "revoke_token"
	StepObserved    = "observed"
	StepAdjust      = "adjust"
	StepConfirm     = "confirm"
	StepReject      = "reject"
	StepRefer       = "refer"
	StepLogout      = "logout"
)

// Assertion validates the trace or the final client state.
type Assertion struct {
	// Type selects the check:
	// - "sent_count": frames of Kind sent exactly Count times
	// - "sent_contains": a frame of Kind whose payload contains Payload
	// - "sent_order": the first frame of each of Kinds was sent in order
	// - "alert_contains": an alert equal to Text was shown
	// - "notice_count": Count notices of Level were raised
	// - "final_state": the client snapshot matches Expect
	// - "transport_opens": the transport was opened Count times
	// - "journal_count": Count journal rows match Where
	Type string `yaml:"type"`

	Kind    string         `yaml:"kind,omitempty"`
	Kinds   []string       `yaml:"kinds,omitempty"`
	Payload map[string]any `yaml:"payload,omitempty"`
	Text    string         `yaml:"text,omitempty"`
	Level   string         `yaml:"level,omitempty"`
	Count   int            `yaml:"count,omitempty"`
	Expect  map[string]any `yaml:"expect,omitempty"`
	Where   map[string]any `yaml:"where,omitempty"`
}

// Assertion type constants.
const (
	AssertSentCount      = "sent_count"
	AssertSentContains   = "sent_contains"
	AssertSentOrder      = "sent_order"
	AssertAlertContains  = "alert_contains"
	AssertNoticeCount    = "notice_count"
	AssertFinalState     = "final_state"
	AssertTransportOpens = "transport_opens"
	AssertJournalCount   = "journal_count"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Reject unknown fields (catches typos like "assertion:" vs "assertions:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, step := range s.Flow {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}
	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(index int, st *FlowStep) error {
	switch st.Step {
	case "":
		return fmt.Errorf("flow[%d]: step is required", index)
	case StepLogin, StepAccept, StepRefresh, StepRevokeToken, StepLogout:
	case StepResume:
		if st.Token == "" {
			return fmt.Errorf("flow[%d]: token is required for resume", index)
		}
	case StepDeliver, StepAck:
		if st.Kind == "" {
			return fmt.Errorf("flow[%d]: kind is required for %s", index, st.Step)
		}
	case StepDrop:
		if st.Reason == "" {
			return fmt.Errorf("flow[%d]: reason is required for drop", index)
		}
	case StepAdvance:
		if _, err := time.ParseDuration(st.Duration); err != nil {
			return fmt.Errorf("flow[%d]: invalid duration %q: %w", index, st.Duration, err)
		}
	case StepObserved, StepAdjust:
		if st.ID == "" || st.Amount == "" {
			return fmt.Errorf("flow[%d]: id and amount are required for %s", index, st.Step)
		}
	case StepConfirm, StepReject, StepRefer:
		if st.ID == "" {
			return fmt.Errorf("flow[%d]: id is required for %s", index, st.Step)
		}
	default:
		return fmt.Errorf("flow[%d]: unknown step %q", index, st.Step)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertSentCount, AssertSentContains:
		if a.Kind == "" {
			return fmt.Errorf("assertions[%d]: kind is required for %s", index, a.Type)
		}
	case AssertSentOrder:
		if len(a.Kinds) == 0 {
			return fmt.Errorf("assertions[%d]: kinds list is required for sent_order", index)
		}
	case AssertAlertContains:
		if a.Text == "" {
			return fmt.Errorf("assertions[%d]: text is required for alert_contains", index)
		}
	case AssertNoticeCount:
		if a.Level == "" {
			return fmt.Errorf("assertions[%d]: level is required for notice_count", index)
		}
	case AssertFinalState:
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	case AssertTransportOpens, AssertJournalCount:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	if a.Count < 0 {
		return fmt.Errorf("assertions[%d]: count must be non-negative", index)
	}
	return nil
}
