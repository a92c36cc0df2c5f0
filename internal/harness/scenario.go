package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/ledgerunit/internal/ir"
	"github.com/roach88/ledgerunit/internal/ledger"
	"github.com/roach88/ledgerunit/internal/registry"
)

// Scenario is a harness session written as YAML: steps driving the facade,
// then assertions on balances and receipts.
//
//	name: hello-badge
//	description: only the badge holder may update protected state
//	steps:
//	  - create_user: admin
//	  - publish_package: {name: hello, fixture: hello}
//	  - call_function: {blueprint: Hello, function: instantiate}
//	    save: {component: "component:0", badge: "resource:0"}
//	  - call_method_auth: {component: $component, method: protected_update_state, badge: $badge, args: [42]}
//	assertions:
//	  - {type: balance, account: "@admin", resource: $badge, equals: "1"}
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Session pins the session ID for deterministic traces.
	// If empty, defaults to "test-session-default".
	Session string `yaml:"session,omitempty"`

	// SelectionPolicy overrides the harness default-selection policy.
	SelectionPolicy string `yaml:"selection_policy,omitempty"`

	// Steps run in order. Each sets exactly one action.
	Steps []Step `yaml:"steps"`

	// Assertions are evaluated after the last step.
	Assertions []Assertion `yaml:"assertions,omitempty"`

	// baseDir resolves publish_package file paths.
	baseDir string
}

// Step is one harness operation.
type Step struct {
	CreateUser     string           `yaml:"create_user,omitempty"`
	ActingAs       string           `yaml:"acting_as,omitempty"`
	PublishPackage *PublishStep     `yaml:"publish_package,omitempty"`
	UsingPackage   string           `yaml:"using_package,omitempty"`
	CallFunction   *CallStep        `yaml:"call_function,omitempty"`
	CallMethod     *CallStep        `yaml:"call_method,omitempty"`
	CallMethodAuth *CallStep        `yaml:"call_method_auth,omitempty"`
	CreateToken    *CreateTokenStep `yaml:"create_token,omitempty"`
	Transfer       *TransferStep    `yaml:"transfer,omitempty"`

	// Expect is the expected outcome of a transaction step:
	// "success" (default), "failure" or "rejected".
	Expect string `yaml:"expect,omitempty"`

	// ErrorCode, if set, must match the receipt's error code.
	ErrorCode string `yaml:"error_code,omitempty"`

	// Save binds variables to receipt values: "component:N", "resource:N"
	// or "output:N". Later steps refer to them as $name.
	Save map[string]string `yaml:"save,omitempty"`
}

// PublishStep publishes package code from exactly one source.
type PublishStep struct {
	Name    string `yaml:"name"`
	Code    string `yaml:"code,omitempty"`
	File    string `yaml:"file,omitempty"`
	Fixture string `yaml:"fixture,omitempty"`
}

// CallStep describes call_function, call_method and call_method_auth.
// Args are YAML values; "$var", "@user" and "XRD" resolve to addresses and
// {decimal: "1.5"} to a Decimal.
type CallStep struct {
	Package   string `yaml:"package,omitempty"`
	Blueprint string `yaml:"blueprint,omitempty"`
	Function  string `yaml:"function,omitempty"`
	Component string `yaml:"component,omitempty"`
	Method    string `yaml:"method,omitempty"`
	Badge     string `yaml:"badge,omitempty"`
	Args      []any  `yaml:"args,omitempty"`
}

// CreateTokenStep mints a token for the current user.
type CreateTokenStep struct {
	Supply   string            `yaml:"supply"`
	Metadata map[string]string `yaml:"metadata,omitempty"`
}

// TransferStep moves a resource from the current user to To.
type TransferStep struct {
	Amount   string `yaml:"amount"`
	Resource string `yaml:"resource"`
	To       string `yaml:"to"`
}

// Step action names, as spelled in YAML.
const (
	ActionCreateUser     = "create_user"
	ActionActingAs       = "acting_as"
	ActionPublishPackage = "publish_package"
	ActionUsingPackage   = "using_package"
	ActionCallFunction   = "call_function"
	ActionCallMethod     = "call_method"
	ActionCallMethodAuth = "call_method_auth"
	ActionCreateToken    = "create_token"
	ActionTransfer       = "transfer"
)

// Expected step outcomes.
const (
	ExpectSuccess  = "success"
	ExpectFailure  = "failure"
	ExpectRejected = "rejected"
)

// actions lists the actions a step sets.
func (s *Step) actions() []string {
	var out []string
	if s.CreateUser != "" {
		out = append(out, ActionCreateUser)
	}
	if s.ActingAs != "" {
		out = append(out, ActionActingAs)
	}
	if s.PublishPackage != nil {
		out = append(out, ActionPublishPackage)
	}
	if s.UsingPackage != "" {
		out = append(out, ActionUsingPackage)
	}
	if s.CallFunction != nil {
		out = append(out, ActionCallFunction)
	}
	if s.CallMethod != nil {
		out = append(out, ActionCallMethod)
	}
	if s.CallMethodAuth != nil {
		out = append(out, ActionCallMethodAuth)
	}
	if s.CreateToken != nil {
		out = append(out, ActionCreateToken)
	}
	if s.Transfer != nil {
		out = append(out, ActionTransfer)
	}
	return out
}

// Action returns the step's action name, or "" when it sets none or
// several.
func (s *Step) Action() string {
	if a := s.actions(); len(a) == 1 {
		return a[0]
	}
	return ""
}

// IsTransaction reports whether the step submits a transaction.
func (s *Step) IsTransaction() bool {
	switch s.Action() {
	case ActionCallFunction, ActionCallMethod, ActionCallMethodAuth, ActionCreateToken, ActionTransfer:
		return true
	}
	return false
}

// expectedStatus maps Expect to a receipt status.
func (s *Step) expectedStatus() ledger.Status {
	switch s.Expect {
	case ExpectFailure:
		return ledger.StatusCommittedFailure
	case ExpectRejected:
		return ledger.StatusRejected
	default:
		return ledger.StatusCommittedSuccess
	}
}

// Assertion checks final state.
type Assertion struct {
	// Type is one of balance, receipt_status, new_entities, user_count.
	Type string `yaml:"type"`

	// Account and Resource select a balance (balance).
	Account  string `yaml:"account,omitempty"`
	Resource string `yaml:"resource,omitempty"`

	// Equals is the expected decimal amount (balance).
	Equals string `yaml:"equals,omitempty"`

	// Mode picks the balance query: "first" (default, state walk), "sum"
	// (all vaults added) or "direct" (the ledger's account query).
	Mode string `yaml:"mode,omitempty"`

	// Step is the index of the step whose receipt is checked
	// (receipt_status, new_entities).
	Step int `yaml:"step,omitempty"`

	// Status and Code are the expected receipt status and error code
	// (receipt_status).
	Status string `yaml:"status,omitempty"`
	Code   string `yaml:"code,omitempty"`

	// Components and Resources are the expected numbers of new entities
	// (new_entities).
	Components *int `yaml:"components,omitempty"`
	Resources  *int `yaml:"resources,omitempty"`

	// Count is the expected number of users (user_count).
	Count int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertBalance       = "balance"
	AssertReceiptStatus = "receipt_status"
	AssertNewEntities   = "new_entities"
	AssertUserCount     = "user_count"
)

// Balance query modes.
const (
	BalanceFirst  = "first"
	BalanceSum    = "sum"
	BalanceDirect = "direct"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	s, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}
	s.baseDir = filepath.Dir(path)

	for i, step := range s.Steps {
		if p := step.PublishPackage; p != nil && p.File != "" {
			if _, err := os.Stat(s.resolvePath(p.File)); err != nil {
				return nil, fmt.Errorf("invalid scenario: steps[%d]: package file: %w", i, err)
			}
		}
	}
	return s, nil
}

// ParseScenario parses scenario YAML. Package file paths resolve against
// the working directory.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func (s *Scenario) resolvePath(p string) string {
	if filepath.IsAbs(p) || s.baseDir == "" {
		return p
	}
	return filepath.Join(s.baseDir, p)
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if _, err := registry.ParseSelectionPolicy(s.SelectionPolicy); err != nil {
		return err
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i := range s.Steps {
		if err := validateStep(i, &s.Steps[i]); err != nil {
			return err
		}
	}
	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i], len(s.Steps)); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(index int, s *Step) error {
	actions := s.actions()
	switch len(actions) {
	case 0:
		return fmt.Errorf("steps[%d]: no action set", index)
	case 1:
	default:
		return fmt.Errorf("steps[%d]: exactly one action allowed, got %v", index, actions)
	}

	switch s.Expect {
	case "", ExpectSuccess, ExpectFailure, ExpectRejected:
	default:
		return fmt.Errorf("steps[%d]: expect must be success, failure or rejected, got %q", index, s.Expect)
	}
	if !s.IsTransaction() && (s.Expect != "" || s.ErrorCode != "" || len(s.Save) > 0) {
		return fmt.Errorf("steps[%d]: expect, error_code and save apply only to transaction steps", index)
	}
	if s.ErrorCode != "" && s.Expect == "" {
		return fmt.Errorf("steps[%d]: error_code requires expect: failure or rejected", index)
	}
	for name, ref := range s.Save {
		if name == "" {
			return fmt.Errorf("steps[%d].save: variable name must not be empty", index)
		}
		if _, _, err := parseSaveRef(ref); err != nil {
			return fmt.Errorf("steps[%d].save.%s: %w", index, name, err)
		}
	}

	switch actions[0] {
	case ActionPublishPackage:
		p := s.PublishPackage
		if p.Name == "" {
			return fmt.Errorf("steps[%d].publish_package: name is required", index)
		}
		sources := 0
		for _, src := range []string{p.Code, p.File, p.Fixture} {
			if src != "" {
				sources++
			}
		}
		if sources != 1 {
			return fmt.Errorf("steps[%d].publish_package: exactly one of code, file or fixture is required", index)
		}
		if p.Fixture != "" {
			if _, ok := fixtureManifests[p.Fixture]; !ok {
				return fmt.Errorf("steps[%d].publish_package: unknown fixture %q", index, p.Fixture)
			}
		}
	case ActionCallFunction:
		if s.CallFunction.Blueprint == "" || s.CallFunction.Function == "" {
			return fmt.Errorf("steps[%d].call_function: blueprint and function are required", index)
		}
	case ActionCallMethod:
		if s.CallMethod.Component == "" || s.CallMethod.Method == "" {
			return fmt.Errorf("steps[%d].call_method: component and method are required", index)
		}
	case ActionCallMethodAuth:
		c := s.CallMethodAuth
		if c.Component == "" || c.Method == "" || c.Badge == "" {
			return fmt.Errorf("steps[%d].call_method_auth: component, method and badge are required", index)
		}
	case ActionCreateToken:
		if _, err := ir.NewDecimal(s.CreateToken.Supply); err != nil {
			return fmt.Errorf("steps[%d].create_token: %w", index, err)
		}
	case ActionTransfer:
		t := s.Transfer
		if t.Resource == "" || t.To == "" {
			return fmt.Errorf("steps[%d].transfer: resource and to are required", index)
		}
		if _, err := ir.NewDecimal(t.Amount); err != nil {
			return fmt.Errorf("steps[%d].transfer: %w", index, err)
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion, steps int) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertBalance:
		if a.Account == "" || a.Resource == "" {
			return fmt.Errorf("assertions[%d]: account and resource are required for balance", index)
		}
		if _, err := ir.NewDecimal(a.Equals); err != nil {
			return fmt.Errorf("assertions[%d]: equals: %w", index, err)
		}
		switch a.Mode {
		case "", BalanceFirst, BalanceSum, BalanceDirect:
		default:
			return fmt.Errorf("assertions[%d]: unknown balance mode %q", index, a.Mode)
		}
	case AssertReceiptStatus:
		if a.Status == "" {
			return fmt.Errorf("assertions[%d]: status is required for receipt_status", index)
		}
		if a.Step < 0 || a.Step >= steps {
			return fmt.Errorf("assertions[%d]: step %d out of range", index, a.Step)
		}
	case AssertNewEntities:
		if a.Components == nil && a.Resources == nil {
			return fmt.Errorf("assertions[%d]: components or resources is required for new_entities", index)
		}
		if a.Step < 0 || a.Step >= steps {
			return fmt.Errorf("assertions[%d]: step %d out of range", index, a.Step)
		}
	case AssertUserCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for user_count", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
