package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/ledgerunit/internal/ir"
	"github.com/roach88/ledgerunit/internal/ledger"
)

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
			fmt.Fprintf(&buf, "  [%d] %s", event.Step, event.Action)
			if event.Target != "" {
				fmt.Fprintf(&buf, " %s", event.Target)
			}
			if event.Status != "" {
				fmt.Fprintf(&buf, " -> %s", event.Status)
			}
			if event.Code != "" {
				fmt.Fprintf(&buf, " (%s)", event.Code)
			}
			buf.WriteByte('\n')
		}
	}

	return buf.String()
}

// evaluateAssertions checks every scenario assertion against the harness
// state. Returns a message per failed assertion.
func (r *runner) evaluateAssertions() []string {
	var errors []string

	for i, assertion := range r.scenario.Assertions {
		var err error

		switch assertion.Type {
		case AssertBalance:
			err = r.assertBalance(assertion)
		case AssertReceiptStatus:
			err = r.assertReceiptStatus(assertion)
		case AssertNewEntities:
			err = r.assertNewEntities(assertion)
		case AssertUserCount:
			err = r.assertUserCount(assertion)
		default:
			err = fmt.Errorf("unknown assertion type %q", assertion.Type)
		}

		if err != nil {
			errors = append(errors, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}

	return errors
}

// assertBalance compares an account or component balance with Equals.
func (r *runner) assertBalance(a Assertion) error {
	holder, err := r.address(a.Account)
	if err != nil {
		return err
	}
	resource, err := r.address(a.Resource)
	if err != nil {
		return err
	}
	want, err := ir.NewDecimal(a.Equals)
	if err != nil {
		return err
	}

	var got ir.Decimal
	switch a.Mode {
	case BalanceSum:
		got = r.h.SumAllBalances(holder)[resource]
	case BalanceDirect:
		got = r.h.AccountBalance(holder, resource)
	default:
		got = r.h.GetBalance(holder, resource)
	}

	if got.Cmp(want) != 0 {
		return &AssertionError{
			Type:     AssertBalance,
			Expected: fmt.Sprintf("%s holds %s of %s", a.Account, want, a.Resource),
			Actual:   fmt.Sprintf("%s holds %s", a.Account, got),
			Trace:    r.result.Trace,
		}
	}
	return nil
}

// assertReceiptStatus checks the status and error code of a step's receipt.
// Status accepts a receipt status name or a step expectation keyword.
func (r *runner) assertReceiptStatus(a Assertion) error {
	receipt, err := r.receipt(a.Step)
	if err != nil {
		return err
	}

	want := ledger.Status(a.Status)
	switch a.Status {
	case ExpectSuccess:
		want = ledger.StatusCommittedSuccess
	case ExpectFailure:
		want = ledger.StatusCommittedFailure
	case ExpectRejected:
		want = ledger.StatusRejected
	}

	var code string
	if receipt.Error != nil {
		code = string(receipt.Error.Code)
	}

	if receipt.Status != want || (a.Code != "" && code != a.Code) {
		expected := string(want)
		if a.Code != "" {
			expected += " " + a.Code
		}
		actual := string(receipt.Status)
		if code != "" {
			actual += " " + code
		}
		return &AssertionError{
			Type:     AssertReceiptStatus,
			Expected: fmt.Sprintf("step %d: %s", a.Step, expected),
			Actual:   fmt.Sprintf("step %d: %s", a.Step, actual),
			Trace:    r.result.Trace,
		}
	}
	return nil
}

// assertNewEntities checks how many components and resources a step
// created.
func (r *runner) assertNewEntities(a Assertion) error {
	receipt, err := r.receipt(a.Step)
	if err != nil {
		return err
	}

	if a.Components != nil && len(receipt.NewComponents) != *a.Components {
		return &AssertionError{
			Type:     AssertNewEntities,
			Expected: fmt.Sprintf("step %d: %d new components", a.Step, *a.Components),
			Actual:   fmt.Sprintf("step %d: %d new components", a.Step, len(receipt.NewComponents)),
			Trace:    r.result.Trace,
		}
	}
	if a.Resources != nil && len(receipt.NewResources) != *a.Resources {
		return &AssertionError{
			Type:     AssertNewEntities,
			Expected: fmt.Sprintf("step %d: %d new resources", a.Step, *a.Resources),
			Actual:   fmt.Sprintf("step %d: %d new resources", a.Step, len(receipt.NewResources)),
			Trace:    r.result.Trace,
		}
	}
	return nil
}

func (r *runner) assertUserCount(a Assertion) error {
	if got := r.h.UserCount(); got != a.Count {
		return &AssertionError{
			Type:     AssertUserCount,
			Expected: fmt.Sprintf("%d users", a.Count),
			Actual:   fmt.Sprintf("%d users", got),
			Trace:    r.result.Trace,
		}
	}
	return nil
}

func (r *runner) receipt(step int) (*ledger.Receipt, error) {
	receipt, ok := r.receipts[step]
	if !ok {
		return nil, fmt.Errorf("step %d submitted no transaction", step)
	}
	return receipt, nil
}
