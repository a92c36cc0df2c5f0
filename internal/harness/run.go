package harness

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/roach88/ledgerunit/internal/ir"
	"github.com/roach88/ledgerunit/internal/ledger"
	"github.com/roach88/ledgerunit/internal/registry"
	"github.com/roach88/ledgerunit/internal/testutil"
)

// fixtureManifests are the packages publish_package can name as fixture.
var fixtureManifests = map[string]string{
	"hello":    testutil.HelloManifest,
	"treasury": testutil.TreasuryManifest,
}

// FixtureNames returns the fixture packages scenarios may publish.
func FixtureNames() []string {
	names := make([]string, 0, len(fixtureManifests))
	for name := range fixtureManifests {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Save reference kinds.
const (
	saveComponent = "component"
	saveResource  = "resource"
	saveOutput    = "output"
)

func parseSaveRef(ref string) (string, int, error) {
	kind, idx, ok := strings.Cut(ref, ":")
	if !ok {
		return "", 0, fmt.Errorf("reference %q: want kind:index", ref)
	}
	switch kind {
	case saveComponent, saveResource, saveOutput:
	default:
		return "", 0, fmt.Errorf("reference %q: unknown kind %q", ref, kind)
	}
	n, err := strconv.Atoi(idx)
	if err != nil || n < 0 {
		return "", 0, fmt.Errorf("reference %q: bad index %q", ref, idx)
	}
	return kind, n, nil
}

// runner executes one scenario against one harness.
type runner struct {
	h        *Harness
	scenario *Scenario
	result   *Result
	vars     map[string]ir.IRValue
	receipts map[int]*ledger.Receipt
}

// Run executes a scenario in a fresh ledger and returns the result. The
// ledger lives in memory unless WithDatabase names a file.
//
// The fixture blueprints are registered unless opts supply others. The
// session ID comes from the scenario, so traces are reproducible.
//
// Expectation and assertion failures are reported in the result. Usage
// errors (an unknown user or variable, a package that does not publish)
// stop the run and are returned as an error.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	policy, err := registry.ParseSelectionPolicy(scenario.SelectionPolicy)
	if err != nil {
		return nil, err
	}
	all := append([]Option{WithBlueprints(testutil.Blueprints())}, opts...)
	all = append(all, WithSessionGenerator(testutil.NewFixedSessionGenerator(scenario.Session)))
	if scenario.SelectionPolicy != "" {
		all = append(all, WithSelectionPolicy(policy))
	}

	tb := NewAbortTB()
	defer tb.Close()

	var h *Harness
	if err := Catch(func() { h = NewInMemory(tb, all...) }); err != nil {
		return nil, fmt.Errorf("failed to create harness: %w", err)
	}

	r := &runner{
		h:        h,
		scenario: scenario,
		result:   NewResult(),
		vars:     make(map[string]ir.IRValue),
		receipts: make(map[int]*ledger.Receipt),
	}
	r.result.Session = h.SessionID()

	for i := range scenario.Steps {
		step := &scenario.Steps[i]
		var stepErr error
		if err := Catch(func() { stepErr = r.runStep(i, step) }); err != nil {
			stepErr = err
		}
		if stepErr != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i, step.Action(), stepErr)
		}
	}

	var failures []string
	if err := Catch(func() { failures = r.evaluateAssertions() }); err != nil {
		return nil, fmt.Errorf("failed to evaluate assertions: %w", err)
	}
	for _, msg := range failures {
		r.result.AddError(msg)
	}

	h.logger.Info("scenario finished", "scenario", scenario.Name, "pass", r.result.Pass, "errors", len(r.result.Errors))
	return r.result, nil
}

func (r *runner) runStep(i int, step *Step) error {
	ev := TraceEvent{Step: i, Action: step.Action()}
	var receipt *ledger.Receipt

	switch ev.Action {
	case ActionCreateUser:
		ev.Target = r.h.CreateUser(step.CreateUser).Name

	case ActionActingAs:
		r.h.ActingAs(step.ActingAs)
		ev.Target = step.ActingAs

	case ActionPublishPackage:
		code, err := r.packageCode(step.PublishPackage)
		if err != nil {
			return err
		}
		r.h.PublishPackage(step.PublishPackage.Name, code)
		ev.Target = step.PublishPackage.Name

	case ActionUsingPackage:
		r.h.UsingPackage(step.UsingPackage)
		ev.Target = step.UsingPackage

	case ActionCallFunction:
		c := step.CallFunction
		args, err := r.args(c.Args)
		if err != nil {
			return err
		}
		if c.Package != "" {
			receipt = r.h.CallFunctionIn(c.Package, c.Blueprint, c.Function, args...)
		} else {
			receipt = r.h.CallFunction(c.Blueprint, c.Function, args...)
		}
		ev.Target = c.Blueprint + "::" + c.Function

	case ActionCallMethod:
		c := step.CallMethod
		component, err := r.address(c.Component)
		if err != nil {
			return err
		}
		args, err := r.args(c.Args)
		if err != nil {
			return err
		}
		receipt = r.h.CallMethod(component, c.Method, args...)
		ev.Target = c.Method

	case ActionCallMethodAuth:
		c := step.CallMethodAuth
		component, err := r.address(c.Component)
		if err != nil {
			return err
		}
		badge, err := r.address(c.Badge)
		if err != nil {
			return err
		}
		args, err := r.args(c.Args)
		if err != nil {
			return err
		}
		receipt = r.h.CallMethodWithAuth(component, c.Method, badge, args...)
		ev.Target = c.Method

	case ActionCreateToken:
		supply, err := ir.NewDecimal(step.CreateToken.Supply)
		if err != nil {
			return err
		}
		receipt = r.h.CreateToken(supply, step.CreateToken.Metadata)
		ev.Target = supply.String()

	case ActionTransfer:
		t := step.Transfer
		amount, err := ir.NewDecimal(t.Amount)
		if err != nil {
			return err
		}
		resource, err := r.address(t.Resource)
		if err != nil {
			return err
		}
		recipient := r.h.GetUser(strings.TrimPrefix(t.To, "@"))
		receipt = r.h.TransferResource(amount, resource, recipient)
		ev.Target = recipient.Name

	default:
		return fmt.Errorf("no single action set")
	}

	if receipt != nil {
		r.recordReceipt(i, step, receipt, &ev)
	}
	r.result.AddTrace(ev)
	return nil
}

func (r *runner) recordReceipt(i int, step *Step, receipt *ledger.Receipt, ev *TraceEvent) {
	r.receipts[i] = receipt
	ev.Status = string(receipt.Status)
	ev.Seq = receipt.Seq
	ev.NewComponents = len(receipt.NewComponents)
	ev.NewResources = len(receipt.NewResources)
	if receipt.Error != nil {
		ev.Code = string(receipt.Error.Code)
	}

	if want := step.expectedStatus(); receipt.Status != want {
		r.result.AddError(fmt.Sprintf("steps[%d] %s: expected %s, got %s", i, ev.Action, want, receipt))
	}
	if step.ErrorCode != "" && ev.Code != step.ErrorCode {
		r.result.AddError(fmt.Sprintf("steps[%d] %s: expected error code %s, got %q", i, ev.Action, step.ErrorCode, ev.Code))
	}

	names := make([]string, 0, len(step.Save))
	for name := range step.Save {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		v, err := saveValue(receipt, step.Save[name])
		if err != nil {
			r.result.AddError(fmt.Sprintf("steps[%d].save.%s: %v", i, name, err))
			continue
		}
		r.vars[name] = v
		r.result.Vars[name] = displayValue(v)
	}
}

func saveValue(receipt *ledger.Receipt, ref string) (ir.IRValue, error) {
	kind, n, err := parseSaveRef(ref)
	if err != nil {
		return nil, err
	}
	switch kind {
	case saveComponent:
		if n >= len(receipt.NewComponents) {
			return nil, fmt.Errorf("receipt has %d new components", len(receipt.NewComponents))
		}
		return receipt.NewComponents[n], nil
	case saveResource:
		if n >= len(receipt.NewResources) {
			return nil, fmt.Errorf("receipt has %d new resources", len(receipt.NewResources))
		}
		return receipt.NewResources[n], nil
	default:
		return receipt.Output(n)
	}
}

func displayValue(v ir.IRValue) string {
	switch val := v.(type) {
	case ir.Address:
		return string(val)
	case ir.IRString:
		return string(val)
	case ir.IRVault:
		return string(val)
	case ir.Decimal:
		return val.String()
	}
	data, err := ir.MarshalIRValue(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

func (r *runner) packageCode(p *PublishStep) ([]byte, error) {
	switch {
	case p.Code != "":
		return []byte(p.Code), nil
	case p.File != "":
		code, err := os.ReadFile(r.scenario.resolvePath(p.File))
		if err != nil {
			return nil, fmt.Errorf("read package file: %w", err)
		}
		return code, nil
	default:
		code, ok := fixtureManifests[p.Fixture]
		if !ok {
			return nil, fmt.Errorf("unknown fixture %q", p.Fixture)
		}
		return []byte(code), nil
	}
}

// address resolves "$var", "@user", "XRD" or a literal address.
func (r *runner) address(ref string) (ir.Address, error) {
	v, err := r.reference(ref)
	if err != nil {
		return "", err
	}
	addr, ok := v.(ir.Address)
	if !ok {
		return "", fmt.Errorf("%s is a %T, not an address", ref, v)
	}
	return addr, nil
}

func (r *runner) reference(ref string) (ir.IRValue, error) {
	switch {
	case strings.HasPrefix(ref, "$"):
		v, ok := r.vars[ref[1:]]
		if !ok {
			return nil, fmt.Errorf("undefined variable %s", ref)
		}
		return v, nil
	case strings.HasPrefix(ref, "@"):
		return r.h.GetUser(ref[1:]).Account, nil
	case ref == "XRD":
		return ir.NativeToken, nil
	default:
		return ir.ParseAddress(ref)
	}
}

func (r *runner) args(raw []any) ([]ir.IRValue, error) {
	out := make([]ir.IRValue, len(raw))
	for i, v := range raw {
		irv, err := r.convert(v)
		if err != nil {
			return nil, fmt.Errorf("args[%d]: %w", i, err)
		}
		out[i] = irv
	}
	return out, nil
}

// convert turns a YAML-parsed value into an ir value.
func (r *runner) convert(val any) (ir.IRValue, error) {
	switch v := val.(type) {
	case nil:
		return ir.IRNull{}, nil
	case string:
		if v == "XRD" || strings.HasPrefix(v, "$") || strings.HasPrefix(v, "@") {
			return r.reference(v)
		}
		return ir.IRString(v), nil
	case int:
		return ir.IRInt(int64(v)), nil
	case int64:
		return ir.IRInt(v), nil
	case float64:
		// Floats are forbidden; accept integral values only.
		if v == float64(int64(v)) {
			return ir.IRInt(int64(v)), nil
		}
		return nil, fmt.Errorf("floats are forbidden, use {decimal: \"%v\"}", v)
	case bool:
		return ir.IRBool(v), nil
	case []any:
		arr := make(ir.IRArray, len(v))
		for i, elem := range v {
			irElem, err := r.convert(elem)
			if err != nil {
				return nil, fmt.Errorf("array[%d]: %w", i, err)
			}
			arr[i] = irElem
		}
		return arr, nil
	case map[string]any:
		if d, ok := v["decimal"]; ok && len(v) == 1 {
			return ir.NewDecimal(fmt.Sprint(d))
		}
		obj := make(ir.IRObject, len(v))
		for key, elem := range v {
			irElem, err := r.convert(elem)
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", key, err)
			}
			obj[key] = irElem
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("unsupported type %T", val)
	}
}
