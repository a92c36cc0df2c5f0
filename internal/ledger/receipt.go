package ledger

import (
	"fmt"

	"github.com/roach88/ledgerunit/internal/codec"
	"github.com/roach88/ledgerunit/internal/ir"
)

// Status is the outcome of a submitted transaction.
type Status string

const (
	StatusCommittedSuccess Status = "CommittedSuccess"
	StatusCommittedFailure Status = "CommittedFailure"
	StatusRejected         Status = "Rejected"
)

// Receipt reports what a transaction did. Entity lists are in creation
// order and are empty unless the transaction succeeded.
type Receipt struct {
	Hash   ir.Hash
	Seq    int64
	Status Status
	Error  *ExecutionError

	NewPackages   []ir.Address
	NewComponents []ir.Address
	NewResources  []ir.Address

	// Outputs holds the encoded return value of each instruction.
	Outputs [][]byte

	Logs []string
}

// IsSuccess reports whether the transaction committed successfully.
func (r *Receipt) IsSuccess() bool {
	return r.Status == StatusCommittedSuccess
}

// Err returns the execution error, or nil on success.
func (r *Receipt) Err() error {
	if r.Error == nil {
		return nil
	}
	return r.Error
}

// Output decodes the return value of instruction i.
func (r *Receipt) Output(i int) (ir.IRValue, error) {
	if i < 0 || i >= len(r.Outputs) {
		return nil, fmt.Errorf("receipt has no output %d (have %d)", i, len(r.Outputs))
	}
	return codec.Decode(r.Outputs[i])
}

// String summarises the receipt for logs and failure messages.
func (r *Receipt) String() string {
	if r.Error != nil {
		return fmt.Sprintf("%s %s: %s", r.Status, r.Hash.String()[:12], r.Error)
	}
	return fmt.Sprintf("%s %s", r.Status, r.Hash.String()[:12])
}

func (r *Receipt) fail(status Status, err *ExecutionError) *Receipt {
	r.Status = status
	r.Error = err
	r.NewPackages = nil
	r.NewComponents = nil
	r.NewResources = nil
	r.Outputs = nil
	return r
}
