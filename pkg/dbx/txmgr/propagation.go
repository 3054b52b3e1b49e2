package txmgr

import "fmt"

// Propagation controls how a transactional block relates to a transaction that
// may already be active on the calling context.
type Propagation int

const (
	// PropagationRequired joins the current transaction, or starts a new
	// physical one when none is active. This is the default.
	PropagationRequired Propagation = iota

	// PropagationRequiresNew always starts a new physical transaction on a
	// separately acquired connection, suspending any current one for the
	// duration of the block.
	PropagationRequiresNew

	// PropagationNested starts a savepoint-backed sub-transaction inside the
	// current transaction, or a new physical one when none is active.
	PropagationNested

	// PropagationMandatory joins the current transaction and fails when none
	// is active.
	PropagationMandatory

	// PropagationSupports joins the current transaction when one is active,
	// otherwise runs the block without any transaction.
	PropagationSupports

	// PropagationNever fails when a transaction is active, otherwise runs the
	// block without any transaction.
	PropagationNever

	// PropagationNotSupported suspends any current transaction and runs the
	// block without one.
	PropagationNotSupported
)

// String returns the conventional upper-case name of the propagation mode.
func (p Propagation) String() string {
	switch p {
	case PropagationRequired:
		return "REQUIRED"
	case PropagationRequiresNew:
		return "REQUIRES_NEW"
	case PropagationNested:
		return "NESTED"
	case PropagationMandatory:
		return "MANDATORY"
	case PropagationSupports:
		return "SUPPORTS"
	case PropagationNever:
		return "NEVER"
	case PropagationNotSupported:
		return "NOT_SUPPORTED"
	default:
		return fmt.Sprintf("Propagation(%d)", int(p))
	}
}
