package txmgr

import (
	"fmt"

	"github.com/globalbus/dalesbred/pkg/dbx/types"
)

// TransactionSettings bundles the per-block transaction configuration: the
// propagation mode and the requested isolation level.
//
// The zero value is a valid default (PropagationRequired with
// types.IsolationDefault).
type TransactionSettings struct {
	Propagation Propagation
	Isolation   types.Isolation
}

// DefaultSettings returns the settings applied when a transactional block does
// not specify its own: join or start as needed, at the dialect's default
// isolation level.
func DefaultSettings() TransactionSettings {
	return TransactionSettings{
		Propagation: PropagationRequired,
		Isolation:   types.IsolationDefault,
	}
}

// String returns a compact description used in log lines.
func (s TransactionSettings) String() string {
	return fmt.Sprintf("propagation=%s, isolation=%s", s.Propagation, s.Isolation)
}
