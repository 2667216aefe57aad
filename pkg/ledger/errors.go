package ledger

import (
	"fmt"

	"github.com/gochain/gochain/pkg/chainerr"
)

var errInsufficientInputs = fmt.Errorf("%w: transaction inputs do not cover its outputs", chainerr.ErrInvalidTransaction)
