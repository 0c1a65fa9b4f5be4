package wizard

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidValue    = errors.New("invalid value")
	ErrInvalidSlot     = errors.New("invalid document slot")
	ErrInvalidField    = errors.New("invalid field")
	ErrSellerIndex     = errors.New("seller index out of range")
	ErrSessionClosed   = errors.New("wizard session closed")
	ErrStepIncomplete  = errors.New("step incomplete")
	ErrTerminalStep    = errors.New("last step reached, submit instead")
	ErrNotAtFinalStep  = errors.New("submit is only available on the last step")
	ErrStepOutOfBounds = errors.New("step out of bounds")
)

// GateError reports why forward navigation was refused.
type GateError struct {
	Step    int
	Missing []string
}

func (e *GateError) Error() string {
	return fmt.Sprintf("step %d incomplete: missing %s", e.Step, strings.Join(e.Missing, ", "))
}

func (e *GateError) Is(target error) bool {
	return target == ErrStepIncomplete
}
