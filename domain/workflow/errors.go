package workflow

import (
	"errors"
	"fmt"
)

// ErrConfiguration is the root of structural errors that abort a request.
var ErrConfiguration = errors.New("configuration error")

var (
	// ErrUnknownStage indicates a stage name that is not in the table.
	ErrUnknownStage = fmt.Errorf("%w: unknown stage", ErrConfiguration)

	// ErrUnknownMode indicates a stage declared with an unrecognized mode.
	ErrUnknownMode = fmt.Errorf("%w: unknown stage mode", ErrConfiguration)

	// ErrUnknownAbility indicates an ability name that is not in the table.
	ErrUnknownAbility = fmt.Errorf("%w: unknown ability", ErrConfiguration)

	// ErrDuplicateAbility indicates an ability bound to more than one stage.
	ErrDuplicateAbility = fmt.Errorf("%w: duplicate ability", ErrConfiguration)

	// ErrInvalidBackend indicates an ability bound to an unknown backend group.
	ErrInvalidBackend = fmt.Errorf("%w: invalid backend", ErrConfiguration)
)
