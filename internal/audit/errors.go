// Pathfinder - Career Management SaaS Backend
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/czhaoca/pathfinder-sub009

package audit

import (
	"errors"
	"fmt"
)

// ErrCyclicPayload is returned when old_values, new_values, or custom_data
// contains a reference cycle and cannot be serialized. Cyclic payloads are
// rejected outright rather than pruned.
var ErrCyclicPayload = errors.New("payload contains a reference cycle")

// ErrPayloadTooDeep is returned when a payload exceeds the maximum nesting
// depth accepted at the boundary.
var ErrPayloadTooDeep = errors.New("payload nesting exceeds maximum depth")

// ErrServiceStopped is returned by Log after Shutdown has completed.
var ErrServiceStopped = errors.New("audit service is stopped")

// ValidationError reports the first required field missing from a RawEvent.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("audit event validation failed: missing required field %q", e.Field)
}

// IsValidationError reports whether err is a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
