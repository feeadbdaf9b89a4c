/*
Copyright © 2024 the ChemHydro authors.
This file is part of ChemHydro.

ChemHydro is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

ChemHydro is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with ChemHydro.  If not, see <http://www.gnu.org/licenses/>.
*/

package chemhydro

import (
	"errors"
	"fmt"
)

// Failure classes for operations that are called back by an external time
// integrator. Recoverable failures ask the integrator to retry with a
// smaller step; unrecoverable failures abort the integration; fatal
// failures abort the program.
var (
	ErrRecoverable   = errors.New("recoverable failure")
	ErrUnrecoverable = errors.New("unrecoverable failure")
	ErrFatal         = errors.New("fatal failure")
)

// StatusError records a failed operation together with the integer status
// code that the integrator contract expects.
type StatusError struct {
	Op   string
	Code int
	Err  error
}

func (e *StatusError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: status %d", e.Op, e.Code)
	}
	return fmt.Sprintf("%s: status %d: %v", e.Op, e.Code, e.Err)
}

func (e *StatusError) Unwrap() error { return e.Err }

// Is matches the failure class implied by the status code.
func (e *StatusError) Is(target error) bool {
	switch target {
	case ErrRecoverable:
		return e.Code > 0
	case ErrUnrecoverable:
		return e.Code < 0
	}
	return false
}

// Recoverable returns a recoverable error for operation op.
func Recoverable(op string, err error) error {
	return &StatusError{Op: op, Code: 1, Err: err}
}

// Unrecoverable returns an unrecoverable error for operation op.
func Unrecoverable(op string, err error) error {
	return &StatusError{Op: op, Code: -1, Err: err}
}

// StatusOf converts err into the integer status convention:
// 0 for success, a positive value for recoverable failures and a negative
// value for everything else.
func StatusOf(err error) int {
	if err == nil {
		return 0
	}
	var se *StatusError
	if errors.As(err, &se) && se.Code != 0 {
		return se.Code
	}
	if errors.Is(err, ErrRecoverable) {
		return 1
	}
	return -1
}
