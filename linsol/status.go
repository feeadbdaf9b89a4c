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

// Package linsol solves the linear systems that arise in the Newton
// iterations of the implicit chemistry stage. The chemistry Jacobian has
// one block per grid cell, so every process solves its own part of the
// system; the processes then agree on a single outcome.
package linsol

import (
	"fmt"

	"github.com/spatialmodel/chemhydro"
)

// Status is the outcome of a linear solver operation. Zero is success,
// positive values are recoverable failures and negative values are
// unrecoverable failures.
type Status int

// Recoverable failures.
const (
	Success        Status = 0
	ResReduced     Status = 801 // residual was reduced but not below tolerance
	ConvFail       Status = 802
	ATimesFailRec  Status = 803
	PSetFailRec    Status = 804
	PSolveFailRec  Status = 805
	PackageFailRec Status = 806
	QRFactFail     Status = 807
	LUFactFail     Status = 808
)

// Unrecoverable failures.
const (
	MemNull          Status = -801
	IllInput         Status = -802
	MemFail          Status = -803
	ATimesNull       Status = -804
	ATimesFailUnrec  Status = -805
	PSetFailUnrec    Status = -806
	PSolveFailUnrec  Status = -807
	PackageFailUnrec Status = -808
	GSFail           Status = -809
	QRSolFail        Status = -810
	VectorOpErr      Status = -811
)

var statusNames = map[Status]string{
	Success:          "success",
	ResReduced:       "residual reduced",
	ConvFail:         "convergence failure",
	ATimesFailRec:    "recoverable operator failure",
	PSetFailRec:      "recoverable preconditioner setup failure",
	PSolveFailRec:    "recoverable preconditioner solve failure",
	PackageFailRec:   "recoverable package failure",
	QRFactFail:       "QR factorization failure",
	LUFactFail:       "LU factorization failure",
	MemNull:          "missing solver memory",
	IllInput:         "illegal input",
	MemFail:          "memory allocation failure",
	ATimesNull:       "missing operator",
	ATimesFailUnrec:  "unrecoverable operator failure",
	PSetFailUnrec:    "unrecoverable preconditioner setup failure",
	PSolveFailUnrec:  "unrecoverable preconditioner solve failure",
	PackageFailUnrec: "unrecoverable package failure",
	GSFail:           "Gram-Schmidt failure",
	QRSolFail:        "QR solve failure",
	VectorOpErr:      "vector operation failure",
}

func (s Status) String() string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	return fmt.Sprintf("status %d", int(s))
}

// Recoverable reports whether s is a recoverable failure.
func (s Status) Recoverable() bool { return s > 0 }

// Err returns nil for Success and otherwise an error carrying the status
// code.
func (s Status) Err(op string) error {
	if s == Success {
		return nil
	}
	return &chemhydro.StatusError{Op: op, Code: int(s), Err: fmt.Errorf("%v", s)}
}

// operatorStatus converts an error from a right-hand side evaluation into
// the matching operator status.
func operatorStatus(err error) Status {
	switch s := chemhydro.StatusOf(err); {
	case s == 0:
		return Success
	case s > 0:
		return ATimesFailRec
	default:
		return ATimesFailUnrec
	}
}
