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
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Timer names one of the profiled regions.
type Timer int

// Profiled regions.
const (
	RHSSlow Timer = iota
	RHSFast
	JacFast
	PostFast
	LSetup
	LSolve
	LSolveComm
	LATimes
	numTimers
)

var timerNames = [numTimers]string{
	"RHSslow", "RHSfast", "Jfast", "postfast", "lsetup", "lsolve", "lsolveMPI", "latimes",
}

func (t Timer) String() string { return timerNames[t] }

// Profile accumulates wall-clock time spent in the profiled regions.
// A nil *Profile is valid and records nothing.
type Profile struct {
	mu    sync.Mutex
	total [numTimers]time.Duration
	count [numTimers]int
}

// Start begins timing region t and returns the function that stops it.
func (p *Profile) Start(t Timer) (stop func()) {
	if p == nil {
		return func() {}
	}
	begin := time.Now()
	return func() {
		d := time.Since(begin)
		p.mu.Lock()
		p.total[t] += d
		p.count[t]++
		p.mu.Unlock()
	}
}

// Total returns the accumulated time in region t.
func (p *Profile) Total(t Timer) time.Duration {
	if p == nil {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.total[t]
}

// Count returns the number of timed entries into region t.
func (p *Profile) Count(t Timer) int {
	if p == nil {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.count[t]
}

// Log writes one entry per region that was entered at least once.
func (p *Profile) Log(log logrus.FieldLogger) {
	if p == nil {
		return
	}
	for t := Timer(0); t < numTimers; t++ {
		if n := p.Count(t); n > 0 {
			log.WithFields(logrus.Fields{
				"region": t.String(),
				"calls":  n,
				"time":   p.Total(t).String(),
			}).Info("profile")
		}
	}
}

// Seconds returns the total time in seconds of every region that was
// entered at least once, keyed by region name.
func (p *Profile) Seconds() map[string]float64 {
	o := make(map[string]float64)
	if p == nil {
		return o
	}
	for t := Timer(0); t < numTimers; t++ {
		if p.Count(t) > 0 {
			o[t.String()] = p.Total(t).Seconds()
		}
	}
	return o
}
