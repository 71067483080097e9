package job

import (
	"sync/atomic"

	"github.com/cuemby/etlconsole/pkg/log"
)

// NavigationWarning is issued when leaving is attempted while a job runs
const NavigationWarning = "Wait for the ETL to finish before navigating or reloading."

// LeaveWarning is issued when the console exits while a job runs
const LeaveWarning = "Leaving while the ETL runs; the job continues on the backend."

// Guard is the navigation-block flag. While it is set, outbound navigation
// is suppressed and leaving the console needs confirmation. It is also the
// only guard against starting overlapping jobs.
type Guard struct {
	blocked atomic.Bool
	warn    func(msg string)
}

// NewGuard creates an unblocked guard. warn receives the warning issued for
// intercepted navigations and may be nil.
func NewGuard(warn func(msg string)) *Guard {
	return &Guard{warn: warn}
}

// Block sets the flag. It returns false if it was already set.
func (g *Guard) Block() bool {
	return g.blocked.CompareAndSwap(false, true)
}

// Release clears the flag
func (g *Guard) Release() {
	g.blocked.Store(false)
}

// Blocked reports whether navigation is currently blocked
func (g *Guard) Blocked() bool {
	return g.blocked.Load()
}

// Intercept decides an internal navigation to target. It returns true when
// the navigation may proceed. While blocked it returns false and issues the
// navigation warning instead.
func (g *Guard) Intercept(target string) bool {
	if !g.Blocked() {
		return true
	}
	log.Logger.Debug().Str("target", target).Msg("navigation blocked while job runs")
	if g.warn != nil {
		g.warn(NavigationWarning)
	}
	return false
}

// ConfirmLeave reports whether leaving the console must be confirmed, that
// is whether a job is still in flight
func (g *Guard) ConfirmLeave() bool {
	return g.Blocked()
}
