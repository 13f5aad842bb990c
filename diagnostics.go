package fsdp

import (
	"fmt"

	"github.com/go-logr/logr"
	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// DefaultLogger is the logger used when none is given: klog, through its logr adapter.
func DefaultLogger() logr.Logger {
	return klog.NewKlogr()
}

// Diagnostics reports failed invariants, tagging every message with the rank of the current process, so the
// logs of many processes can be told apart.
type Diagnostics struct {
	rank   int
	logger logr.Logger
}

// NewDiagnostics returns Diagnostics for the process of the given global rank.
func NewDiagnostics(rank int, logger logr.Logger) *Diagnostics {
	return &Diagnostics{rank: rank, logger: logger.WithValues("rank", rank)}
}

// Rank returns the global rank messages are tagged with.
func (d *Diagnostics) Rank() int { return d.rank }

// Logger returns the logger, already tagged with the rank.
func (d *Diagnostics) Logger() logr.Logger { return d.logger }

// Assertf panics (see Fatalf) if cond is false.
func (d *Diagnostics) Assertf(cond bool, format string, args ...any) {
	if cond {
		return
	}
	d.Fatalf(format, args...)
}

// Fatalf logs the message, prefixed with "[Rank <rank>]" and with the stack trace, and panics with it.
func (d *Diagnostics) Fatalf(format string, args ...any) {
	msg := fmt.Sprintf("[Rank %d] %s", d.rank, fmt.Sprintf(format, args...))
	err := errors.New(msg)
	d.logger.Error(err, "assertion failed", "stack", fmt.Sprintf("%+v", err))
	exceptions.Panicf("%s", msg)
}

// Check calls Fatalf if err is not nil.
func (d *Diagnostics) Check(err error) {
	if err != nil {
		d.Fatalf("%v", err)
	}
}
