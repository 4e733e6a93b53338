// Package logging constructs the structured logger shared by every
// component of pg-gateway, following the teacher monorepo's logiface +
// stumpy pairing (github.com/joeycumines/logiface, .../stumpy).
package logging

import (
	"io"
	"os"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// Logger is the concrete logger type threaded through the gateway.
type Logger = logiface.Logger[*stumpy.Event]

// New builds the default logger, writing newline-delimited JSON to w.
func New(w io.Writer) *Logger {
	if w == nil {
		w = os.Stderr
	}
	return stumpy.L.New(
		stumpy.L.WithStumpy(
			stumpy.WithWriter(w),
		),
	)
}
