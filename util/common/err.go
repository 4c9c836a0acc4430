// Package common holds small error helpers shared across the registry.
package common

import (
	"errors"
	"fmt"

	"github.com/medreg/patient-registry/logger"
)

func NewErrorf(format string, a ...any) error {
	msg := fmt.Sprintf(format, a...)
	return errors.New(msg)
}

// Combine joins the non-nil errors; it returns nil when all of them are nil.
func Combine(errs ...error) error {
	return errors.Join(errs...)
}

// Recover logs and swallows a panic. It only works when deferred directly.
func Recover(msg string) any {
	panicErr := recover()
	if panicErr != nil {
		if msg != "" {
			logger.Error(msg, "panic:", panicErr)
		}
	}
	return panicErr
}
