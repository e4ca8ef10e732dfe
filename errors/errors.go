// Package errors holds small error helpers shared by the timebox packages.
package errors

import (
	"errors"
	"fmt"
	"sync"
)

// Collection accumulates errors from several cleanup steps so they can be
// reported together. It is safe for concurrent use.
type Collection struct {
	mu     sync.Mutex
	errors []error
}

// Add appends an error to the collection. Nil errors are ignored.
func (c *Collection) Add(err error) {
	if err == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.errors = append(c.errors, err)
}

// Addf adds err wrapped with a description of the step that produced it.
// Nil errors are ignored.
func (c *Collection) Addf(err error, format string, args ...any) {
	if err == nil {
		return
	}

	c.Add(fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err))
}

// Len returns the number of collected errors.
func (c *Collection) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.errors)
}

// HasError reports whether anything was collected.
func (c *Collection) HasError() bool {
	return c.Len() > 0
}

// GetError returns nil when empty, the single error when there is one, and
// an errors.Join of all of them otherwise.
func (c *Collection) GetError() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch len(c.errors) {
	case 0:
		return nil
	case 1:
		return c.errors[0]
	default:
		return errors.Join(c.errors...)
	}
}
