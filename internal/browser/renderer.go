// Package browser provides the headless-browser renderer used for pages that
// only expose their preview tags after client-side scripts run.
package browser

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrWaitTimeout is returned by Renderer.Wait when the condition did not
// appear within the wait bound. The renderer remains usable.
var ErrWaitTimeout = errors.New("render wait timed out")

// Renderer is one browser instance. A Renderer is used by one caller at a
// time; the pool guarantees that.
type Renderer interface {
	ID() string
	// Navigate loads url in the renderer's page.
	Navigate(ctx context.Context, url string) error
	// Wait blocks until cond holds or timeout passes.
	Wait(ctx context.Context, cond Condition, timeout time.Duration) error
	// HTML returns the current document source, or the frame's source after
	// a successful FrameSwitch wait.
	HTML(ctx context.Context) (string, error)
	// Reset brings the renderer back to a blank page.
	Reset(ctx context.Context) error
	Close() error
}

// ConditionKind selects what a Condition waits for.
type ConditionKind int

const (
	// WaitNone returns immediately.
	WaitNone ConditionKind = iota
	// WaitMeta waits for <meta property=Value>.
	WaitMeta
	// WaitFrame waits for the iframe named Value and switches into it.
	WaitFrame
	// WaitTitleChange waits until document.title is set and differs from Value.
	WaitTitleChange
)

// Condition is a DOM condition a rendered page is expected to reach.
type Condition struct {
	Kind  ConditionKind
	Value string
}

// MetaPresent waits for a meta element with the given property.
func MetaPresent(property string) Condition {
	return Condition{Kind: WaitMeta, Value: property}
}

// FrameSwitch waits for the named iframe and reads it instead of the top document.
func FrameSwitch(name string) Condition {
	return Condition{Kind: WaitFrame, Value: name}
}

// TitleChanged waits for the title to move away from a loading placeholder.
func TitleChanged(placeholder string) Condition {
	return Condition{Kind: WaitTitleChange, Value: placeholder}
}

func (c Condition) String() string {
	switch c.Kind {
	case WaitNone:
		return "none"
	case WaitMeta:
		return fmt.Sprintf("meta[property=%q]", c.Value)
	case WaitFrame:
		return fmt.Sprintf("frame(%s)", c.Value)
	case WaitTitleChange:
		return fmt.Sprintf("title!=%q", c.Value)
	default:
		return fmt.Sprintf("condition(%d)", c.Kind)
	}
}
