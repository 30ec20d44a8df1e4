// Package widget drives the third-party rental cart widget embedded in the
// storefront page: it loads the widget script, probes its undocumented API,
// pushes the rental period and cart items into it through whichever channel
// works, and verifies the result by inspecting observable cart state.
//
// Nothing here assumes a fixed widget API. Every capability is probed before
// use and every invocation failure falls through to the next candidate.
package widget

import (
	"context"
	"errors"
	"fmt"
	"net/url"
)

// Kind classifies what a global path resolves to in the page.
type Kind int

const (
	KindAbsent Kind = iota
	KindFunction
	KindObject
	KindValue
)

func (k Kind) String() string {
	switch k {
	case KindFunction:
		return "function"
	case KindObject:
		return "object"
	case KindValue:
		return "value"
	default:
		return "absent"
	}
}

// Node is an opaque reference to a DOM element held by the page.
type Node string

// Page is the browser surface the engine drives.
//
// Paths passed to Lookup, Invoke and Value are dotted property paths from the
// page's global object (e.g. "Booqable.cart.addItems"). Implementations must
// be safe for concurrent use: insertion callbacks may arrive while an engine
// operation is in flight.
type Page interface {
	// Lookup reports what path resolves to. Absence is not an error.
	Lookup(ctx context.Context, path string) (Kind, error)

	// Invoke calls the function at path with JSON-compatible args, binding
	// this to the parent object. A call that throws returns *InvocationError.
	Invoke(ctx context.Context, path string, args ...any) error

	// Value decodes the JSON value at path into dst. Returns false if absent.
	Value(ctx context.Context, path string, dst any) (bool, error)

	// HasElement reports whether an element with the given id exists.
	HasElement(ctx context.Context, id string) (bool, error)

	// AppendScript inserts <script id=id src=src> and waits for its load
	// event. A script that fires its error event returns an error.
	AppendScript(ctx context.Context, id, src string) error

	// ObserveInsertions calls fn whenever an element matching selector is
	// inserted anywhere in the document. The observer lives as long as the page.
	ObserveInsertions(ctx context.Context, selector string, fn func()) error

	// QueryNode returns the first element matching selector.
	QueryNode(ctx context.Context, selector string) (Node, bool, error)

	// QueryWithin returns the first descendant of parent matching selector.
	QueryWithin(ctx context.Context, parent Node, selector string) (Node, bool, error)

	// InlineStyle returns the element's style attribute text.
	InlineStyle(ctx context.Context, n Node) (string, error)

	// SetInlineStyle replaces the element's style attribute text.
	SetInlineStyle(ctx context.Context, n Node, style string) error

	// Dispatch fires a bubbling, cancelable mouse event of the given type.
	Dispatch(ctx context.Context, n Node, eventType string) error

	// Click calls the element's native click().
	Click(ctx context.Context, n Node) error

	// Markup returns the serialized document.
	Markup(ctx context.Context) (string, error)

	// URL returns the page's current location.
	URL(ctx context.Context) (*url.URL, error)

	// ReplaceURL rewrites the location through history replacement, without
	// navigation.
	ReplaceURL(ctx context.Context, u *url.URL) error
}

// ErrAbsent is returned when a widget capability does not exist.
// It is an expected outcome and is never surfaced to users.
var ErrAbsent = errors.New("capability not present")

// InvocationError is returned when a widget method exists but throws.
type InvocationError struct {
	Path    string
	Message string
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("%s threw: %s", e.Path, e.Message)
}

// IsInvocationError reports whether err is a thrown widget call.
func IsInvocationError(err error) bool {
	var invErr *InvocationError
	return errors.As(err, &invErr)
}
