package scrape

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/mars-cli/internal/browser"
	"github.com/sells-group/mars-cli/internal/facts"
	"github.com/sells-group/mars-cli/internal/model"
)

// ErrNotFound marks a structural miss: the page loaded but the expected
// element or attribute was not there.
var ErrNotFound = eris.New("scrape: not found")

func notFound(format string, args ...any) error {
	return eris.Wrapf(ErrNotFound, format, args...)
}

// Outcome is the typed result of one extraction routine.
type Outcome[T any] struct {
	Value  T
	Reason model.Reason
	Err    error
}

// OK reports whether the routine produced a value.
func (o Outcome[T]) OK() bool { return o.Reason == model.ReasonOK }

func outcomeOf[T any](v T, err error) Outcome[T] {
	if err != nil {
		var zero T
		return Outcome[T]{Value: zero, Reason: Classify(err), Err: err}
	}
	return Outcome[T]{Value: v, Reason: model.ReasonOK}
}

// Classify maps an extraction error to a Reason. Structural misses are
// ReasonNotFound; everything else, including unreachable sites and
// timeouts, is ReasonTransport.
func Classify(err error) model.Reason {
	switch {
	case err == nil:
		return model.ReasonOK
	case eris.Is(err, ErrNotFound),
		eris.Is(err, browser.ErrNoElement),
		eris.Is(err, facts.ErrNoTable):
		return model.ReasonNotFound
	default:
		return model.ReasonTransport
	}
}
