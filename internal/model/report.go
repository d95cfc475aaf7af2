package model

import "time"

// Step names one extraction routine of a scrape.
type Step string

const (
	StepNews        Step = "news"
	StepImage       Step = "featured_image"
	StepFacts       Step = "facts"
	StepHemispheres Step = "hemispheres"
)

// AllSteps returns the steps in execution order.
func AllSteps() []Step {
	return []Step{StepNews, StepImage, StepFacts, StepHemispheres}
}

// Reason classifies the outcome of a step.
type Reason string

const (
	ReasonOK        Reason = "ok"
	ReasonNotFound  Reason = "not_found"
	ReasonTransport Reason = "transport_error"
)

// StepReport records how a single step went.
type StepReport struct {
	Step     Step          `json:"step" yaml:"step"`
	Reason   Reason        `json:"reason" yaml:"reason"`
	Error    string        `json:"error,omitempty" yaml:"error,omitempty"`
	Duration time.Duration `json:"duration_ns" yaml:"duration_ns"`
}

// Report collects per-step outcomes for one scrape, in execution order.
type Report struct {
	StartedAt time.Time    `json:"started_at" yaml:"started_at"`
	Steps     []StepReport `json:"steps" yaml:"steps"`
}

// Step returns the report for step s, if one was recorded.
func (r *Report) Step(s Step) (StepReport, bool) {
	for _, sr := range r.Steps {
		if sr.Step == s {
			return sr, true
		}
	}
	return StepReport{}, false
}

// Failed returns the steps whose reason is not ReasonOK.
func (r *Report) Failed() []Step {
	var out []Step
	for _, sr := range r.Steps {
		if sr.Reason != ReasonOK {
			out = append(out, sr.Step)
		}
	}
	return out
}
