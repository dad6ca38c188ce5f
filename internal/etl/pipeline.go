package etl

import (
	"context"
	"fmt"
	"time"

	"github.com/codepoint-impute/internal/codelist"
	"github.com/codepoint-impute/internal/codepoint"
	"github.com/codepoint-impute/internal/debug"
	"github.com/codepoint-impute/internal/impute"
	"github.com/codepoint-impute/internal/normalize"
)

// Stage is one step of the cleaning pipeline. Apply must not modify its input.
type Stage interface {
	Name() string
	Apply(in codepoint.Table) (codepoint.Table, []codepoint.Change, error)
}

// StageResult is the inspectable outcome of a single stage
type StageResult struct {
	Stage    string
	Output   codepoint.Table
	Changes  []codepoint.Change
	Duration time.Duration
}

// Observer is notified after each stage completes
type Observer interface {
	StageCompleted(result StageResult)
}

// Pipeline runs stages in order over an in-memory point table
type Pipeline struct {
	stages    []Stage
	observers []Observer
	debug     bool
}

// NewPipeline creates a new pipeline
func NewPipeline(localDebug bool, stages ...Stage) *Pipeline {
	return &Pipeline{stages: stages, debug: localDebug}
}

// Observe registers an observer for stage results
func (p *Pipeline) Observe(o Observer) {
	p.observers = append(p.observers, o)
}

// Run applies every stage in sequence. The returned results hold each
// intermediate table; the last Output is the final table.
func (p *Pipeline) Run(ctx context.Context, in codepoint.Table) ([]StageResult, error) {
	debug.DebugHeader(p.debug)
	defer debug.DebugFooter(p.debug)

	results := make([]StageResult, 0, len(p.stages))
	current := in

	for _, stage := range p.stages {
		if err := ctx.Err(); err != nil {
			return results, fmt.Errorf("pipeline cancelled before %s: %w", stage.Name(), err)
		}

		start := time.Now()
		out, changes, err := stage.Apply(current)
		if err != nil {
			return results, fmt.Errorf("stage %s failed: %w", stage.Name(), err)
		}
		if len(out) != len(current) {
			return results, fmt.Errorf("stage %s changed row count from %d to %d", stage.Name(), len(current), len(out))
		}

		result := StageResult{
			Stage:    stage.Name(),
			Output:   out,
			Changes:  changes,
			Duration: time.Since(start),
		}
		results = append(results, result)

		debug.DebugOutput(p.debug, "Stage %s: %d changes in %v", result.Stage, len(changes), result.Duration)
		for _, o := range p.observers {
			o.StageCompleted(result)
		}

		current = out
	}

	return results, nil
}

// Final returns the table produced by the last stage, or nil if none ran
func Final(results []StageResult) codepoint.Table {
	if len(results) == 0 {
		return nil
	}
	return results[len(results)-1].Output
}

// CountryStage expands S/E/W country codes to country names
type CountryStage struct{}

func (CountryStage) Name() string { return "normalise-country" }

func (CountryStage) Apply(in codepoint.Table) (codepoint.Table, []codepoint.Change, error) {
	out, changes := normalize.Countries(in)
	return out, changes, nil
}

// CodeStage rewrites area names to official codes using the codelist lookup
type CodeStage struct {
	Lookup codelist.Lookup
}

func (CodeStage) Name() string { return "replace-codes" }

func (s CodeStage) Apply(in codepoint.Table) (codepoint.Table, []codepoint.Change, error) {
	out, changes := normalize.Codes(in, s.Lookup)
	return out, changes, nil
}

// ImputeStage fills missing district/ward codes from the nearest known point
type ImputeStage struct {
	Imputer *impute.Imputer
	// Report is populated after Apply
	Report *impute.Report
}

func (*ImputeStage) Name() string { return "impute-nearest" }

func (s *ImputeStage) Apply(in codepoint.Table) (codepoint.Table, []codepoint.Change, error) {
	out, changes, report, err := s.Imputer.Impute(in)
	s.Report = report
	if err != nil {
		return nil, nil, err
	}
	return out, changes, nil
}
