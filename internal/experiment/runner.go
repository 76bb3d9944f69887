package experiment

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/daskuntal75/CareerCoPilot-sub001/internal/ai"
)

// Variant is one candidate configuration to exercise against the generation
// service.
type Variant struct {
	Name    string
	Request ai.Request
}

// Outcome captures one variant's result independently of the other. Exactly
// one of Content and Err is meaningful.
type Outcome struct {
	Name    string
	Content string
	Err     error
	Elapsed time.Duration
}

// Result holds both outcomes of a side-by-side run.
type Result struct {
	A Outcome
	B Outcome
}

// Runner executes two candidate configurations concurrently for side-by-side
// comparison. Output is ephemeral; promoting a winner into the version log is
// the caller's explicit follow-up.
type Runner struct {
	generator ai.Generator
	logger    *zap.Logger
}

func NewRunner(generator ai.Generator, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{generator: generator, logger: logger}
}

// Run fans out both variants and joins. Each branch settles on its own: one
// variant failing never voids the other's result, so Run itself never
// returns an error.
func (r *Runner) Run(ctx context.Context, a, b Variant) *Result {
	result := &Result{}

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		result.A = r.runVariant(ctx, a)
	}()
	go func() {
		defer wg.Done()
		result.B = r.runVariant(ctx, b)
	}()

	wg.Wait()
	return result
}

func (r *Runner) runVariant(ctx context.Context, v Variant) Outcome {
	started := time.Now()
	content, err := r.generator.Generate(ctx, v.Request)
	elapsed := time.Since(started)

	if err != nil {
		r.logger.Warn("experiment variant failed",
			zap.String("variant", v.Name),
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		)
		return Outcome{Name: v.Name, Err: err, Elapsed: elapsed}
	}

	r.logger.Debug("experiment variant completed",
		zap.String("variant", v.Name),
		zap.Duration("elapsed", elapsed),
	)

	return Outcome{Name: v.Name, Content: content, Elapsed: elapsed}
}
