package core

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/aretw0/lifecycle"
)

// Validate runs the model validators over params. Only keys present in
// params are validated; validators whose conditions are not met leave the
// value unchanged. Warnings come from warn-enforced validators.
func (m *Model) Validate(params Params) (Params, []string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.validateLocked(params)
}

func (m *Model) validateLocked(params Params) (Params, []string, error) {
	validated := params.Clone()
	var warnings []string
	for _, key := range m.validatorKeys() {
		if _, ok := params[key]; !ok {
			continue
		}
		for _, v := range m.validators[key] {
			c, err := v.Validate(validated, PassConditions)
			if err != nil {
				return nil, warnings, err
			}
			validated[key] = c.Value
			if c.Warning != "" {
				warnings = append(warnings, c.Warning)
				m.logger.Warn("validation warning", "key", key, "warning", c.Warning)
			}
		}
	}
	return validated, warnings, nil
}

// PredictOne validates params and evaluates every layer in order.
func (m *Model) PredictOne(params Params) (*Prediction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	validated, warnings, err := m.validateLocked(params)
	if err != nil {
		return nil, err
	}
	evaluated := validated
	for _, layer := range m.layers {
		out, err := layer.eval(evaluated)
		if err != nil {
			return nil, err
		}
		evaluated = evaluated.Merge(out)
	}
	return m.newPrediction(evaluated, warnings), nil
}

// predictOptions holds the configuration of a batch prediction.
type predictOptions struct {
	workers int
}

// PredictOption configures Predict.
type PredictOption func(*predictOptions)

// WithWorkers bounds the number of rows predicted concurrently.
// Values below one default to GOMAXPROCS.
func WithWorkers(n int) PredictOption {
	return func(o *predictOptions) {
		o.workers = n
	}
}

// Predict predicts every row concurrently. The result keeps the row order;
// rows that failed are nil and their errors are joined, tagged with the row
// index. Cancelling ctx stops dispatching new rows.
func (m *Model) Predict(ctx context.Context, rows []Params, opts ...PredictOption) ([]*Prediction, error) {
	out, errs := m.PredictEach(ctx, rows, opts...)
	var joined []error
	for i, err := range errs {
		if err != nil {
			joined = append(joined, fmt.Errorf("row %d: %w", i, err))
		}
	}
	if len(joined) > 0 {
		m.logger.Debug("batch prediction finished with errors", "rows", len(rows), "failed", len(joined))
	}
	return out, errors.Join(joined...)
}

// PredictEach is Predict returning one error slot per row.
func (m *Model) PredictEach(ctx context.Context, rows []Params, opts ...PredictOption) ([]*Prediction, []error) {
	o := &predictOptions{}
	for _, opt := range opts {
		opt(o)
	}
	if o.workers < 1 {
		o.workers = runtime.GOMAXPROCS(0)
	}
	o.workers = min(o.workers, max(len(rows), 1))

	out := make([]*Prediction, len(rows))
	errs := make([]error, len(rows))
	jobs := make(chan int)

	// Workers drain jobs until it closes, so they must not stop on ctx.
	workerCtx := context.WithoutCancel(ctx)
	var wg sync.WaitGroup
	for range o.workers {
		wg.Add(1)
		lifecycle.Go(workerCtx, func(context.Context) error {
			defer wg.Done()
			for i := range jobs {
				out[i], errs[i] = m.predictSafe(rows[i])
			}
			return nil
		}, lifecycle.WithErrorHandler(func(err error) {
			m.logger.Error("prediction worker failed", "error", err)
		}))
	}

dispatch:
	for i := range rows {
		select {
		case jobs <- i:
		case <-ctx.Done():
			for j := i; j < len(rows); j++ {
				errs[j] = ctx.Err()
			}
			break dispatch
		}
	}
	close(jobs)
	wg.Wait()
	return out, errs
}

// predictSafe turns a panicking element function into an error.
func (m *Model) predictSafe(row Params) (p *Prediction, err error) {
	defer func() {
		if r := recover(); r != nil {
			p, err = nil, fmt.Errorf("%w: panic: %v", ErrEvaluation, r)
		}
	}()
	return m.PredictOne(row)
}
