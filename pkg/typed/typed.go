// Package typed predicts crash frequencies for user defined structs.
//
// Inputs and outputs are converted through their JSON form, so field names
// follow `json` tags:
//
//	type Segment struct {
//		AADT   float64 `json:"aadt"`
//		Length float64 `json:"length"`
//		Obs    *int    `json:"obs_kabco,omitempty"`
//	}
package typed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aretw0/cpm/pkg/core"
)

// Encode converts a struct to model inputs.
func Encode[T any](v T) (core.Params, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal typed inputs: %w", err)
	}
	var params core.Params
	if err := json.Unmarshal(data, &params); err != nil {
		return nil, fmt.Errorf("failed to convert typed inputs to params: %w", err)
	}
	return params, nil
}

// Decode fills a struct from params, typically a prediction record.
func Decode[T any](params core.Params) (T, error) {
	var out T
	data, err := json.Marshal(params)
	if err != nil {
		return out, fmt.Errorf("params marshal failed: %w", err)
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("unmarshal to target type failed: %w", err)
	}
	return out, nil
}

// Result pairs one typed input with its prediction decoded as O.
type Result[I, O any] struct {
	Input      I
	Output     O
	Prediction *core.Prediction
	Err        error
}

// Predictor wraps a model with typed inputs I and outputs O.
type Predictor[I, O any] struct {
	model *core.Model
}

// NewPredictor creates a typed wrapper around a locked model.
func NewPredictor[I, O any](m *core.Model) *Predictor[I, O] {
	return &Predictor[I, O]{model: m}
}

// Model returns the wrapped model.
func (p *Predictor[I, O]) Model() *core.Model { return p.model }

// PredictOne predicts a single input.
func (p *Predictor[I, O]) PredictOne(in I) (O, *core.Prediction, error) {
	var zero O
	params, err := Encode(in)
	if err != nil {
		return zero, nil, err
	}
	pred, err := p.model.PredictOne(params)
	if err != nil {
		return zero, nil, err
	}
	out, err := Decode[O](pred.Record())
	return out, pred, err
}

// Predict predicts every input concurrently. Each result carries its own
// error; the returned error joins them.
func (p *Predictor[I, O]) Predict(ctx context.Context, inputs []I, opts ...core.PredictOption) ([]Result[I, O], error) {
	results := make([]Result[I, O], len(inputs))
	rows := make([]core.Params, len(inputs))
	for i, in := range inputs {
		results[i].Input = in
		params, err := Encode(in)
		if err != nil {
			results[i].Err = err
			// an empty row still goes through the model so indexes stay aligned
			params = core.Params{}
		}
		rows[i] = params
	}

	preds, errs := p.model.PredictEach(ctx, rows, opts...)
	var failed []error
	for i := range results {
		if results[i].Err == nil {
			results[i].Err = errs[i]
		}
		if results[i].Err == nil {
			results[i].Prediction = preds[i]
			results[i].Output, results[i].Err = Decode[O](preds[i].Record())
		}
		if results[i].Err != nil {
			failed = append(failed, fmt.Errorf("row %d: %w", i, results[i].Err))
		}
	}
	return results, errors.Join(failed...)
}

// Rows decodes every row of a table into T.
func Rows[T any](t *core.Table) ([]T, error) {
	out := make([]T, len(t.Rows))
	for i, row := range t.Rows {
		v, err := Decode[T](row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}
