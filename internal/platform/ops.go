package platform

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aretw0/cpm/pkg/adapters/table"
	"github.com/aretw0/cpm/pkg/core"
)

// ResultSuffix is appended to the stem of input files to name result files.
const ResultSuffix = "_result"

// Summary describes a finished batch prediction.
type Summary struct {
	RunID    string
	Model    string
	Input    string
	Output   string
	Rows     int
	Failed   int
	Warnings int
	Elapsed  time.Duration
}

// ResultPath names the result file of an input table. format replaces the
// input extension when set.
func ResultPath(input, format string) string {
	ext := filepath.Ext(input)
	if format != "" {
		ext = format
	}
	return strings.TrimSuffix(input, filepath.Ext(input)) + ResultSuffix + ext
}

// IsResult reports whether path names a result file.
func IsResult(path string) bool {
	base := filepath.Base(path)
	return strings.HasSuffix(strings.TrimSuffix(base, filepath.Ext(base)), ResultSuffix)
}

// PredictFile predicts every row of the input table and writes inputs,
// element values and an error column to output. Failed rows do not fail
// the run; they are counted in the summary.
func PredictFile(ctx context.Context, m *core.Model, input, output string, opts ...Option) (Summary, error) {
	o := newOptions(opts)
	if output == "" {
		output = ResultPath(input, o.config.OutputFormat)
	}
	s := Summary{RunID: uuid.NewString(), Model: m.Name(), Input: input, Output: output}
	logger := o.logger.With("run_id", s.RunID, "model", s.Model)
	start := time.Now()

	in, err := table.Read(input)
	if err != nil {
		return s, err
	}
	s.Rows = in.Len()
	logger.Info("prediction started", "input", input, "rows", s.Rows)

	preds, errs := m.PredictEach(ctx, in.Rows, core.WithWorkers(o.config.Workers))
	for i, err := range errs {
		if err != nil {
			s.Failed++
			logger.Warn("row failed", "row", i, "error", err)
		}
	}
	for _, p := range preds {
		if p != nil {
			s.Warnings += len(p.Warnings)
		}
	}
	if err := ctx.Err(); err != nil {
		return s, err
	}

	if err := table.Write(output, table.FromPredictions(in, preds, errs)); err != nil {
		return s, err
	}
	s.Elapsed = time.Since(start)
	logger.Info("prediction finished", "output", output, "failed", s.Failed, "warnings", s.Warnings, "elapsed", s.Elapsed)
	return s, nil
}

// TemplateFile writes an empty input table with n rows.
func TemplateFile(m *core.Model, path string, n int) error {
	if n < 1 {
		return fmt.Errorf("template needs at least one row, got %d", n)
	}
	return table.Write(path, m.Template(n))
}

// RandomFile writes n rows of random feasible inputs.
func RandomFile(m *core.Model, path string, n int, seed uint64) error {
	t, err := m.InitFeasible(n, seed, nil, 10)
	if err != nil {
		return err
	}
	return table.Write(path, t)
}
