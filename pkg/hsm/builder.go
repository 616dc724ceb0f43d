package hsm

import (
	"fmt"
	"maps"
	"math"
	"path"
	"slices"

	"github.com/aretw0/cpm/pkg/core"
)

// builder wraps a model under construction. The first failure sticks and
// every later call becomes a no-op, so model files read as a flat list of
// declarations.
type builder struct {
	name string
	opts *options
	m    *core.Model
	used map[string]bool
	err  error
}

func newBuilder(name string, o *options) *builder {
	return &builder{
		name: name,
		opts: o,
		m:    core.NewModel(name, core.WithLogger(o.logger)),
		used: make(map[string]bool),
	}
}

func (b *builder) do(err error) {
	if b.err == nil && err != nil {
		b.err = err
	}
}

// ref loads an embedded reference, applies calibration and overrides, and
// adds it to the model.
func (b *builder) ref(name string) {
	if b.err != nil {
		return
	}
	f, err := refsFS.Open(path.Join("refs", b.name, name+".json"))
	if err != nil {
		b.do(fmt.Errorf("%w: %s: %w", core.ErrReference, name, err))
		return
	}
	defer f.Close()

	ref, err := core.ParseReference(f, name)
	if err != nil {
		b.do(err)
		return
	}
	if name == "calibration" && len(b.opts.calibration) > 0 {
		if ref, err = calibrate(ref, b.opts.calibration); err != nil {
			b.do(err)
			return
		}
	}
	for _, o := range b.opts.overrides {
		if o.Name() != name {
			continue
		}
		if ref, err = ref.Override(o); err != nil {
			b.do(err)
			return
		}
		b.used[name] = true
	}
	b.do(b.m.AddReference(ref))
}

// calibrate overrides the cf leaves of a calibration reference.
func calibrate(ref *core.Reference, cf map[string]float64) (*core.Reference, error) {
	levels := ref.Levels()
	if len(levels) == 0 {
		v, ok := cf["*"]
		if !ok {
			return nil, fmt.Errorf("%w: calibration of a model without facility types takes the \"*\" key only", core.ErrReference)
		}
		patch, err := core.NewReference(ref.Name(), nil, []string{"cf"}, map[string]any{"cf": v})
		if err != nil {
			return nil, err
		}
		return ref.Override(patch)
	}

	domain := ref.Domain()[levels[0]]
	for k := range cf {
		if k != "*" && !slices.Contains(domain, k) {
			return nil, fmt.Errorf("%w: no facility type %q to calibrate, expected one of %v", core.ErrReference, k, domain)
		}
	}
	data := make(map[string]any, len(domain))
	for _, ft := range domain {
		v, ok := cf[ft]
		if !ok {
			if v, ok = cf["*"]; !ok {
				continue
			}
		}
		data[ft] = map[string]any{"cf": v}
	}
	if len(data) == 0 {
		return ref, nil
	}
	patch, err := core.NewReference(ref.Name(), levels, []string{"cf"}, data)
	if err != nil {
		return nil, err
	}
	return ref.Override(patch)
}

func (b *builder) layer(name string) {
	if b.err == nil {
		b.do(b.m.AddLayer(name))
	}
}

func (b *builder) limits(key string, lo, hi float64, opts ...core.LimitsOption) {
	b.bounded(key, core.Const(lo), core.Const(hi), opts...)
}

func (b *builder) bounded(key string, lo, hi core.Bound, opts ...core.LimitsOption) {
	if b.err != nil {
		return
	}
	v, err := core.NewLimits(key, lo, hi, opts...)
	if err != nil {
		b.do(err)
		return
	}
	b.do(b.m.AddValidator(v))
}

func (b *builder) values(key string, vals []any, opts ...core.ValuesOption) {
	if b.err != nil {
		return
	}
	v, err := core.NewValues(key, vals, opts...)
	if err != nil {
		b.do(err)
		return
	}
	b.do(b.m.AddValidator(v))
}

func (b *builder) add(add func(core.ElementSpec) error, spec core.ElementSpec) {
	if b.err == nil {
		b.do(add(spec))
	}
}

func (b *builder) spf(spec core.ElementSpec)    { b.add(b.m.AddSPF, spec) }
func (b *builder) cf(spec core.ElementSpec)     { b.add(b.m.AddCF, spec) }
func (b *builder) af(spec core.ElementSpec)     { b.add(b.m.AddAF, spec) }
func (b *builder) sub(spec core.ElementSpec)    { b.add(b.m.AddSub, spec) }
func (b *builder) hidden(spec core.ElementSpec) { b.add(b.m.AddHidden, spec) }
func (b *builder) result(spec core.ElementSpec) { b.add(b.m.AddResult, spec) }

func (b *builder) finish() (*core.Model, error) {
	for _, o := range b.opts.overrides {
		if !b.used[o.Name()] {
			b.do(fmt.Errorf("%w: %s has no reference %q to override", core.ErrReference, b.name, o.Name()))
		}
	}
	if b.err != nil {
		return nil, b.err
	}
	b.m.Lock()
	return b.m, nil
}

// Shared declarations.

// observed declares an observed crash count. -1 marks a site without
// observations.
func (b *builder) observed(key, what string) {
	b.limits(key, -1, 1e3, core.LimitsEnforce(core.EnforceWarn),
		core.LimitsNotes(fmt.Sprintf("Observed %s crashes over the study period; -1 when unknown", what)))
}

func (b *builder) numYears() {
	b.limits("num_years", 0, 100, core.LimitsEnforce(core.EnforceWarn),
		core.LimitsNotes("Number of years of the study period"))
}

func (b *builder) binary(key, note string) {
	b.values(key, []any{0, 1}, core.ValuesDType(core.Int), core.ValuesNotes(note))
}

// calibrationFactor adds the cf_total element from the calibration reference.
func (b *builder) calibrationFactor() {
	b.cf(core.ElementSpec{
		Name: "cf_total",
		Refs: []core.RefQuery{core.Ref("calibration")},
		Func: func(in *core.Inputs) (float64, error) { return in.Float("cf"), nil },
		Doc:  "Local calibration factor",
	})
}

// predicted adds a Result that scales an SPF by AFs, calibration and the
// study period.
func (b *builder) predicted(name, spf, af string, comp map[string]string) {
	b.result(core.ElementSpec{
		Name:   name,
		Inputs: []string{spf, af, "cf_total", "num_years"},
		Func: func(in *core.Inputs) (float64, error) {
			return in.Float(spf) * in.Float(af) * in.Float("cf_total") * in.Float("num_years"), nil
		},
		Comp: comp,
		Doc:  fmt.Sprintf("%s * %s * cf_total * num_years", spf, af),
	})
}

// expected adds an Empirical-Bayes Result combining pred with the observed
// count. k computes the overdispersion parameter.
func (b *builder) expected(name, pred, obs string, k func(in *core.Inputs) float64, spec core.ElementSpec) {
	spec.Name = name
	spec.Inputs = append(spec.Inputs, pred, obs)
	spec.Func = func(in *core.Inputs) (float64, error) {
		if !in.Has(obs) {
			return -1, nil
		}
		o := in.Float(obs)
		if o == -1 {
			return -1, nil
		}
		return empiricalBayes(in.Float(pred), o, k(in)), nil
	}
	if spec.Doc == "" {
		spec.Doc = fmt.Sprintf("Empirical-Bayes combination of %s and %s", pred, obs)
	}
	b.result(spec)
}

// sumExpected adds a Result summing Empirical-Bayes components. The sum is
// -1 when any component is.
func (b *builder) sumExpected(name string, parts []string, comp map[string]string) {
	b.result(core.ElementSpec{
		Name:   name,
		Inputs: parts,
		Func: func(in *core.Inputs) (float64, error) {
			total := 0.0
			for _, p := range parts {
				v := in.Float(p)
				if v == -1 {
					return -1, nil
				}
				total += v
			}
			return total, nil
		},
		Comp: comp,
		Doc:  "Sum of the expected crash frequencies by crash type",
	})
}

// empiricalBayes weights a prediction against an observation, HSM eq. A-4/A-5.
func empiricalBayes(pred, obs, k float64) float64 {
	w := 1 / (1 + k*pred)
	return w*pred + (1-w)*obs
}

// product multiplies the named inputs.
func product(in *core.Inputs, keys ...string) float64 {
	p := 1.0
	for _, k := range keys {
		p *= in.Float(k)
	}
	return p
}

func sum(in *core.Inputs, keys ...string) float64 {
	s := 0.0
	for _, k := range keys {
		s += in.Float(k)
	}
	return s
}

// lighting is the common lighting AF, HSM eq. 10-24 and its variants:
// 1 - (1 - 0.72 pInj - 0.83 pPdo) pNight.
func lighting(pInj, pPdo, pNight float64) float64 {
	return 1 - (1-0.72*pInj-0.83*pPdo)*pNight
}

// powMin raises base to min(n, cap).
func powMin(base float64, n, cap int) float64 {
	return math.Pow(base, float64(min(n, cap)))
}

func comp(severity, crashType string) map[string]string {
	return map[string]string{"severity": severity, "crash_type": crashType}
}

func byFactype[T any](in *core.Inputs, table map[string]T) (T, error) {
	ft := in.String("factype")
	v, ok := table[ft]
	if !ok && in.Err() == nil {
		return v, fmt.Errorf("%w: factype=%s", core.ErrInvalidValue, ft)
	}
	return v, nil
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
