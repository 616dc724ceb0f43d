package hsm

import (
	"math"

	"github.com/aretw0/cpm/pkg/core"
)

// buildRTLInt builds the rural two-lane intersection model, HSM chapter 10.
func buildRTLInt(b *builder) {
	b.ref("calibration")
	b.ref("spf")
	b.ref("dist_all")

	for _, lim := range []struct {
		factype  string
		maj, min float64
	}{
		{"3st", 19500, 4300},
		{"4st", 14700, 3500},
		{"4sg", 25200, 12500},
	} {
		b.limits("aadt_maj", 1, lim.maj, core.LimitsEnforce(core.EnforceWarn),
			core.LimitsWhen("factype", core.OneOf(lim.factype)))
		b.limits("aadt_min", 1, lim.min, core.LimitsEnforce(core.EnforceWarn),
			core.LimitsWhen("factype", core.OneOf(lim.factype)))
	}
	b.values("factype", []any{"3st", "4st", "4sg"}, core.ValuesNotes(
		"3st: 3-leg stop-controlled", "4st: 4-leg stop-controlled", "4sg: 4-leg signalized"))
	b.limits("skew", 0, 90)
	b.binary("lighting", "0: not present; 1: present")
	turnLanes(b, map[string]float64{"3st": 3, "4st": 4, "4sg": 4})
	b.observed("obs_kabco", "KABCO")
	b.numYears()

	b.layer("spf")
	b.spf(core.ElementSpec{
		Name:   "spf_kabco",
		Inputs: []string{"aadt_maj", "aadt_min"},
		Refs:   []core.RefQuery{core.Ref("spf", "severity", "kabco")},
		Func: func(in *core.Inputs) (float64, error) {
			return math.Exp(in.Float("a")+in.Float("b")*math.Log(in.Float("aadt_maj"))+
				in.Float("c")*math.Log(in.Float("aadt_min"))) * in.Float("cf"), nil
		},
		Doc: "HSM eq. 10-8 to 10-10",
	})

	b.layer("spf_severity")
	b.spf(core.ElementSpec{
		Name:   "spf_kabc",
		Inputs: []string{"spf_kabco"},
		Refs:   []core.RefQuery{core.Ref("dist_all")},
		Func: func(in *core.Inputs) (float64, error) {
			return in.Float("spf_kabco") * sum(in, "p_k", "p_a", "p_b", "p_c"), nil
		},
		Doc: "Severity distribution, HSM table 10-5",
	})
	b.spf(core.ElementSpec{
		Name:   "spf_o",
		Inputs: []string{"spf_kabco"},
		Refs:   []core.RefQuery{core.Ref("dist_all")},
		Func: func(in *core.Inputs) (float64, error) {
			return in.Float("spf_kabco") * in.Float("p_o"), nil
		},
		Doc: "Severity distribution, HSM table 10-5",
	})
	b.af(core.ElementSpec{
		Name:   "af_skew",
		Inputs: []string{"factype", "skew"},
		Func: func(in *core.Inputs) (float64, error) {
			coef, err := byFactype(in, map[string]float64{"3st": 0.0040, "4st": 0.0054, "4sg": 0})
			return math.Exp(coef * in.Float("skew")), err
		},
		Doc: "HSM eq. 10-22, 10-23",
	})
	b.af(core.ElementSpec{
		Name:   "af_left_turn_lanes",
		Inputs: []string{"factype", "left_turn_lanes"},
		Func: func(in *core.Inputs) (float64, error) {
			f, err := byFactype(in, map[string]turnFactor{"3st": {0.56, 2}, "4st": {0.72, 2}, "4sg": {0.82, 4}})
			return f.apply(in.Int("left_turn_lanes")), err
		},
		Doc: "HSM table 10-13",
	})
	b.af(core.ElementSpec{
		Name:   "af_right_turn_lanes",
		Inputs: []string{"factype", "right_turn_lanes"},
		Func: func(in *core.Inputs) (float64, error) {
			f, err := byFactype(in, map[string]turnFactor{"3st": {0.86, 2}, "4st": {0.86, 2}, "4sg": {0.96, 4}})
			return f.apply(in.Int("right_turn_lanes")), err
		},
		Doc: "HSM table 10-14",
	})
	b.af(core.ElementSpec{
		Name:   "af_lighting",
		Inputs: []string{"factype", "lighting"},
		Func: func(in *core.Inputs) (float64, error) {
			night, err := byFactype(in, map[string]float64{"3st": 0.260, "4st": 0.244, "4sg": 0.286})
			if in.Int("lighting") == 0 {
				return 1, err
			}
			return 1 - 0.38*in.FloatOr("p_night", night), err
		},
		Doc: "HSM table 10-15, eq. 10-24; p_night overrides the default night crash proportion",
	})

	afs := []string{"af_skew", "af_left_turn_lanes", "af_right_turn_lanes", "af_lighting"}
	b.layer("af_total")
	b.af(core.ElementSpec{
		Name:   "af_total",
		Inputs: afs,
		Func:   func(in *core.Inputs) (float64, error) { return product(in, afs...), nil },
		Doc:    "Product of all adjustment factors",
	})

	b.layer("cf")
	b.calibrationFactor()

	b.layer("pred")
	b.predicted("pred_kabco", "spf_kabco", "af_total", comp("kabco", "all"))
	b.predicted("pred_kabc", "spf_kabc", "af_total", comp("kabc", "all"))
	b.predicted("pred_o", "spf_o", "af_total", comp("o", "all"))

	b.layer("exp")
	b.expected("exp_kabco", "pred_kabco", "obs_kabco",
		func(in *core.Inputs) float64 { return in.Float("k") },
		core.ElementSpec{
			Refs: []core.RefQuery{core.Ref("spf", "severity", "kabco")},
			Comp: comp("kabco", "all"),
		})
}

// turnFactor is a per-lane AF applied to at most cap lanes.
type turnFactor struct {
	base float64
	cap  int
}

func (f turnFactor) apply(lanes int) float64 {
	if f.cap == 0 {
		return 1
	}
	return powMin(f.base, lanes, f.cap)
}

// turnLanes declares left and right turn lane counts bounded by the number
// of legs of each facility type.
func turnLanes(b *builder, legCounts map[string]float64) {
	for _, key := range []string{"left_turn_lanes", "right_turn_lanes"} {
		for _, n := range []float64{3, 4} {
			types := factypesWithLegs(legCounts, n)
			if len(types) == 0 {
				continue
			}
			b.limits(key, 0, n, core.LimitsDType(core.Int),
				core.LimitsWhen("factype", core.OneOf(types...)))
		}
	}
}

func factypesWithLegs(legCounts map[string]float64, n float64) []any {
	var out []any
	for _, ft := range sortedKeys(legCounts) {
		if legCounts[ft] == n {
			out = append(out, ft)
		}
	}
	return out
}
