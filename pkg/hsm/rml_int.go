package hsm

import (
	"math"

	"github.com/aretw0/cpm/pkg/core"
)

// skewFactor is the intersection angle AF (s*x)/(y + s*x) + 1.
type skewFactor struct{ x, y float64 }

func (f skewFactor) apply(skew float64) float64 {
	if f.x == 0 {
		return 1
	}
	s := math.Abs(skew)
	return f.x*s/(f.y+f.x*s) + 1
}

// rmlSeverity holds the severity specific AFs of the rural multilane
// intersection model.
type rmlSeverity struct {
	severity    string
	skew        map[string]skewFactor
	left, right map[string]turnFactor
}

var rmlSeverities = []rmlSeverity{
	{
		severity: "kabco",
		skew:     map[string]skewFactor{"3st": {0.016, 0.98}, "4st": {0.053, 1.43}, "4sg": {}},
		left:     map[string]turnFactor{"3st": {0.56, 1}, "4st": {0.72, 2}, "4sg": {}},
		right:    map[string]turnFactor{"3st": {0.86, 1}, "4st": {0.86, 2}, "4sg": {}},
	},
	{
		severity: "kabc",
		skew:     map[string]skewFactor{"3st": {0.017, 0.52}, "4st": {0.048, 0.72}, "4sg": {}},
		left:     map[string]turnFactor{"3st": {0.45, 1}, "4st": {0.65, 2}, "4sg": {}},
		right:    map[string]turnFactor{"3st": {0.77, 1}, "4st": {0.77, 2}, "4sg": {}},
	},
}

// buildRMLInt builds the rural multilane intersection model, HSM chapter 11.
func buildRMLInt(b *builder) {
	b.ref("calibration")
	b.ref("spf")

	for _, lim := range []struct {
		factype  string
		maj, min float64
	}{
		{"3st", 78300, 23000},
		{"4st", 78300, 7400},
		{"4sg", 43500, 18500},
	} {
		b.limits("aadt_maj", 1, lim.maj, core.LimitsEnforce(core.EnforceWarn),
			core.LimitsWhen("factype", core.OneOf(lim.factype)))
		b.limits("aadt_min", 1, lim.min, core.LimitsEnforce(core.EnforceWarn),
			core.LimitsWhen("factype", core.OneOf(lim.factype)))
	}
	b.values("factype", []any{"3st", "4st", "4sg"}, core.ValuesNotes(
		"3st: 3-leg stop-controlled", "4st: 4-leg stop-controlled", "4sg: 4-leg signalized"))
	b.limits("skew", -90, 90, core.LimitsNotes("Intersection skew angle in degrees"))
	b.binary("lighting", "0: not present; 1: present")
	turnLanes(b, map[string]float64{"3st": 3, "4st": 4, "4sg": 4})
	b.observed("obs_kabco", "KABCO")
	b.numYears()

	b.layer("spf")
	b.spf(core.ElementSpec{
		Name:        "spf",
		Inputs:      []string{"aadt_maj", "aadt_min"},
		Refs:        []core.RefQuery{core.Ref("spf").With("severity", "kabco", "kabc", "kab")},
		ExplodeRefs: true,
		Func: func(in *core.Inputs) (float64, error) {
			maj, mnr := in.Float("aadt_maj"), in.Float("aadt_min")
			return math.Exp(in.Float("a")+in.Float("b")*math.Log(maj)+in.Float("c")*math.Log(mnr)+
				in.Float("d")*math.Log(maj+mnr)) * in.Float("cf"), nil
		},
		Doc: "HSM eq. 11-11, 11-12",
	})

	for _, sev := range rmlSeverities {
		b.af(core.ElementSpec{
			Name:   "af_skew_" + sev.severity,
			Inputs: []string{"factype", "skew"},
			Func: func(in *core.Inputs) (float64, error) {
				f, err := byFactype(in, sev.skew)
				return f.apply(in.Float("skew")), err
			},
			Doc: "HSM tables 11-20, 11-21, eq. 11-18 to 11-21",
		})
		b.af(core.ElementSpec{
			Name:   "af_left_turn_lanes_" + sev.severity,
			Inputs: []string{"factype", "left_turn_lanes"},
			Func: func(in *core.Inputs) (float64, error) {
				f, err := byFactype(in, sev.left)
				return f.apply(in.Int("left_turn_lanes")), err
			},
			Doc: "HSM table 11-22",
		})
		b.af(core.ElementSpec{
			Name:   "af_right_turn_lanes_" + sev.severity,
			Inputs: []string{"factype", "right_turn_lanes"},
			Func: func(in *core.Inputs) (float64, error) {
				f, err := byFactype(in, sev.right)
				return f.apply(in.Int("right_turn_lanes")), err
			},
			Doc: "HSM table 11-23",
		})
	}
	b.af(core.ElementSpec{
		Name:   "af_lighting",
		Inputs: []string{"factype", "lighting"},
		Func: func(in *core.Inputs) (float64, error) {
			night, err := byFactype(in, map[string]float64{"3st": 0.276, "4st": 0.273, "4sg": 0})
			if in.Int("lighting") == 0 || night == 0 {
				return 1, err
			}
			return 1 - 0.38*in.FloatOr("p_night", night), err
		},
		Doc: "HSM eq. 11-22; p_night overrides the default night crash proportion",
	})

	b.layer("af_total")
	for _, sev := range rmlSeverities {
		afs := []string{"af_skew_" + sev.severity, "af_left_turn_lanes_" + sev.severity,
			"af_right_turn_lanes_" + sev.severity, "af_lighting"}
		b.af(core.ElementSpec{
			Name:   "af_total_" + sev.severity,
			Inputs: afs,
			Func:   func(in *core.Inputs) (float64, error) { return product(in, afs...), nil },
			Doc:    "Product of the " + sev.severity + " adjustment factors",
		})
	}

	b.layer("cf")
	b.calibrationFactor()

	b.layer("pred")
	b.predicted("pred_kabco", "spf_kabco", "af_total_kabco", comp("kabco", "all"))
	b.predicted("pred_kabc", "spf_kabc", "af_total_kabc", comp("kabc", "all"))
	b.predicted("pred_kab", "spf_kab", "af_total_kabc", comp("kab", "all"))

	b.layer("pred_o")
	b.result(core.ElementSpec{
		Name:   "pred_o",
		Inputs: []string{"pred_kabco", "pred_kabc"},
		Func: func(in *core.Inputs) (float64, error) {
			return in.Float("pred_kabco") - in.Float("pred_kabc"), nil
		},
		Comp: comp("o", "all"),
		Doc:  "Property damage only crashes, KABCO less KABC",
	})

	b.layer("exp")
	b.expected("exp_kabco", "pred_kabco", "obs_kabco",
		func(in *core.Inputs) float64 { return in.Float("k") },
		core.ElementSpec{
			Refs: []core.RefQuery{core.Ref("spf", "severity", "kabco")},
			Comp: comp("kabco", "all"),
		})
}
