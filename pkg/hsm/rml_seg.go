package hsm

import (
	"math"

	"github.com/aretw0/cpm/pkg/core"
)

// buildRMLSeg builds the rural multilane segment model, HSM chapter 11.
func buildRMLSeg(b *builder) {
	b.ref("calibration")
	b.ref("spf")

	b.limits("aadt", 1, 89300, core.LimitsEnforce(core.EnforceWarn),
		core.LimitsWhen("factype", core.OneOf("4d")))
	b.limits("aadt", 1, 33200, core.LimitsEnforce(core.EnforceWarn),
		core.LimitsWhen("factype", core.OneOf("4u")))
	b.values("factype", []any{"4d", "4u"}, core.ValuesNotes("4d: 4-lane divided", "4u: 4-lane undivided"))
	b.limits("length", 0, 100, core.LimitsNotes("Segment length in miles"))
	b.limits("lane_width", 6, 18)
	b.limits("shld_width", 0, 20)
	b.values("shld_type", []any{"paved", "gravel", "composite", "turf"})
	b.limits("sideslope", 1, 10, core.LimitsNotes("Horizontal run of sideslope (1V:XH)"))
	b.limits("median_width", 0, 100)
	b.binary("lighting", "0: not present; 1: present")
	b.binary("ase", "Automated speed enforcement; 0: not present; 1: present")
	b.observed("obs_kabco", "KABCO")
	b.numYears()

	b.layer("spf")
	b.spf(core.ElementSpec{
		Name:        "spf",
		Inputs:      []string{"aadt", "length"},
		Refs:        []core.RefQuery{core.Ref("spf").With("severity", "kabco", "kabc", "kab")},
		ExplodeRefs: true,
		Func: func(in *core.Inputs) (float64, error) {
			return math.Exp(in.Float("a")+in.Float("b")*math.Log(in.Float("aadt"))+
				math.Log(in.Float("length"))) * in.Float("cf"), nil
		},
		Doc: "HSM eq. 11-7, 11-9",
	})

	b.layer("spf_o")
	b.spf(core.ElementSpec{
		Name:   "spf_o",
		Inputs: []string{"spf_kabco", "spf_kabc"},
		Func: func(in *core.Inputs) (float64, error) {
			return in.Float("spf_kabco") - in.Float("spf_kabc"), nil
		},
		Doc: "Property damage only crashes, KABCO less KABC",
	})
	b.af(core.ElementSpec{
		Name:   "af_lane_width",
		Inputs: []string{"factype", "lane_width", "aadt"},
		Func: func(in *core.Inputs) (float64, error) {
			w, aadt := in.Float("lane_width"), in.Float("aadt")
			var rel, p float64
			switch in.String("factype") {
			case "4d":
				p = 0.50
				switch {
				case w < 10:
					rel = ramp(aadt, 1.03, 1.25, 1.38e-4)
				case w < 11:
					rel = ramp(aadt, 1.01, 1.15, 8.75e-5)
				case w < 12:
					rel = ramp(aadt, 1.01, 1.03, 1.25e-5)
				default:
					rel = 1
				}
			default:
				p = 0.27
				switch {
				case w < 10:
					rel = ramp(aadt, 1.04, 1.38, 2.13e-4)
				case w < 11:
					rel = ramp(aadt, 1.02, 1.23, 1.31e-4)
				case w < 12:
					rel = ramp(aadt, 1.01, 1.04, 1.88e-5)
				default:
					rel = 1
				}
			}
			return (rel-1)*p + 1, nil
		},
		Doc: "HSM eq. 11-13, 11-16, tables 11-11, 11-16",
	})
	b.af(core.ElementSpec{
		Name:   "af_shld",
		Inputs: []string{"factype", "shld_type", "shld_width", "aadt"},
		Func: func(in *core.Inputs) (float64, error) {
			w, typ := in.Float("shld_width"), in.String("shld_type")
			if in.String("factype") == "4d" {
				if typ != "paved" {
					return 1, nil
				}
				return step(w, []float64{2, 4, 6, 8}, []float64{1.18, 1.13, 1.09, 1.04, 1.00}), nil
			}
			af, err := rtlShoulderType(w, typ)
			if err != nil {
				return 0, err
			}
			return (rtlShoulderWidth(w, in.Float("aadt"))*af-1)*0.27 + 1, nil
		},
		Doc: "HSM eq. 11-14, tables 11-12, 11-13, 11-17; unpaved shoulders of divided segments are 1.00",
	})
	b.af(core.ElementSpec{
		Name:   "af_sideslope",
		Inputs: []string{"factype", "sideslope"},
		Func: func(in *core.Inputs) (float64, error) {
			if in.String("factype") == "4d" {
				return 1, nil
			}
			return step(in.Float("sideslope"), []float64{3, 4, 5, 6, 7}, []float64{1.18, 1.15, 1.12, 1.09, 1.05, 1.00}), nil
		},
		Doc: "HSM table 11-14",
	})
	b.af(core.ElementSpec{
		Name:   "af_lighting",
		Inputs: []string{"factype", "lighting"},
		Func: func(in *core.Inputs) (float64, error) {
			p, err := byFactype(in, map[string][3]float64{"4d": {0.323, 0.677, 0.426}, "4u": {0.361, 0.639, 0.255}})
			if in.Int("lighting") != 1 {
				return 1, err
			}
			return lighting(p[0], p[1], p[2]), err
		},
		Doc: "HSM eq. 11-15, 11-17, tables 11-15, 11-19",
	})
	b.af(core.ElementSpec{
		Name:   "af_ase",
		Inputs: []string{"factype", "ase"},
		Func: func(in *core.Inputs) (float64, error) {
			af, err := byFactype(in, map[string]float64{"4d": 0.94, "4u": 0.95})
			if in.Int("ase") != 1 {
				return 1, err
			}
			return af, err
		},
		Doc: "Automated speed enforcement, HSM chapter 11",
	})
	b.af(core.ElementSpec{
		Name:   "af_median_width",
		Inputs: []string{"factype", "median_width"},
		Func: func(in *core.Inputs) (float64, error) {
			if in.String("factype") != "4d" {
				return 1, nil
			}
			w := in.Float("median_width")
			for i, upper := range []float64{10, 20, 30, 40, 50, 60, 70, 80} {
				if w <= upper {
					return []float64{1.04, 1.02, 1.00, 0.99, 0.97, 0.96, 0.96, 0.95}[i], nil
				}
			}
			return 0.94, nil
		},
		Doc: "HSM table 11-18",
	})

	afs := []string{"af_lane_width", "af_shld", "af_sideslope", "af_lighting", "af_ase", "af_median_width"}
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
	b.predicted("pred_kab", "spf_kab", "af_total", comp("kab", "all"))
	b.predicted("pred_o", "spf_o", "af_total", comp("o", "all"))

	b.layer("exp")
	b.expected("exp_kabco", "pred_kabco", "obs_kabco",
		func(in *core.Inputs) float64 { return 1 / math.Exp(in.Float("c")+math.Log(in.Float("length"))) },
		core.ElementSpec{
			Inputs: []string{"length"},
			Refs:   []core.RefQuery{core.Ref("spf", "severity", "kabco")},
			Comp:   comp("kabco", "all"),
			Doc:    "HSM eq. A-4, A-5 with k from eq. 11-10",
		})
}

// step returns out[i] for the first upper bound x falls below, or the last
// value past every bound.
func step(x float64, uppers, out []float64) float64 {
	for i, u := range uppers {
		if x < u {
			return out[i]
		}
	}
	return out[len(out)-1]
}
