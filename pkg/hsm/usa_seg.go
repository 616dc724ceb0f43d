package hsm

import (
	"fmt"
	"math"

	"github.com/aretw0/cpm/pkg/core"
)

var driveways = []string{"maj_com", "min_com", "maj_ind", "min_ind", "maj_res", "min_res", "other"}

var usaSegParking = map[string]map[string]float64{
	"2u": {"parallel_res": 1.465, "parallel_com": 2.074, "angle_res": 3.428, "angle_com": 4.853},
	"3t": {"parallel_res": 1.465, "parallel_com": 2.074, "angle_res": 3.428, "angle_com": 4.853},
	"4u": {"parallel_res": 1.100, "parallel_com": 1.709, "angle_res": 2.574, "angle_com": 3.999},
	"4d": {"parallel_res": 1.100, "parallel_com": 1.709, "angle_res": 2.574, "angle_com": 3.999},
	"5t": {"parallel_res": 1.100, "parallel_com": 1.709, "angle_res": 2.574, "angle_com": 3.999},
}

// buildUSASeg builds the urban and suburban arterial segment model, HSM
// chapter 12.
func buildUSASeg(b *builder) {
	b.ref("calibration")
	b.ref("spf_mv_dwy")
	b.ref("spf_mv_ndwy")
	b.ref("spf_sv")
	b.ref("spf_ped")
	b.ref("spf_pdc")

	b.values("factype", []any{"2u", "3t", "4u", "4d", "5t"}, core.ValuesNotes(
		"2u: 2-lane undivided", "3t: 2-lane with TWLTL", "4u: 4-lane undivided",
		"4d: 4-lane divided", "5t: 4-lane with TWLTL"))
	for _, ft := range []string{"2u", "3t", "4u", "4d", "5t"} {
		hi := map[string]float64{"2u": 32600, "3t": 32900, "4u": 40100, "4d": 66000, "5t": 53800}[ft]
		b.limits("aadt", 1, hi, core.LimitsEnforce(core.EnforceWarn),
			core.LimitsWhen("factype", core.OneOf(ft)))
	}
	for _, d := range driveways {
		b.limits("n_"+d, 0, 100, core.LimitsEnforce(core.EnforceWarn))
	}
	b.limits("length", 0, 100, core.LimitsNotes("Segment length in miles"))
	b.values("parking_type", []any{"parallel_res", "parallel_com", "angle_res", "angle_com"},
		core.ValuesWhen("parking_prop", core.Range{Min: 0, Max: 1, Closed: core.ClosedRight}))
	b.values("parking_type", []any{"none"}, core.ValuesDefault("none"),
		core.ValuesEnforce(core.EnforceDefault),
		core.ValuesWhen("parking_prop", core.Range{Min: 0, Max: 0, Closed: core.ClosedBoth}))
	b.limits("parking_prop", 0, 1, core.LimitsNotes("Proportion of curb length with on-street parking"))
	b.limits("fo_density", 0, 1e3, core.LimitsNotes("Fixed objects per mile"))
	b.limits("fo_offset", 0, 30, core.LimitsEnforce(core.EnforceSnap),
		core.LimitsNotes("Average offset to fixed objects in feet"))
	b.limits("median_width", 0, 100, core.LimitsEnforce(core.EnforceSnap))
	b.limits("speed", 5, 100, core.LimitsNotes("Speed limit in MPH"))
	b.binary("lighting", "0: not present; 1: present")
	b.binary("ase", "Automated speed enforcement; 0: not present; 1: present")
	b.observed("obs_mv_dwy_kabco", "multiple-vehicle driveway KABCO")
	b.observed("obs_mv_ndwy_kabco", "multiple-vehicle non-driveway KABCO")
	b.observed("obs_sv_kabco", "single-vehicle KABCO")
	b.numYears()

	b.layer("spf")
	dwyInputs := []string{"aadt"}
	for _, d := range driveways {
		dwyInputs = append(dwyInputs, "n_"+d)
	}
	b.spf(core.ElementSpec{
		Name:   "spf_mv_dwy_kabco",
		Inputs: dwyInputs,
		Refs:   []core.RefQuery{core.Ref("spf_mv_dwy")},
		Func: func(in *core.Inputs) (float64, error) {
			scale := math.Pow(in.Float("aadt")/15000, in.Float("t"))
			n := 0.0
			for _, d := range driveways {
				n += in.Float("n_"+d) * in.Float("N_"+d) * scale
			}
			return n * in.Float("cf"), nil
		},
		Doc: "HSM eq. 12-16, table 12-7",
	})
	for _, crash := range []string{"mv_ndwy", "sv"} {
		b.spf(core.ElementSpec{
			Name:   "spf_" + crash + "_kabco",
			Inputs: []string{"aadt", "length"},
			Refs:   []core.RefQuery{core.Ref("spf_"+crash, "severity", "kabco")},
			Func:   usaSegSPF,
			Doc:    "HSM eq. 12-10, 12-13",
		})
		b.hidden(core.ElementSpec{
			Name:        "spf_" + crash + "_unadjusted",
			Inputs:      []string{"aadt", "length"},
			Refs:        []core.RefQuery{core.Ref("spf_"+crash).With("severity", "kabc", "o")},
			ExplodeRefs: true,
			Func:        usaSegSPF,
			Doc:         "Unadjusted severity SPFs, HSM eq. 12-10, 12-13",
		})
	}

	b.layer("spf_severity")
	for _, sev := range []string{"kabc", "o"} {
		b.spf(core.ElementSpec{
			Name:   "spf_mv_dwy_" + sev,
			Inputs: []string{"spf_mv_dwy_kabco"},
			Refs:   []core.RefQuery{core.Ref("spf_mv_dwy")},
			Func: func(in *core.Inputs) (float64, error) {
				return in.Float("spf_mv_dwy_kabco") * in.Float("p_"+sev), nil
			},
			Doc: "Severity proportion, HSM table 12-7",
		})
		for _, crash := range []string{"mv_ndwy", "sv"} {
			kabco, kabc, o := "spf_"+crash+"_kabco", "spf_"+crash+"_unadjusted_kabc", "spf_"+crash+"_unadjusted_o"
			b.spf(core.ElementSpec{
				Name:   "spf_" + crash + "_" + sev,
				Inputs: []string{kabco, kabc, o},
				Func: func(in *core.Inputs) (float64, error) {
					part := in.Float(kabc)
					if sev == "o" {
						part = in.Float(o)
					}
					return in.Float(kabco) * part / (in.Float(kabc) + in.Float(o)), nil
				},
				Doc: "HSM eq. 12-11, 12-12",
			})
		}
	}

	b.layer("spf_total")
	for _, sev := range []string{"kabco", "kabc", "o"} {
		parts := []string{"spf_mv_dwy_" + sev, "spf_mv_ndwy_" + sev, "spf_sv_" + sev}
		b.spf(core.ElementSpec{
			Name:   "spf_" + sev,
			Inputs: parts,
			Func:   func(in *core.Inputs) (float64, error) { return sum(in, parts...), nil },
			Doc:    "Sum of the vehicle crash SPFs",
		})
	}
	b.sub(core.ElementSpec{
		Name:   "speed_cat",
		Inputs: []string{"speed"},
		Label: func(in *core.Inputs) (string, error) {
			if in.Float("speed") <= 30 {
				return "<=30", nil
			}
			return ">30", nil
		},
		Doc: "Speed limit category of the pedestrian and bicycle factors",
	})

	b.layer("spf_nonmotorized")
	for _, crash := range []string{"ped", "pdc"} {
		b.spf(core.ElementSpec{
			Name:   "spf_" + crash,
			Inputs: []string{"spf_kabco"},
			Refs:   []core.RefQuery{core.Ref("spf_" + crash)},
			Func: func(in *core.Inputs) (float64, error) {
				return in.Float("spf_kabco") * in.Float("p_"+crash), nil
			},
			Doc: "HSM eq. 12-19, 12-20, tables 12-8, 12-9",
		})
	}
	b.af(core.ElementSpec{
		Name:   "af_parking",
		Inputs: []string{"factype", "parking_type", "parking_prop"},
		Func: func(in *core.Inputs) (float64, error) {
			if !in.Has("parking_type") {
				return 1, nil
			}
			typ := in.String("parking_type")
			if typ == "none" {
				return 1, nil
			}
			factors, err := byFactype(in, usaSegParking)
			if err != nil {
				return 0, err
			}
			f, ok := factors[typ]
			if !ok {
				return 0, fmt.Errorf("%w: parking_type=%s", core.ErrInvalidValue, typ)
			}
			return 1 + in.Float("parking_prop")*(f-1), nil
		},
		Doc: "HSM table 12-19, eq. 12-32",
	})
	b.af(core.ElementSpec{
		Name:   "af_fo",
		Inputs: []string{"factype", "fo_density", "fo_offset"},
		Func: func(in *core.Inputs) (float64, error) {
			p, err := byFactype(in, map[string]float64{"2u": 0.059, "3t": 0.034, "4u": 0.037, "4d": 0.036, "5t": 0.016})
			density := in.Float("fo_density")
			if density == 0 {
				return 1, err
			}
			offset := math.Pow(max(2, in.Float("fo_offset")), -0.614) * 0.3566
			return max(1, offset*density*p+(1-p)), err
		},
		Doc: "HSM tables 12-20, 12-21, eq. 12-33",
	})
	b.af(core.ElementSpec{
		Name:   "af_median_width",
		Inputs: []string{"factype", "median_width"},
		Func: func(in *core.Inputs) (float64, error) {
			w := in.Float("median_width")
			if in.String("factype") != "4d" || w == 0 {
				return 1, nil
			}
			if w <= 10 {
				return 1.01, nil
			}
			return step(w, []float64{20, 30, 40, 50, 60, 70, 80, 90, 100},
				[]float64{1.00, 0.99, 0.98, 0.97, 0.96, 0.95, 0.94, 0.93, 0.93, 0.92}), nil
		},
		Doc: "HSM table 12-22; 1.00 for undivided segments",
	})
	b.af(core.ElementSpec{
		Name:   "af_lighting",
		Inputs: []string{"factype", "lighting"},
		Func: func(in *core.Inputs) (float64, error) {
			p, err := byFactype(in, map[string][3]float64{
				"2u": {0.424, 0.576, 0.316},
				"3t": {0.429, 0.571, 0.304},
				"4u": {0.517, 0.483, 0.365},
				"4d": {0.364, 0.636, 0.410},
				"5t": {0.432, 0.568, 0.274},
			})
			if in.Int("lighting") != 1 {
				return 1, err
			}
			return lighting(p[0], p[1], p[2]), err
		},
		Doc: "HSM table 12-23, eq. 12-34",
	})
	b.af(core.ElementSpec{
		Name:   "af_ase",
		Inputs: []string{"ase"},
		Func: func(in *core.Inputs) (float64, error) {
			if in.Int("ase") == 1 {
				return 0.95, nil
			}
			return 1, nil
		},
		Doc: "HSM chapter 17",
	})

	afs := []string{"af_parking", "af_fo", "af_median_width", "af_lighting", "af_ase"}
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
	for _, crash := range []string{"mv_dwy", "mv_ndwy", "sv"} {
		b.predicted("pred_"+crash+"_kabco", "spf_"+crash+"_kabco", "af_total", comp("kabco", crash))
	}
	for _, sev := range []string{"kabco", "kabc", "o"} {
		b.predicted("pred_"+sev, "spf_"+sev, "af_total", comp(sev, "all"))
	}
	b.predicted("pred_ped", "spf_ped", "af_total", comp("kabco", "ped"))
	b.predicted("pred_pdc", "spf_pdc", "af_total", comp("kabco", "pdc"))

	b.layer("exp")
	kFromRef := func(in *core.Inputs) float64 { return in.Float("k") }
	b.expected("exp_mv_dwy_kabco", "pred_mv_dwy_kabco", "obs_mv_dwy_kabco", kFromRef, core.ElementSpec{
		Refs: []core.RefQuery{core.Ref("spf_mv_dwy")},
		Comp: comp("kabco", "mv_dwy"),
	})
	for _, crash := range []string{"mv_ndwy", "sv"} {
		b.expected("exp_"+crash+"_kabco", "pred_"+crash+"_kabco", "obs_"+crash+"_kabco", kFromRef, core.ElementSpec{
			Refs: []core.RefQuery{core.Ref("spf_"+crash, "severity", "kabco")},
			Comp: comp("kabco", crash),
		})
	}

	b.layer("exp_total")
	b.sumExpected("exp_kabco", []string{"exp_mv_dwy_kabco", "exp_mv_ndwy_kabco", "exp_sv_kabco"}, comp("kabco", "all"))
}

// usaSegSPF is HSM eq. 12-10: exp(a + b ln(AADT) + ln(L)).
func usaSegSPF(in *core.Inputs) (float64, error) {
	return math.Exp(in.Float("a")+in.Float("b")*math.Log(in.Float("aadt"))+
		math.Log(in.Float("length"))) * in.Float("cf"), nil
}
