package hsm

import (
	"fmt"
	"math"

	"github.com/aretw0/cpm/pkg/core"
)

func signalized(factype string) bool { return factype == "3sg" || factype == "4sg" }

// legs is the number of intersection legs encoded in the facility type.
func legs(factype string) int {
	if factype == "" {
		return 0
	}
	return int(factype[0] - '0')
}

// approaches reads a per-approach count and rejects more approaches than legs.
func approaches(in *core.Inputs, key string) (int, error) {
	ft := in.String("factype")
	n := in.Int(key)
	if in.Err() == nil && n > legs(ft) {
		return 0, fmt.Errorf("%w: %s=%d exceeds the approaches of a %s intersection", core.ErrInvalidValue, key, n, ft)
	}
	return n, nil
}

// buildUSAInt builds the urban and suburban arterial intersection model, HSM
// chapter 12.
func buildUSAInt(b *builder) {
	b.ref("calibration")
	b.ref("spf_mv")
	b.ref("spf_sv")
	b.ref("spf_ped")
	b.ref("spf_pdc")
	b.ref("dist_mv")

	for _, lim := range []struct {
		factype  string
		maj, min float64
	}{
		{"3st", 45700, 9300},
		{"4st", 46800, 5900},
		{"3sg", 58100, 16400},
		{"4sg", 67700, 33400},
	} {
		b.limits("aadt_maj", 1, lim.maj, core.LimitsEnforce(core.EnforceWarn),
			core.LimitsWhen("factype", core.OneOf(lim.factype)))
		b.limits("aadt_min", 1, lim.min, core.LimitsEnforce(core.EnforceWarn),
			core.LimitsWhen("factype", core.OneOf(lim.factype)))
	}
	b.limits("ped_vol", 1, 34200, core.LimitsEnforce(core.EnforceWarn),
		core.LimitsNotes("Daily pedestrian volume crossing all legs"))
	b.limits("ped_lanes_crossed", 0, 16, core.LimitsDType(core.Int),
		core.LimitsNotes("Maximum number of lanes to be crossed by a pedestrian"))
	b.values("factype", []any{"3st", "4st", "3sg", "4sg"}, core.ValuesNotes(
		"3st: 3-leg stop-controlled", "4st: 4-leg stop-controlled",
		"3sg: 3-leg signalized", "4sg: 4-leg signalized"))

	legCounts := map[string]float64{"3st": 3, "3sg": 3, "4st": 4, "4sg": 4}
	turnLanes(b, legCounts)
	for _, n := range []float64{3, 4} {
		when := core.LimitsWhen("factype", core.OneOf(factypesWithLegs(legCounts, n)...))
		b.limits("left_turn_prot", 0, n, core.LimitsDType(core.Int),
			core.LimitsSubtract("left_turn_prot_perm"), when,
			core.LimitsNotes("Approaches with protected left-turn phasing"))
		b.limits("left_turn_prot_perm", 0, n, core.LimitsDType(core.Int), when,
			core.LimitsNotes("Approaches with protected/permitted left-turn phasing"))
		b.limits("right_on_red_prohibited", 0, n, core.LimitsDType(core.Int), when,
			core.LimitsNotes("Approaches prohibiting right turns on red"))
	}
	b.binary("red_light_cameras", "0: not present; 1: present")
	b.binary("lighting", "0: not present; 1: present")
	b.limits("bus_stops", 0, 20, core.LimitsEnforce(core.EnforceSnap), core.LimitsDType(core.Int),
		core.LimitsNotes("Bus stops within 1,000 ft of the intersection"))
	b.limits("schools", 0, 1, core.LimitsEnforce(core.EnforceSnap), core.LimitsDType(core.Int),
		core.LimitsNotes("Schools within 1,000 ft of the intersection"))
	b.limits("alcohol_sales", 0, 20, core.LimitsEnforce(core.EnforceSnap), core.LimitsDType(core.Int),
		core.LimitsNotes("Alcohol sales establishments within 1,000 ft of the intersection"))
	b.observed("obs_mv_kabco", "multiple-vehicle KABCO")
	b.observed("obs_sv_kabco", "single-vehicle KABCO")
	b.numYears()

	b.layer("spf")
	for _, crash := range []string{"mv", "sv"} {
		b.spf(core.ElementSpec{
			Name:   "spf_" + crash + "_kabco",
			Inputs: []string{"aadt_maj", "aadt_min"},
			Refs:   []core.RefQuery{core.Ref("spf_"+crash, "severity", "kabco")},
			Func:   usaIntSPF,
			Doc:    "HSM eq. 12-21, 12-24",
		})
		b.hidden(core.ElementSpec{
			Name:        "spf_" + crash + "_unadjusted",
			Inputs:      []string{"aadt_maj", "aadt_min"},
			Refs:        []core.RefQuery{core.Ref("spf_"+crash).With("severity", "kabc", "o")},
			ExplodeRefs: true,
			Func:        usaIntSPF,
			Doc:         "Unadjusted severity SPFs, HSM eq. 12-21, 12-24",
		})
	}

	b.layer("spf_severity")
	for _, crash := range []string{"mv", "sv"} {
		kabco, kabc, o := "spf_"+crash+"_kabco", "spf_"+crash+"_unadjusted_kabc", "spf_"+crash+"_unadjusted_o"
		for _, sev := range []string{"kabc", "o"} {
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
				Doc: "HSM eq. 12-22, 12-23",
			})
		}
	}

	b.layer("spf_total")
	for _, sev := range []string{"kabco", "kabc", "o"} {
		parts := []string{"spf_mv_" + sev, "spf_sv_" + sev}
		b.spf(core.ElementSpec{
			Name:   "spf_" + sev,
			Inputs: parts,
			Func:   func(in *core.Inputs) (float64, error) { return sum(in, parts...), nil },
			Doc:    "Sum of the vehicle crash SPFs",
		})
	}

	b.layer("spf_ped_parts")
	b.sub(core.ElementSpec{
		Name:   "spf_ped_sg",
		Inputs: []string{"factype", "ped_vol", "ped_lanes_crossed", "aadt_maj", "aadt_min"},
		Refs:   []core.RefQuery{core.Ref("spf_ped")},
		Func: func(in *core.Inputs) (float64, error) {
			if !signalized(in.String("factype")) {
				return 0, nil
			}
			maj, mnr := in.Float("aadt_maj"), in.Float("aadt_min")
			return math.Exp(in.Float("a")+in.Float("b")*math.Log(maj+mnr)+in.Float("c")*math.Log(mnr/maj)+
				in.Float("d")*math.Log(in.Float("ped_vol"))+in.Float("e")*in.Float("ped_lanes_crossed")) *
				in.Float("cf"), nil
		},
		Doc: "HSM eq. 12-29; zero at stop-controlled intersections",
	})
	b.sub(core.ElementSpec{
		Name:   "spf_ped_st",
		Inputs: []string{"spf_kabco"},
		Refs:   []core.RefQuery{core.Ref("spf_ped")},
		Func: func(in *core.Inputs) (float64, error) {
			return in.Float("spf_kabco") * in.Float("p_ped"), nil
		},
		Doc: "HSM eq. 12-30; zero at signalized intersections",
	})

	b.layer("spf_nonmotorized")
	b.spf(core.ElementSpec{
		Name:   "spf_ped",
		Inputs: []string{"factype", "spf_ped_sg", "spf_ped_st"},
		Func: func(in *core.Inputs) (float64, error) {
			if signalized(in.String("factype")) {
				return in.Float("spf_ped_sg"), nil
			}
			return in.Float("spf_ped_st"), nil
		},
		Doc: "Signalized or stop-controlled vehicle-pedestrian SPF",
	})
	b.spf(core.ElementSpec{
		Name:   "spf_pdc",
		Inputs: []string{"spf_kabco"},
		Refs:   []core.RefQuery{core.Ref("spf_pdc")},
		Func: func(in *core.Inputs) (float64, error) {
			return in.Float("spf_kabco") * in.Float("p_pdc"), nil
		},
		Doc: "HSM eq. 12-31",
	})
	b.af(core.ElementSpec{
		Name:   "af_left_turn_lanes",
		Inputs: []string{"factype", "left_turn_lanes"},
		Func: func(in *core.Inputs) (float64, error) {
			n, err := approaches(in, "left_turn_lanes")
			if err != nil {
				return 0, err
			}
			f, err := byFactype(in, map[string]turnFactor{"3st": {0.67, 2}, "4st": {0.73, 2}, "3sg": {0.93, 3}, "4sg": {0.90, 4}})
			return f.apply(n), err
		},
		Doc: "HSM table 12-24",
	})
	b.af(core.ElementSpec{
		Name:   "af_left_turn_phasing",
		Inputs: []string{"factype", "left_turn_prot", "left_turn_prot_perm"},
		Func: func(in *core.Inputs) (float64, error) {
			ft := in.String("factype")
			prot, perm := in.Int("left_turn_prot"), in.Int("left_turn_prot_perm")
			if in.Err() == nil && prot+perm > legs(ft) {
				return 0, fmt.Errorf("%w: %d approaches with left-turn phasing exceed the approaches of a %s intersection",
					core.ErrInvalidValue, prot+perm, ft)
			}
			if !signalized(ft) {
				return 1, nil
			}
			return math.Pow(0.94, float64(prot)) * math.Pow(0.99, float64(perm)), nil
		},
		Doc: "HSM table 12-25",
	})
	b.af(core.ElementSpec{
		Name:   "af_right_turn_lanes",
		Inputs: []string{"factype", "right_turn_lanes"},
		Func: func(in *core.Inputs) (float64, error) {
			n, err := approaches(in, "right_turn_lanes")
			if err != nil {
				return 0, err
			}
			f, err := byFactype(in, map[string]turnFactor{"3st": {0.86, 2}, "4st": {0.86, 2}, "3sg": {0.96, 2}, "4sg": {0.96, 4}})
			return f.apply(n), err
		},
		Doc: "HSM table 12-26",
	})
	b.af(core.ElementSpec{
		Name:   "af_right_on_red",
		Inputs: []string{"factype", "right_on_red_prohibited"},
		Func: func(in *core.Inputs) (float64, error) {
			n, err := approaches(in, "right_on_red_prohibited")
			if err != nil || !signalized(in.String("factype")) {
				return 1, err
			}
			return math.Pow(0.98, float64(n)), nil
		},
		Doc: "HSM eq. 12-35",
	})
	b.af(core.ElementSpec{
		Name:   "af_lighting",
		Inputs: []string{"factype", "lighting"},
		Func: func(in *core.Inputs) (float64, error) {
			night, err := byFactype(in, map[string]float64{"3st": 0.238, "4st": 0.229, "3sg": 0.235, "4sg": 0.235})
			if in.Int("lighting") == 0 {
				return 1, err
			}
			return 1 - 0.38*night, err
		},
		Doc: "HSM table 12-27, eq. 12-36",
	})
	b.af(core.ElementSpec{
		Name:   "af_red_light_cameras",
		Inputs: []string{"factype", "red_light_cameras", "spf_mv_kabc", "spf_mv_o", "spf_sv_kabco"},
		Refs:   []core.RefQuery{core.Ref("dist_mv")},
		Func: func(in *core.Inputs) (float64, error) {
			if in.Int("red_light_cameras") == 0 || !signalized(in.String("factype")) {
				return 1, nil
			}
			kabc, o, sv := in.Float("spf_mv_kabc"), in.Float("spf_mv_o"), in.Float("spf_sv_kabco")
			total := kabc + o + sv
			pAngle := (in.Float("p_ang_kabc")*kabc + in.Float("p_ang_o")*o) / total
			pRear := (in.Float("p_re_kabc")*kabc + in.Float("p_re_o")*o) / total
			return 1 - pAngle*(1-0.74) - pRear*(1-1.18), nil
		},
		Doc: "HSM table 12-11, eq. 12-37 to 12-39",
	})
	b.af(core.ElementSpec{
		Name:   "af_bus_stops",
		Inputs: []string{"factype", "bus_stops"},
		Func: func(in *core.Inputs) (float64, error) {
			n := in.Int("bus_stops")
			switch {
			case !signalized(in.String("factype")) || n == 0:
				return 1, nil
			case n < 3:
				return 2.78, nil
			default:
				return 4.15, nil
			}
		},
		Doc: "HSM table 12-28; vehicle-pedestrian crashes at signalized intersections",
	})
	b.af(core.ElementSpec{
		Name:   "af_schools",
		Inputs: []string{"factype", "schools"},
		Func: func(in *core.Inputs) (float64, error) {
			if !signalized(in.String("factype")) || in.Int("schools") == 0 {
				return 1, nil
			}
			return 1.35, nil
		},
		Doc: "HSM table 12-29; vehicle-pedestrian crashes at signalized intersections",
	})
	b.af(core.ElementSpec{
		Name:   "af_alcohol_sales",
		Inputs: []string{"factype", "alcohol_sales"},
		Func: func(in *core.Inputs) (float64, error) {
			n := in.Int("alcohol_sales")
			switch {
			case !signalized(in.String("factype")) || n == 0:
				return 1, nil
			case n < 9:
				return 1.12, nil
			default:
				return 1.56, nil
			}
		},
		Doc: "HSM table 12-30; vehicle-pedestrian crashes at signalized intersections",
	})

	afs := []string{"af_left_turn_lanes", "af_left_turn_phasing", "af_right_turn_lanes",
		"af_right_on_red", "af_lighting", "af_red_light_cameras"}
	pedAFs := []string{"af_bus_stops", "af_schools", "af_alcohol_sales"}
	b.layer("af_total")
	b.af(core.ElementSpec{
		Name:   "af_total",
		Inputs: afs,
		Func:   func(in *core.Inputs) (float64, error) { return product(in, afs...), nil },
		Doc:    "Product of the adjustment factors of vehicle crashes",
	})
	b.af(core.ElementSpec{
		Name:   "af_ped",
		Inputs: pedAFs,
		Func:   func(in *core.Inputs) (float64, error) { return product(in, pedAFs...), nil },
		Doc:    "Product of the adjustment factors of vehicle-pedestrian crashes",
	})

	b.layer("cf")
	b.calibrationFactor()

	b.layer("pred")
	b.predicted("pred_mv_kabco", "spf_mv_kabco", "af_total", comp("kabco", "mv"))
	b.predicted("pred_sv_kabco", "spf_sv_kabco", "af_total", comp("kabco", "sv"))
	for _, sev := range []string{"kabco", "kabc", "o"} {
		b.predicted("pred_"+sev, "spf_"+sev, "af_total", comp(sev, "all"))
	}
	b.result(core.ElementSpec{
		Name:   "pred_ped",
		Inputs: []string{"factype", "spf_ped", "af_ped", "af_total", "cf_total", "num_years"},
		Func: func(in *core.Inputs) (float64, error) {
			af := in.Float("af_total")
			if signalized(in.String("factype")) {
				af = in.Float("af_ped")
			}
			return in.Float("spf_ped") * af * in.Float("cf_total") * in.Float("num_years"), nil
		},
		Comp: comp("kabco", "ped"),
		Doc:  "spf_ped * af * cf_total * num_years, with af_ped at signalized intersections",
	})
	b.predicted("pred_pdc", "spf_pdc", "af_total", comp("kabco", "pdc"))

	b.layer("exp")
	for _, crash := range []string{"mv", "sv"} {
		b.expected("exp_"+crash+"_kabco", "pred_"+crash+"_kabco", "obs_"+crash+"_kabco",
			func(in *core.Inputs) float64 { return in.Float("k") },
			core.ElementSpec{
				Refs: []core.RefQuery{core.Ref("spf_"+crash, "severity", "kabco")},
				Comp: comp("kabco", crash),
			})
	}

	b.layer("exp_total")
	b.sumExpected("exp_kabco", []string{"exp_mv_kabco", "exp_sv_kabco"}, comp("kabco", "all"))
}

// usaIntSPF is HSM eq. 12-21: exp(a + b ln(AADTmaj) + c ln(AADTmin)).
func usaIntSPF(in *core.Inputs) (float64, error) {
	return math.Exp(in.Float("a")+in.Float("b")*math.Log(in.Float("aadt_maj"))+
		in.Float("c")*math.Log(in.Float("aadt_min"))) * in.Float("cf") * in.Float("p_sev"), nil
}
