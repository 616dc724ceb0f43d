package hsm

import (
	"fmt"
	"math"

	"github.com/aretw0/cpm/pkg/core"
)

// buildRTLSeg builds the rural two-lane roadway segment model, HSM chapter 10.
func buildRTLSeg(b *builder) {
	b.ref("calibration")
	b.ref("spf")

	b.limits("aadt", 1, 17800, core.LimitsEnforce(core.EnforceWarn))
	b.limits("length", 0, 100, core.LimitsNotes("Segment length in miles"))
	b.limits("lane_width", 6, 24)
	b.limits("shld_width", 0, 20)
	b.values("shld_type", []any{"paved", "gravel", "composite", "turf"})
	b.binary("rumble_cl", "Centerline rumble strips; 0: not present; 1: present")
	b.values("passing_lanes", []any{0, 1, 2}, core.ValuesDType(core.Int))
	b.binary("twltl", "Two-way left-turn lane; 0: not present; 1: present")
	b.values("spiral_transition", []any{0, 0.5, 1}, core.ValuesDType(core.Float),
		core.ValuesNotes("0: not present; 0.5: present on one end only; 1: present on both ends"))
	b.bounded("curve_length", core.Const(0), core.KeyBound("length"),
		core.LimitsNotes("Length of the horizontal curve in miles"))
	b.limits("curve_radius", 0, 1e5, core.LimitsNotes("Radius of the horizontal curve in feet"))
	b.limits("se_var", 0, 0.10, core.LimitsNotes("Superelevation variance"))
	b.limits("grade", -20, 20)
	b.limits("dwy_density", 0, 100, core.LimitsEnforce(core.EnforceWarn),
		core.LimitsNotes("Number of driveways per mile"))
	b.values("rhr", []any{1, 2, 3, 4, 5, 6, 7}, core.ValuesDType(core.Int),
		core.ValuesNotes("Roadside hazard rating"))
	b.binary("lighting", "0: not present; 1: present")
	b.binary("ase", "Automated speed enforcement; 0: not present; 1: present")
	b.observed("obs_kabco", "KABCO")
	b.numYears()

	b.layer("spf")
	b.spf(core.ElementSpec{
		Name:   "spf_kabco",
		Inputs: []string{"aadt", "length"},
		Refs:   []core.RefQuery{core.Ref("spf", "severity", "kabco")},
		Func: func(in *core.Inputs) (float64, error) {
			return in.Float("a") * in.Float("aadt") * in.Float("length") * 365 * 1e-6 *
				math.Exp(in.Float("b")) * in.Float("cf"), nil
		},
		Doc: "HSM eq. 10-7",
	})

	b.layer("af")
	b.af(core.ElementSpec{
		Name:   "af_lane_width",
		Inputs: []string{"lane_width", "aadt"},
		Func: func(in *core.Inputs) (float64, error) {
			return rtlLaneWidth(in.Float("lane_width"), in.Float("aadt")), nil
		},
		Doc: "HSM table 10-8, eq. 10-11",
	})
	b.af(core.ElementSpec{
		Name:   "af_shld",
		Inputs: []string{"aadt", "shld_width", "shld_type"},
		Func: func(in *core.Inputs) (float64, error) {
			typ, err := rtlShoulderType(in.Float("shld_width"), in.String("shld_type"))
			if err != nil {
				return 0, err
			}
			wth := rtlShoulderWidth(in.Float("shld_width"), in.Float("aadt"))
			return (typ*wth-1)*0.574 + 1, nil
		},
		Doc: "HSM tables 10-9 and 10-10, eq. 10-12",
	})
	b.af(core.ElementSpec{
		Name:   "af_hor_curve",
		Inputs: []string{"length", "curve_length", "curve_radius", "spiral_transition"},
		Func: func(in *core.Inputs) (float64, error) {
			lc, r := in.Float("curve_length"), in.Float("curve_radius")
			spiral := in.Float("spiral_transition")
			if lc == 0 && r == 0 {
				return 1, nil
			}
			lc = max(min(lc, in.Float("length")), 100.0/5280)
			r = max(r, 100)
			af := (1.55*lc + 80.2/r - 0.012*spiral) / (1.55 * lc)
			return max(af, 1), nil
		},
		Doc: "HSM eq. 10-13",
	})
	b.af(core.ElementSpec{
		Name:   "af_se_var",
		Inputs: []string{"se_var"},
		Func: func(in *core.Inputs) (float64, error) {
			v := in.Float("se_var")
			switch {
			case v < 0.01:
				return 1, nil
			case v >= 0.02:
				return 1.06 + 3*(v-0.02), nil
			default:
				return 1 + 6*(v-0.01), nil
			}
		},
		Doc: "HSM eq. 10-14 to 10-16",
	})
	b.af(core.ElementSpec{
		Name:   "af_grade",
		Inputs: []string{"grade"},
		Func: func(in *core.Inputs) (float64, error) {
			switch g := math.Abs(in.Float("grade")); {
			case g <= 3:
				return 1, nil
			case g <= 6:
				return 1.10, nil
			default:
				return 1.16, nil
			}
		},
		Doc: "HSM table 10-11",
	})
	b.af(core.ElementSpec{
		Name:   "af_dwy_density",
		Inputs: []string{"aadt", "dwy_density"},
		Func: func(in *core.Inputs) (float64, error) {
			d := in.Float("dwy_density")
			if d < 5 {
				return 1, nil
			}
			slope := 0.05 - 0.005*math.Log(in.Float("aadt"))
			return (0.322 + d*slope) / (0.322 + 5*slope), nil
		},
		Doc: "HSM eq. 10-17",
	})
	b.af(core.ElementSpec{
		Name:   "af_rumble_cl",
		Inputs: []string{"rumble_cl"},
		Func: func(in *core.Inputs) (float64, error) {
			if in.Int("rumble_cl") == 1 {
				return 0.94, nil
			}
			return 1, nil
		},
		Doc: "HSM page 10-29",
	})
	b.af(core.ElementSpec{
		Name:   "af_passing_lanes",
		Inputs: []string{"passing_lanes"},
		Func: func(in *core.Inputs) (float64, error) {
			switch n := in.Int("passing_lanes"); n {
			case 0:
				return 1, nil
			case 1:
				return 0.75, nil
			case 2:
				return 0.65, nil
			default:
				return 0, fmt.Errorf("%w: passing_lanes=%d", core.ErrInvalidValue, n)
			}
		},
		Doc: "HSM page 10-29",
	})
	b.af(core.ElementSpec{
		Name:   "af_twltl",
		Inputs: []string{"twltl", "dwy_density"},
		Func: func(in *core.Inputs) (float64, error) {
			d := in.Float("dwy_density")
			if in.Int("twltl") == 0 || d < 5 {
				return 1, nil
			}
			x := 0.0047*d + 0.0024*d*d
			return 1 - 0.7*(x/(1.199+x))*0.5, nil
		},
		Doc: "HSM eq. 10-18, 10-19",
	})
	b.af(core.ElementSpec{
		Name:   "af_rhr",
		Inputs: []string{"rhr"},
		Func: func(in *core.Inputs) (float64, error) {
			return math.Exp(-0.6869+0.0668*in.Float("rhr")) / math.Exp(-0.4865), nil
		},
		Doc: "HSM eq. 10-20, appendix 13A",
	})
	b.af(core.ElementSpec{
		Name:   "af_lighting",
		Inputs: []string{"lighting"},
		Func: func(in *core.Inputs) (float64, error) {
			if in.Int("lighting") == 1 {
				return lighting(0.382, 0.618, 0.370), nil
			}
			return 1, nil
		},
		Doc: "HSM eq. 10-21, table 10-12",
	})
	b.af(core.ElementSpec{
		Name:   "af_ase",
		Inputs: []string{"ase"},
		Func: func(in *core.Inputs) (float64, error) {
			if in.Int("ase") == 1 {
				return 0.93, nil
			}
			return 1, nil
		},
		Doc: "HSM page 10-31",
	})

	afs := []string{"af_lane_width", "af_shld", "af_hor_curve", "af_se_var", "af_grade",
		"af_dwy_density", "af_rumble_cl", "af_passing_lanes", "af_twltl", "af_rhr",
		"af_lighting", "af_ase"}
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

	b.layer("exp")
	b.expected("exp_kabco", "pred_kabco", "obs_kabco",
		func(in *core.Inputs) float64 { return in.Float("k") / in.Float("length") },
		core.ElementSpec{
			Inputs: []string{"length"},
			Refs:   []core.RefQuery{core.Ref("spf", "severity", "kabco")},
			Comp:   comp("kabco", "all"),
			Doc:    "HSM eq. A-4, A-5 with k per mile",
		})
}

// rtlLaneWidth follows HSM table 10-8 generalized by eq. 10-11.
func rtlLaneWidth(width, aadt float64) float64 {
	var af float64
	switch {
	case width < 10:
		af = ramp(aadt, 1.05, 1.50, 2.81e-4)
	case width < 11:
		af = ramp(aadt, 1.02, 1.30, 1.75e-4)
	case width < 12:
		af = ramp(aadt, 1.01, 1.05, 2.50e-5)
	default:
		af = 1
	}
	return (af-1)*0.574 + 1
}

// ramp interpolates an AADT dependent factor between 400 and 2000 veh/day.
func ramp(aadt, low, high, slope float64) float64 {
	switch {
	case aadt < 400:
		return low
	case aadt > 2000:
		return high
	default:
		return low + slope*(aadt-400)
	}
}

var rtlShoulderTypes = map[string][]float64{
	// widths: <1, <2, <3, <4, <6, <8, >=8
	"paved":     {1.00, 1.00, 1.00, 1.00, 1.00, 1.00, 1.00},
	"gravel":    {1.00, 1.00, 1.01, 1.01, 1.01, 1.02, 1.02},
	"composite": {1.00, 1.01, 1.02, 1.02, 1.03, 1.04, 1.06},
	"turf":      {1.00, 1.01, 1.03, 1.04, 1.05, 1.08, 1.11},
}

// rtlShoulderType follows HSM table 10-10.
func rtlShoulderType(width float64, typ string) (float64, error) {
	row, ok := rtlShoulderTypes[typ]
	if !ok {
		return 0, fmt.Errorf("%w: shld_type=%s", core.ErrInvalidValue, typ)
	}
	for i, upper := range []float64{1, 2, 3, 4, 6, 8} {
		if width < upper {
			return row[i], nil
		}
	}
	return row[len(row)-1], nil
}

// rtlShoulderWidth follows HSM table 10-9.
func rtlShoulderWidth(width, aadt float64) float64 {
	switch {
	case width < 2:
		return ramp(aadt, 1.10, 1.50, 2.50e-4)
	case width < 4:
		return ramp(aadt, 1.07, 1.30, 1.43e-4)
	case width < 6:
		return ramp(aadt, 1.02, 1.15, 8.125e-5)
	case width < 8:
		return 1
	default:
		return ramp(aadt, 0.98, 0.87, -6.875e-5)
	}
}
