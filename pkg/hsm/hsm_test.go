package hsm

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/cpm/pkg/core"
)

func rtlSegBase() core.Params {
	return core.Params{
		"aadt": 1000, "length": 1, "lane_width": 12, "shld_width": 6, "shld_type": "paved",
		"rumble_cl": 0, "passing_lanes": 0, "twltl": 0, "spiral_transition": 0,
		"curve_length": 0, "curve_radius": 0, "se_var": 0, "grade": 0, "dwy_density": 5,
		"rhr": 3, "lighting": 0, "ase": 0, "num_years": 1,
	}
}

func TestNamesAndDescribe(t *testing.T) {
	assert.Equal(t, []string{"rml_int", "rml_seg", "rtl_int", "rtl_seg", "usa_int", "usa_seg"}, Names())

	desc, err := Describe("rtl_seg")
	require.NoError(t, err)
	assert.Contains(t, desc, "chapter 10")

	_, err = Describe("fwy_seg")
	assert.ErrorIs(t, err, ErrUnknownModel)
	_, err = New("fwy_seg")
	assert.ErrorIs(t, err, ErrUnknownModel)
}

func TestEveryModelBuilds(t *testing.T) {
	for _, name := range Names() {
		t.Run(name, func(t *testing.T) {
			m, err := New(name)
			require.NoError(t, err)
			assert.True(t, m.Locked())
			assert.Equal(t, name, m.Name())

			e, err := m.Element("pred_kabco")
			require.NoError(t, err)
			assert.Equal(t, core.Result, e.Kind())
			assert.Equal(t, map[string]string{"severity": "kabco", "crash_type": "all"}, e.Comp())

			_, err = m.Element("exp_kabco")
			assert.NoError(t, err)
			assert.Contains(t, m.Kwargs(), "num_years")
		})
	}
}

func TestRandomRowsPredict(t *testing.T) {
	for _, name := range Names() {
		t.Run(name, func(t *testing.T) {
			m := MustNew(name)
			table, err := m.InitFeasible(25, 7, nil, 10)
			require.NoError(t, err)

			preds, err := m.Predict(context.Background(), table.Rows)
			require.NoError(t, err)
			for _, p := range preds {
				v, err := p.Float("pred_kabco")
				require.NoError(t, err)
				assert.False(t, math.IsNaN(v))
				assert.GreaterOrEqual(t, v, 0.0)
			}
		})
	}
}

func TestRTLSegBaseConditions(t *testing.T) {
	m := MustNew("rtl_seg")
	p, err := m.PredictOne(rtlSegBase())
	require.NoError(t, err)

	af, err := p.Float("af_total")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, af, 1e-9)

	pred, err := p.Float("pred_kabco")
	require.NoError(t, err)
	assert.InDelta(t, 0.267173, pred, 1e-6)

	exp, err := p.Float("exp_kabco")
	require.NoError(t, err)
	assert.Equal(t, -1.0, exp)
}

func TestRTLSegEmpiricalBayes(t *testing.T) {
	m := MustNew("rtl_seg")
	row := rtlSegBase()
	row["num_years"] = 3
	row["obs_kabco"] = 5
	p, err := m.PredictOne(row)
	require.NoError(t, err)

	pred, err := p.Float("pred_kabco")
	require.NoError(t, err)
	assert.InDelta(t, 0.801520, pred, 1e-6)

	exp, err := p.Float("exp_kabco")
	require.NoError(t, err)
	assert.InDelta(t, 1.469369, exp, 1e-6)
}

func TestRTLSegAdjustments(t *testing.T) {
	m := MustNew("rtl_seg")
	row := rtlSegBase()
	row["lane_width"] = 9
	row["aadt"] = 3000
	row["grade"] = -5
	p, err := m.PredictOne(row)
	require.NoError(t, err)

	lane, err := p.Float("af_lane_width")
	require.NoError(t, err)
	assert.InDelta(t, (1.50-1)*0.574+1, lane, 1e-9)

	grade, err := p.Float("af_grade")
	require.NoError(t, err)
	assert.Equal(t, 1.10, grade)

	row["curve_length"] = 2
	_, err = m.PredictOne(row)
	assert.ErrorIs(t, err, core.ErrInvalidValue, "curve longer than the segment")
}

func TestCalibration(t *testing.T) {
	m := MustNew("rtl_seg", WithCalibration(map[string]float64{"*": 2}))
	p, err := m.PredictOne(rtlSegBase())
	require.NoError(t, err)
	pred, err := p.Float("pred_kabco")
	require.NoError(t, err)
	assert.InDelta(t, 2*0.267173, pred, 1e-6)

	_, err = New("rtl_seg", WithCalibration(map[string]float64{"3st": 2}))
	assert.ErrorIs(t, err, core.ErrReference)

	m = MustNew("rtl_int", WithCalibration(map[string]float64{"*": 3, "4sg": 0.5}))
	ref, err := m.Reference("calibration")
	require.NoError(t, err)
	leaf, err := ref.Retrieve(map[string]string{"factype": "3st"})
	require.NoError(t, err)
	assert.Equal(t, 3.0, leaf["cf"])
	leaf, err = ref.Retrieve(map[string]string{"factype": "4sg"})
	require.NoError(t, err)
	assert.Equal(t, 0.5, leaf["cf"])

	_, err = New("rtl_int", WithCalibration(map[string]float64{"5st": 1}))
	assert.ErrorIs(t, err, core.ErrReference)
}

func TestReferenceOverride(t *testing.T) {
	patch, err := core.NewReference("spf", []string{"severity"}, []string{"a"}, map[string]any{
		"kabco": map[string]any{"a": 2.0},
	})
	require.NoError(t, err)

	m := MustNew("rtl_seg", WithReferenceOverride(patch))
	p, err := m.PredictOne(rtlSegBase())
	require.NoError(t, err)
	pred, err := p.Float("pred_kabco")
	require.NoError(t, err)
	assert.InDelta(t, 2*0.267173, pred, 1e-6)

	unknown, err := core.NewReference("dist_all", []string{"factype"}, []string{"p_o"}, map[string]any{
		"3st": map[string]any{"p_o": 1.0},
	})
	require.NoError(t, err)
	_, err = New("rtl_seg", WithReferenceOverride(unknown))
	assert.ErrorIs(t, err, core.ErrReference)
}

func TestRTLIntSeverities(t *testing.T) {
	m := MustNew("rtl_int")
	row := core.Params{
		"factype": "3st", "aadt_maj": 5000, "aadt_min": 1000, "skew": 0, "lighting": 1,
		"left_turn_lanes": 0, "right_turn_lanes": 0, "num_years": 1,
	}
	p, err := m.PredictOne(row)
	require.NoError(t, err)

	spf, err := p.Float("spf_kabco")
	require.NoError(t, err)
	assert.InDelta(t, 1.288376, spf, 1e-6)

	af, err := p.Float("af_lighting")
	require.NoError(t, err)
	assert.InDelta(t, 0.9012, af, 1e-9)

	kabco, _ := p.Float("pred_kabco")
	kabc, _ := p.Float("pred_kabc")
	o, _ := p.Float("pred_o")
	assert.InDelta(t, kabco, kabc+o, 1e-9)

	row["p_night"] = 0.5
	p, err = m.PredictOne(row)
	require.NoError(t, err)
	af, _ = p.Float("af_lighting")
	assert.InDelta(t, 0.81, af, 1e-9)
}

func TestRMLSegSeverities(t *testing.T) {
	m := MustNew("rml_seg")
	_, err := m.Element("spf_kab")
	require.NoError(t, err)

	p, err := m.PredictOne(core.Params{
		"factype": "4d", "aadt": 20000, "length": 2, "lane_width": 12, "shld_width": 8,
		"shld_type": "paved", "sideslope": 7, "median_width": 30, "lighting": 0, "ase": 0,
		"num_years": 2, "obs_kabco": 4,
	})
	require.NoError(t, err)

	af, _ := p.Float("af_total")
	assert.InDelta(t, 1.0, af, 1e-9)
	kabco, _ := p.Float("pred_kabco")
	kabc, _ := p.Float("pred_kabc")
	o, _ := p.Float("pred_o")
	assert.InDelta(t, kabco-kabc, o, 1e-9)

	exp, _ := p.Float("exp_kabco")
	assert.GreaterOrEqual(t, exp, min(kabco, 4))
	assert.LessOrEqual(t, exp, max(kabco, 4))
}

func TestRMLIntSkewIsSymmetric(t *testing.T) {
	m := MustNew("rml_int")
	row := core.Params{
		"factype": "4st", "aadt_maj": 10000, "aadt_min": 2000, "skew": 30, "lighting": 0,
		"left_turn_lanes": 1, "right_turn_lanes": 0, "num_years": 1,
	}
	left, err := m.PredictOne(row)
	require.NoError(t, err)
	row["skew"] = -30
	right, err := m.PredictOne(row)
	require.NoError(t, err)

	a, _ := left.Float("af_skew_kabco")
	b, _ := right.Float("af_skew_kabco")
	assert.Equal(t, a, b)
	assert.Greater(t, a, 1.0)

	lt, _ := left.Float("af_left_turn_lanes_kabc")
	assert.InDelta(t, 0.65, lt, 1e-9)
}

func usaSegRow() core.Params {
	return core.Params{
		"factype": "4d", "aadt": 20000, "length": 0.5,
		"n_maj_com": 2, "n_min_com": 1, "n_maj_ind": 0, "n_min_ind": 0,
		"n_maj_res": 3, "n_min_res": 0, "n_other": 1,
		"parking_type": "parallel_com", "parking_prop": 0.5,
		"fo_density": 20, "fo_offset": 10, "median_width": 15,
		"speed": 35, "lighting": 1, "ase": 0, "num_years": 1,
	}
}

func TestUSASeg(t *testing.T) {
	m := MustNew("usa_seg")
	p, err := m.PredictOne(usaSegRow())
	require.NoError(t, err)

	cat, ok := p.Get("speed_cat")
	require.True(t, ok)
	assert.Equal(t, ">30", cat)

	_, ok = p.Get("spf_mv_ndwy_unadjusted_kabc")
	assert.False(t, ok, "hidden elements stay out of predictions")

	for _, crash := range []string{"mv_ndwy", "sv"} {
		kabco, _ := p.Float("spf_" + crash + "_kabco")
		kabc, _ := p.Float("spf_" + crash + "_kabc")
		o, _ := p.Float("spf_" + crash + "_o")
		assert.InDelta(t, kabco, kabc+o, 1e-9, crash)
	}

	parking, _ := p.Float("af_parking")
	assert.InDelta(t, 1+0.5*(1.709-1), parking, 1e-9)

	exp, _ := p.Float("exp_kabco")
	assert.Equal(t, -1.0, exp)
}

func TestUSASegParkingDefault(t *testing.T) {
	m := MustNew("usa_seg")
	row := usaSegRow()
	row["parking_prop"] = 0
	row["parking_type"] = "angle_com"
	p, err := m.PredictOne(row)
	require.NoError(t, err)

	typ, _ := p.Get("parking_type")
	assert.Equal(t, "none", typ)
	af, _ := p.Float("af_parking")
	assert.Equal(t, 1.0, af)

	row["parking_prop"] = 0.3
	row["parking_type"] = "garage"
	_, err = m.PredictOne(row)
	assert.ErrorIs(t, err, core.ErrInvalidValue)
}

func TestUSASegExpectedSum(t *testing.T) {
	m := MustNew("usa_seg")
	row := usaSegRow()
	row["obs_mv_dwy_kabco"] = 1
	row["obs_mv_ndwy_kabco"] = 2
	row["obs_sv_kabco"] = 0
	p, err := m.PredictOne(row)
	require.NoError(t, err)

	total, _ := p.Float("exp_kabco")
	parts := 0.0
	for _, crash := range []string{"mv_dwy", "mv_ndwy", "sv"} {
		v, _ := p.Float("exp_" + crash + "_kabco")
		parts += v
	}
	assert.InDelta(t, parts, total, 1e-9)

	row["obs_sv_kabco"] = -1
	p, err = m.PredictOne(row)
	require.NoError(t, err)
	total, _ = p.Float("exp_kabco")
	assert.Equal(t, -1.0, total)
}

func usaIntRow(factype string) core.Params {
	return core.Params{
		"factype": factype, "aadt_maj": 20000, "aadt_min": 5000,
		"ped_vol": 500, "ped_lanes_crossed": 4,
		"left_turn_lanes": 1, "left_turn_prot": 1, "left_turn_prot_perm": 0,
		"right_turn_lanes": 0, "right_on_red_prohibited": 0,
		"red_light_cameras": 1, "lighting": 0,
		"bus_stops": 2, "schools": 1, "alcohol_sales": 0, "num_years": 1,
	}
}

func TestUSAIntPedestrians(t *testing.T) {
	m := MustNew("usa_int")

	sg, err := m.PredictOne(usaIntRow("4sg"))
	require.NoError(t, err)
	afPed, _ := sg.Float("af_ped")
	assert.InDelta(t, 2.78*1.35, afPed, 1e-9)
	spfPed, _ := sg.Float("spf_ped")
	pred, _ := sg.Float("pred_ped")
	assert.InDelta(t, spfPed*afPed, pred, 1e-9)
	rlc, _ := sg.Float("af_red_light_cameras")
	assert.NotEqual(t, 1.0, rlc)

	st, err := m.PredictOne(usaIntRow("4st"))
	require.NoError(t, err)
	afPed, _ = st.Float("af_ped")
	assert.Equal(t, 1.0, afPed)
	rlc, _ = st.Float("af_red_light_cameras")
	assert.Equal(t, 1.0, rlc)
	spfKabco, _ := st.Float("spf_kabco")
	spfPed, _ = st.Float("spf_ped")
	assert.InDelta(t, spfKabco*0.022, spfPed, 1e-9)
}

func TestUSAIntApproaches(t *testing.T) {
	m := MustNew("usa_int")
	row := usaIntRow("3sg")
	row["left_turn_prot"] = 2
	row["left_turn_prot_perm"] = 2
	_, err := m.PredictOne(row)
	assert.ErrorIs(t, err, core.ErrInvalidValue)
}

func TestEmpiricalBayes(t *testing.T) {
	assert.Equal(t, 2.0, empiricalBayes(2, 10, 0))
	assert.InDelta(t, 6.0, empiricalBayes(2, 10, 0.5), 1e-9)
}
