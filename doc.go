// Package cpm performs crash prediction modeling with the models of the
// Highway Safety Manual 1st Ed. (2010).
//
// A model is a layered graph of elements. Safety performance functions
// (SPF) predict crashes at base conditions, adjustment factors (AF) and
// calibration factors (CF) scale them, and results combine them into
// predicted and Empirical-Bayes expected crash frequencies. Inputs are
// checked by validators before evaluation and coefficients come from
// reference trees that can be calibrated or overridden per project.
//
// Models:
//
//   - rtl_seg, rtl_int: rural two-lane roads (HSM chapter 10).
//   - rml_seg, rml_int: rural multilane highways (HSM chapter 11).
//   - usa_seg, usa_int: urban and suburban arterials (HSM chapter 12).
//
// Usage:
//
//	m, err := cpm.Open("rtl_int", cpm.WithCalibration(map[string]float64{"*": 1.1}))
//	if err != nil {
//		return err
//	}
//	p, err := m.PredictOne(cpm.Params{
//		"factype": "3st", "aadt_maj": 5000, "aadt_min": 1000, "skew": 0,
//		"lighting": 0, "left_turn_lanes": 0, "right_turn_lanes": 0, "num_years": 1,
//	})
//
// Keywords: crash prediction, highway safety manual, HSM, safety
// performance function, empirical bayes, traffic safety.
package cpm
