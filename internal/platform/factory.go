package platform

import (
	"fmt"

	"github.com/aretw0/cpm/pkg/adapters/refstore"
	"github.com/aretw0/cpm/pkg/core"
	"github.com/aretw0/cpm/pkg/hsm"
)

// OpenModel builds a named model with the calibration factors and the
// reference overrides of the configuration.
//
//	m, err := platform.OpenModel("rtl_int", platform.WithConfig(cfg))
func OpenModel(name string, opts ...Option) (*core.Model, error) {
	o := newOptions(opts)
	hopts := []hsm.Option{hsm.WithLogger(o.logger)}

	if cf := o.config.Calibration[name]; len(cf) > 0 {
		hopts = append(hopts, hsm.WithCalibration(cf))
	}

	if o.config.ReferenceDir != "" {
		store, err := refstore.New(o.config.ReferenceDir, refstore.WithLogger(o.logger))
		if err != nil {
			return nil, err
		}
		refs, err := store.Overrides(name)
		if err != nil {
			return nil, fmt.Errorf("reference overrides of %s: %w", name, err)
		}
		for _, r := range refs {
			hopts = append(hopts, hsm.WithReferenceOverride(r))
		}
		if len(refs) > 0 {
			o.logger.Info("reference overrides applied", "model", name, "count", len(refs))
		}
	}
	return hsm.New(name, hopts...)
}
