package cpm

import (
	"log/slog"

	"github.com/aretw0/cpm/pkg/core"
	"github.com/aretw0/cpm/pkg/hsm"
)

// --- Types ---

// Model is a crash prediction model.
type Model = core.Model

// Params holds the inputs of one site.
type Params = core.Params

// Prediction holds the evaluated values of one site.
type Prediction = core.Prediction

// Reference is a coefficient tree.
type Reference = core.Reference

// --- Configuration ---

// Option configures a model built by Open.
type Option = hsm.Option

// WithLogger sets the logger of the model.
func WithLogger(logger *slog.Logger) Option {
	return hsm.WithLogger(logger)
}

// WithCalibration sets calibration factors by facility type. The "*" key
// applies to every facility type.
func WithCalibration(cf map[string]float64) Option {
	return hsm.WithCalibration(cf)
}

// WithReferenceOverride replaces leaves of the model reference with the
// same name.
func WithReferenceOverride(ref *Reference) Option {
	return hsm.WithReferenceOverride(ref)
}

// --- Entry points ---

// Models lists the names of the available models.
func Models() []string {
	return hsm.Names()
}

// Open builds a locked model by name.
func Open(name string, opts ...Option) (*Model, error) {
	return hsm.New(name, opts...)
}

// ProjectInfo describes the project identity.
type ProjectInfo struct {
	Name        string
	Module      string
	Version     string
	Description string
	License     string
	Authors     []string
	Keywords    []string
	Readme      string
}

// Manifest returns the project identity.
func Manifest() ProjectInfo {
	return ProjectInfo{
		Name:        "cpm",
		Module:      "github.com/aretw0/cpm",
		Version:     Version,
		Description: "Crash prediction modeling with the Highway Safety Manual models",
		License:     "MIT",
		Authors:     []string{"cpm contributors"},
		Keywords:    []string{"crash prediction", "highway safety manual", "hsm", "safety performance function", "empirical bayes"},
		Readme:      readme,
	}
}

const readme = `cpm performs crash prediction modeling with the models of the Highway
Safety Manual 1st Ed. Models are layered graphs of safety performance
functions, adjustment factors and calibration factors evaluated over
validated site inputs. Run "cpm models" to list them.`
