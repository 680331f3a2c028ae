// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package strif

import (
	"io"
	"log"
	"math"

	"github.com/kshedden/statmodel/glm"
	"github.com/kshedden/statmodel/statmodel"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

var glmConfig = &glm.Config{
	Family:         glm.NewFamily(glm.BinomialFamily),
	FitMethod:      "IRLS",
	ConcurrentIRLS: 1000,
	Log:            log.New(io.Discard, "", 0),
}

// standardize returns a copy of a with mean 0 and standard deviation
// 1. ok is false if a is constant.
func standardize(a []float64) (out []statmodel.Dtype, ok bool) {
	mean, std := stat.MeanStdDev(a, nil)
	if std == 0 || math.IsNaN(std) {
		return nil, false
	}
	out = make([]statmodel.Dtype, len(a))
	for i, x := range a {
		out[i] = (x - mean) / std
	}
	return out, true
}

// glmPvalue fits a logistic regression of isCase on values and
// returns the likelihood ratio test p-value against the
// intercept-only model. It returns NaN if values is constant or the
// fit fails.
func glmPvalue(isCase []bool, values []float64) (p float64) {
	defer func() {
		if recover() != nil {
			// typically "matrix singular or near-singular with condition number +Inf"
			p = math.NaN()
		}
	}()

	series, ok := standardize(values)
	if !ok {
		return math.NaN()
	}
	outcome := make([]statmodel.Dtype, len(isCase))
	constants := make([]statmodel.Dtype, len(isCase))
	for i, c := range isCase {
		if c {
			outcome[i] = 1
		}
		constants[i] = 1
	}

	names := []string{"outcome", "constants"}
	dataset := statmodel.NewDataset([][]statmodel.Dtype{outcome, constants}, names)
	model, err := glm.NewGLM(dataset, "outcome", names[1:], glmConfig)
	if err != nil {
		return math.NaN()
	}
	logCov := model.Fit().LogLike()

	names = []string{"outcome", "count", "constants"}
	dataset = statmodel.NewDataset([][]statmodel.Dtype{outcome, series, constants}, names)
	model, err = glm.NewGLM(dataset, "outcome", names[1:], glmConfig)
	if err != nil {
		return math.NaN()
	}
	logComp := model.Fit().LogLike()

	dist := distuv.ChiSquared{K: 1}
	return dist.Survival(-2 * (logCov - logComp))
}
