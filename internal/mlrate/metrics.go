package mlrate

import (
	"math"

	"github.com/montanaflynn/stats"
)

// FitMetrics scores one prediction set against its truth.
type FitMetrics struct {
	MAE  float64 `json:"MAE"`
	RMSE float64 `json:"RMSE"`
	R2   float64 `json:"R2"`
}

func scoreFit(truth, pred []float64) FitMetrics {
	n := float64(len(truth))
	var absSum, sqSum float64
	for i := range truth {
		d := truth[i] - pred[i]
		absSum += math.Abs(d)
		sqSum += d * d
	}

	mean, _ := stats.Mean(truth)
	var totSS float64
	for _, v := range truth {
		d := v - mean
		totSS += d * d
	}

	// Constant truth has no variance to explain; score 0 so the report
	// stays JSON-encodable.
	r2 := 0.0
	if totSS > 0 {
		r2 = 1 - sqSum/totSS
	}
	return FitMetrics{
		MAE:  absSum / n,
		RMSE: math.Sqrt(sqSum / n),
		R2:   r2,
	}
}

// CVMetrics summarizes the walk-forward folds.
type CVMetrics struct {
	Folds       []int     `json:"folds"`
	MAEPerFold  []float64 `json:"MAE_per_fold"`
	RMSEPerFold []float64 `json:"RMSE_per_fold"`
	R2PerFold   []float64 `json:"R2_per_fold"`
	MAEMean     float64   `json:"MAE_mean"`
	RMSEMean    float64   `json:"RMSE_mean"`
	R2Mean      float64   `json:"R2_mean"`
	MAEStd      float64   `json:"MAE_std"`
	R2Std       float64   `json:"R2_std"`
}

func summarizeCV(perFold []FitMetrics) CVMetrics {
	cv := CVMetrics{}
	for i, f := range perFold {
		cv.Folds = append(cv.Folds, i+1)
		cv.MAEPerFold = append(cv.MAEPerFold, f.MAE)
		cv.RMSEPerFold = append(cv.RMSEPerFold, f.RMSE)
		cv.R2PerFold = append(cv.R2PerFold, f.R2)
	}
	cv.MAEMean, _ = stats.Mean(cv.MAEPerFold)
	cv.RMSEMean, _ = stats.Mean(cv.RMSEPerFold)
	cv.R2Mean, _ = stats.Mean(cv.R2PerFold)
	if len(perFold) > 1 {
		cv.MAEStd, _ = stats.StandardDeviationSample(cv.MAEPerFold)
		cv.R2Std, _ = stats.StandardDeviationSample(cv.R2PerFold)
	}
	return cv
}
