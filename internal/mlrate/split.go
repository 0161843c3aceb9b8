package mlrate

import "github.com/rotisserie/eris"

// fold is one walk-forward split: the model trains on [0, trainEnd) and
// tests on [testStart, testEnd). Test windows are strictly later than their
// training data, so no fold ever sees the future.
type fold struct {
	trainEnd  int
	testStart int
	testEnd   int
}

// timeSeriesFolds builds walk-forward splits over n chronologically sorted
// rows: equal test windows of n/(splits+1) rows, training data growing by
// one window per fold.
func timeSeriesFolds(n, splits int) ([]fold, error) {
	if splits < 2 {
		return nil, eris.Errorf("mlrate: need at least 2 splits, got %d", splits)
	}
	testSize := n / (splits + 1)
	if testSize < 1 {
		return nil, eris.Errorf("mlrate: %d rows cannot support %d time-series splits", n, splits)
	}

	firstTrain := n - splits*testSize
	folds := make([]fold, 0, splits)
	for i := 0; i < splits; i++ {
		trainEnd := firstTrain + i*testSize
		folds = append(folds, fold{
			trainEnd:  trainEnd,
			testStart: trainEnd,
			testEnd:   trainEnd + testSize,
		})
	}
	return folds, nil
}
