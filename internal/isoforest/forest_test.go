package isoforest

import (
	"math/rand"
	"testing"
)

func clusteredData(n int, rng *rand.Rand) [][]float64 {
	data := make([][]float64, n)
	for i := range data {
		data[i] = []float64{rng.NormFloat64(), rng.NormFloat64()}
	}
	return data
}

func TestFitRejectsBadInput(t *testing.T) {
	if _, err := Fit(nil, DefaultOptions()); err == nil {
		t.Error("expected error for empty dataset")
	}
	if _, err := Fit([][]float64{{}}, DefaultOptions()); err == nil {
		t.Error("expected error for zero-feature dataset")
	}
	if _, err := Fit([][]float64{{1, 2}, {1}}, DefaultOptions()); err == nil {
		t.Error("expected error for ragged rows")
	}
}

func TestScoreRange(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	data := clusteredData(200, rng)

	forest, err := Fit(data, Options{Trees: 50, SampleSize: 64, Seed: 1})
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	scores, err := forest.ScoreAll(data)
	if err != nil {
		t.Fatalf("ScoreAll failed: %v", err)
	}
	for i, s := range scores {
		if s < 0 || s > 1 {
			t.Errorf("score %d out of range: %f", i, s)
		}
	}
}

func TestOutlierScoresHigherThanBulk(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	data := clusteredData(300, rng)
	outlier := []float64{50, 50}
	data = append(data, outlier)

	forest, err := Fit(data, Options{Seed: 2})
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	outlierScore, err := forest.Score(outlier)
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}
	bulkScore, err := forest.Score([]float64{0, 0})
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}

	if outlierScore <= bulkScore {
		t.Errorf("expected outlier score (%f) above bulk score (%f)", outlierScore, bulkScore)
	}
	if outlierScore < 0.6 {
		t.Errorf("expected distinctly anomalous score, got %f", outlierScore)
	}
}

func TestFitDeterministicWithSeed(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	data := clusteredData(100, rng)
	opts := Options{Trees: 30, SampleSize: 32, Seed: 7}

	f1, err := Fit(data, opts)
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	f2, err := Fit(data, opts)
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	s1, _ := f1.ScoreAll(data)
	s2, _ := f2.ScoreAll(data)
	for i := range s1 {
		if s1[i] != s2[i] {
			t.Fatalf("scores diverge at %d: %f vs %f", i, s1[i], s2[i])
		}
	}
}

func TestScoreDimensionMismatch(t *testing.T) {
	forest, err := Fit([][]float64{{1, 2}, {3, 4}, {5, 6}}, Options{Seed: 1})
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if _, err := forest.Score([]float64{1}); err == nil {
		t.Error("expected error for dimension mismatch")
	}
}

func TestAveragePathLength(t *testing.T) {
	if got := averagePathLength(1); got != 0 {
		t.Errorf("c(1) = %f, expected 0", got)
	}
	if got := averagePathLength(2); got != 1 {
		t.Errorf("c(2) = %f, expected 1", got)
	}
	// c(256) is approximately 10.24.
	if got := averagePathLength(256); got < 10 || got > 10.5 {
		t.Errorf("c(256) = %f, expected near 10.24", got)
	}
}

func TestStandardScaler(t *testing.T) {
	data := [][]float64{{1, 10}, {2, 10}, {3, 10}}

	scaler, err := FitScaler(data)
	if err != nil {
		t.Fatalf("FitScaler failed: %v", err)
	}

	scaled := scaler.Transform(data)

	// First column: mean 2, population std sqrt(2/3).
	if scaled[1][0] != 0 {
		t.Errorf("expected centered middle value 0, got %f", scaled[1][0])
	}
	if scaled[0][0] >= 0 || scaled[2][0] <= 0 {
		t.Errorf("expected symmetric scaling, got %f and %f", scaled[0][0], scaled[2][0])
	}

	// Constant column keeps scale 1 and centers to zero.
	for i := range scaled {
		if scaled[i][1] != 0 {
			t.Errorf("expected constant column to center to 0, got %f", scaled[i][1])
		}
	}

	// Input untouched.
	if data[0][0] != 1 {
		t.Error("Transform mutated its input")
	}
}

func TestFitScalerRejectsEmpty(t *testing.T) {
	if _, err := FitScaler(nil); err == nil {
		t.Error("expected error for empty dataset")
	}
}
