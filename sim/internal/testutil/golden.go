// Package testutil provides shared test infrastructure for the fair-queueing
// simulator: the golden departure dataset and float assertion helpers used
// across sim/ and cmd/ test packages.
package testutil

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

// GoldenDataset represents the structure of testdata/goldendataset.json.
type GoldenDataset struct {
	Tests []GoldenTestCase `json:"tests"`
}

// GoldenTestCase is one hand-computed schedule: a small trace, the policy
// parameters, and the exact departure log expected from it.
type GoldenTestCase struct {
	Name            string            `json:"name"`
	Policy          string            `json:"policy"`
	Rate            float64           `json:"rate"`
	Quantum         int64             `json:"quantum"`
	QuantumByWeight bool              `json:"quantum_by_weight"`
	Trace           []GoldenArrival   `json:"trace"`
	Departures      []GoldenDeparture `json:"departures"`
}

// GoldenArrival mirrors one line of the trace text format.
type GoldenArrival struct {
	Flow   int     `json:"flow"`
	Size   int64   `json:"size"`
	Time   float64 `json:"time"`
	Weight float64 `json:"weight"`
}

// GoldenDeparture is one expected departure log entry, in log order.
type GoldenDeparture struct {
	Flow int     `json:"flow"`
	Time float64 `json:"time"`
}

// LoadGoldenDataset loads the golden dataset from the testdata directory.
// The path is resolved relative to this source file: sim/internal/testutil/ → testdata/.
func LoadGoldenDataset(t *testing.T) *GoldenDataset {
	t.Helper()

	data, err := os.ReadFile(TestdataPath(t, "goldendataset.json"))
	if err != nil {
		t.Fatalf("Failed to read golden dataset: %v", err)
	}

	var dataset GoldenDataset
	if err := json.Unmarshal(data, &dataset); err != nil {
		t.Fatalf("Failed to parse golden dataset: %v", err)
	}
	if len(dataset.Tests) == 0 {
		t.Fatal("golden dataset has no test cases")
	}
	return &dataset
}

// TestdataPath returns the absolute path of a file under the repository's testdata/.
func TestdataPath(t *testing.T, name string) string {
	t.Helper()
	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("Failed to get current file path")
	}
	return filepath.Join(filepath.Dir(thisFile), "..", "..", "..", "testdata", name)
}

// AssertFloat64Equal compares two float64 values with relative tolerance.
func AssertFloat64Equal(t *testing.T, name string, want, got, relTol float64) {
	t.Helper()
	if want == 0 && got == 0 {
		return
	}
	diff := math.Abs(want - got)
	maxVal := math.Max(math.Abs(want), math.Abs(got))
	if diff/maxVal > relTol {
		t.Errorf("%s: got %v, want %v (diff=%v, relDiff=%v)", name, got, want, diff, diff/maxVal)
	}
}

// AssertNonDecreasing fails if values ever decrease.
func AssertNonDecreasing(t *testing.T, name string, values []float64) {
	t.Helper()
	for i := 1; i < len(values); i++ {
		if values[i] < values[i-1] {
			t.Errorf("%s: value %d = %v decreases from %v", name, i, values[i], values[i-1])
			return
		}
	}
}
