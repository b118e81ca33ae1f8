package workload

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fairqueue/fqsim/sim"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTrace_SkipsCommentsAndBlankLines(t *testing.T) {
	input := "# flow\tsize\ttime\n" +
		"\n" +
		" 1\t100\t0\n" +
		"no tabs here\n" +
		"1\t1000\t0\n" +
		"2\t500\t3\n"

	records, err := ParseTrace(strings.NewReader(input))

	require.NoError(t, err)
	assert.Equal(t, []sim.ArrivalRecord{
		{Flow: 1, Size: 1000, Time: 0},
		{Flow: 2, Size: 500, Time: 3},
	}, records)
}

func TestParseTrace_StableSortByTime(t *testing.T) {
	// GIVEN records out of time order with a same-time pair
	input := "3\t10\t5\n1\t20\t2\n2\t30\t2\n"

	// WHEN parsed
	records, err := ParseTrace(strings.NewReader(input))

	// THEN sorted by time, same-time records in file order
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, sim.FlowID(1), records[0].Flow)
	assert.Equal(t, sim.FlowID(2), records[1].Flow)
	assert.Equal(t, sim.FlowID(3), records[2].Flow)
}

func TestParseTrace_WeightColumnAndFloatSize(t *testing.T) {
	records, err := ParseTrace(strings.NewReader("7\t1500.0\t1.25\t2.5\r\n"))

	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, sim.ArrivalRecord{Flow: 7, Size: 1500, Time: 1.25, Weight: 2.5}, records[0])
}

func TestParseTrace_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"too few fields", "1\t100\n", "expected 3 or 4 fields"},
		{"too many fields", "1\t100\t0\t1\t9\n", "expected 3 or 4 fields"},
		{"bad flow", "x\t100\t0\n", "flow id"},
		{"fractional size", "1\t10.5\t0\n", "size"},
		{"bad time", "1\t100\tsoon\n", "time"},
		{"zero weight", "1\t100\t0\t0\n", "weight"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseTrace(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "trace line 1")
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestWriteTrace_ParseTrace_RoundTrip(t *testing.T) {
	records := []sim.ArrivalRecord{
		{Flow: 1, Size: 1000, Time: 0},
		{Flow: 2, Size: 250, Time: 0.125, Weight: 3},
		{Flow: 1, Size: 64, Time: 17},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteTrace(&buf, records))

	assert.True(t, strings.HasPrefix(buf.String(), "# flow"), "header comment expected")
	got, err := ParseTrace(&buf)
	require.NoError(t, err)
	assert.Equal(t, records, got)
}

func TestLoadTraceFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "trace.txt")
	require.NoError(t, os.WriteFile(path, []byte("1\t1000\t0\n2\t1000\t0\n"), 0644))

	records, err := LoadTraceFile(path)
	require.NoError(t, err)
	assert.Len(t, records, 2)

	_, err = LoadTraceFile(filepath.Join(dir, "missing.txt"))
	assert.Error(t, err)
}

func TestSaveTraceFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.txt")
	records := []sim.ArrivalRecord{{Flow: 4, Size: 8, Time: 1}}

	require.NoError(t, SaveTraceFile(path, records))
	got, err := LoadTraceFile(path)
	require.NoError(t, err)
	assert.Equal(t, records, got)
}

func TestSampleTraceFixture(t *testing.T) {
	records, err := LoadTraceFile(filepath.Join("..", "..", "testdata", "trace.txt"))
	require.NoError(t, err)
	require.NotEmpty(t, records)
	for i := 1; i < len(records); i++ {
		assert.GreaterOrEqual(t, records[i].Time, records[i-1].Time)
	}
}
