package workload

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/fairqueue/fqsim/sim"
)

// Trace text format, one packet per line, tab separated:
//
//	# flow	size	time	[weight]
//	1	1000	0
//	2	500	0	2.5
//
// Lines that start with '#' or a space, blank lines, and lines without a tab
// are ignored. Size is in bits and may be written as a float as long as it is
// integral. Records are returned stable-sorted by time, so same-time packets
// keep file order.

// ParseTrace reads arrival records from r.
func ParseTrace(r io.Reader) ([]sim.ArrivalRecord, error) {
	var records []sim.ArrivalRecord
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")
		if skipTraceLine(line) {
			continue
		}
		rec, err := parseTraceLine(line)
		if err != nil {
			return nil, fmt.Errorf("trace line %d: %w", lineNo, err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading trace: %w", err)
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Time < records[j].Time
	})
	return records, nil
}

// LoadTraceFile opens and parses a trace file.
func LoadTraceFile(path string) ([]sim.ArrivalRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening trace: %w", err)
	}
	defer func() { _ = file.Close() }()
	records, err := ParseTrace(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return records, nil
}

func skipTraceLine(line string) bool {
	if line == "" {
		return true
	}
	if line[0] == '#' || line[0] == ' ' {
		return true
	}
	return !strings.Contains(line, "\t")
}

func parseTraceLine(line string) (sim.ArrivalRecord, error) {
	fields := strings.Fields(line)
	if len(fields) != 3 && len(fields) != 4 {
		return sim.ArrivalRecord{}, fmt.Errorf("expected 3 or 4 fields, got %d", len(fields))
	}
	flow, err := strconv.Atoi(fields[0])
	if err != nil {
		return sim.ArrivalRecord{}, fmt.Errorf("flow id %q: %w", fields[0], err)
	}
	size, err := parseBits(fields[1])
	if err != nil {
		return sim.ArrivalRecord{}, fmt.Errorf("size %q: %w", fields[1], err)
	}
	at, err := strconv.ParseFloat(fields[2], 64)
	if err != nil {
		return sim.ArrivalRecord{}, fmt.Errorf("time %q: %w", fields[2], err)
	}
	if math.IsNaN(at) || math.IsInf(at, 0) {
		return sim.ArrivalRecord{}, fmt.Errorf("time %q is not finite", fields[2])
	}
	rec := sim.ArrivalRecord{Flow: sim.FlowID(flow), Size: size, Time: at}
	if len(fields) == 4 {
		w, err := strconv.ParseFloat(fields[3], 64)
		if err != nil {
			return sim.ArrivalRecord{}, fmt.Errorf("weight %q: %w", fields[3], err)
		}
		if !(w > 0) || math.IsInf(w, 0) {
			return sim.ArrivalRecord{}, fmt.Errorf("weight %q must be positive", fields[3])
		}
		rec.Weight = w
	}
	return rec, nil
}

// parseBits accepts "1500" as well as "1500.0".
func parseBits(s string) (int64, error) {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) || math.IsInf(f, 0) || math.Abs(f) > math.MaxInt64/2 {
		return 0, fmt.Errorf("not an integral bit count")
	}
	return int64(f), nil
}

// WriteTrace writes records in the trace text format. The weight column is
// emitted only for records that carry one.
func WriteTrace(w io.Writer, records []sim.ArrivalRecord) error {
	bw := bufio.NewWriter(w)
	if _, err := fmt.Fprintln(bw, "# flow\tsize\ttime\tweight"); err != nil {
		return fmt.Errorf("writing trace header: %w", err)
	}
	for i, r := range records {
		line := strconv.Itoa(int(r.Flow)) + "\t" +
			strconv.FormatInt(r.Size, 10) + "\t" +
			strconv.FormatFloat(r.Time, 'g', -1, 64)
		if r.Weight != 0 {
			line += "\t" + strconv.FormatFloat(r.Weight, 'g', -1, 64)
		}
		if _, err := fmt.Fprintln(bw, line); err != nil {
			return fmt.Errorf("writing trace record %d: %w", i, err)
		}
	}
	return bw.Flush()
}

// SaveTraceFile writes records to path in the trace text format.
func SaveTraceFile(path string, records []sim.ArrivalRecord) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating trace file: %w", err)
	}
	if err := WriteTrace(file, records); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}
