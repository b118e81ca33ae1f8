package workload

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/fairqueue/fqsim/sim"
)

// departureColumns is the header row of a departure log CSV.
var departureColumns = []string{
	"scheduler", "packet_id", "flow_id", "size",
	"arrival_time", "start_time", "departure_time", "latency",
}

// ExportDepartures writes a departure log as CSV, one row per packet in log order.
// Times use the shortest representation that round-trips.
func ExportDepartures(w io.Writer, deps []sim.Departure) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(departureColumns); err != nil {
		return fmt.Errorf("writing CSV header: %w", err)
	}
	for _, d := range deps {
		row := []string{
			string(d.Scheduler),
			strconv.FormatInt(d.PacketID, 10),
			strconv.Itoa(int(d.Flow)),
			strconv.FormatInt(d.Size, 10),
			formatTime(d.ArrivalTime),
			formatTime(d.StartTime),
			formatTime(d.DepartureTime),
			formatTime(d.Latency()),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("writing CSV row %d: %w", d.PacketID, err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// ExportDeparturesFile writes the departure log CSV to path.
func ExportDeparturesFile(path string, deps []sim.Departure) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating departures file: %w", err)
	}
	if err := ExportDepartures(file, deps); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}

// LoadDepartures reads a CSV written by ExportDepartures.
func LoadDepartures(r io.Reader) ([]sim.Departure, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = len(departureColumns)
	if _, err := reader.Read(); err != nil {
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}
	var deps []sim.Departure
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading CSV row: %w", err)
		}
		d, err := parseDepartureRow(row)
		if err != nil {
			return nil, fmt.Errorf("departure row %d: %w", len(deps)+1, err)
		}
		deps = append(deps, d)
	}
	return deps, nil
}

func parseDepartureRow(row []string) (sim.Departure, error) {
	var d sim.Departure
	var err error
	d.Scheduler = sim.PolicyKind(row[0])
	if d.PacketID, err = strconv.ParseInt(row[1], 10, 64); err != nil {
		return d, fmt.Errorf("packet_id: %w", err)
	}
	flow, err := strconv.Atoi(row[2])
	if err != nil {
		return d, fmt.Errorf("flow_id: %w", err)
	}
	d.Flow = sim.FlowID(flow)
	if d.Size, err = strconv.ParseInt(row[3], 10, 64); err != nil {
		return d, fmt.Errorf("size: %w", err)
	}
	if d.ArrivalTime, err = strconv.ParseFloat(row[4], 64); err != nil {
		return d, fmt.Errorf("arrival_time: %w", err)
	}
	if d.StartTime, err = strconv.ParseFloat(row[5], 64); err != nil {
		return d, fmt.Errorf("start_time: %w", err)
	}
	if d.DepartureTime, err = strconv.ParseFloat(row[6], 64); err != nil {
		return d, fmt.Errorf("departure_time: %w", err)
	}
	return d, nil
}

func formatTime(t float64) string {
	return strconv.FormatFloat(t, 'g', -1, 64)
}
