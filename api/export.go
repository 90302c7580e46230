package api

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/vainnor/airspace-engine/conflict"
	"github.com/vainnor/airspace-engine/flight"
)

const (
	flightsSheet   = "Flights"
	conflictsSheet = "Conflicts"
)

// ExportConflicts serves the current flights and their conflicts as an
// xlsx workbook. Both sheets come from the same registry snapshot.
func (s *Server) ExportConflicts(w http.ResponseWriter, r *http.Request) {
	snap := s.engine.Snapshot()
	cs, err := s.engine.ConflictsIn(r.Context(), snap)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}

	f, err := conflictWorkbook(snap.Flights, cs)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="conflicts-v%d.xlsx"`, snap.Version))
	if _, err := f.WriteTo(w); err != nil {
		s.lg.Warn("Error writing workbook", "error", err, "request_id", requestID(r.Context()))
	}
}

func conflictWorkbook(flights []*flight.Flight, cs []conflict.Conflict) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", flightsSheet); err != nil {
		f.Close()
		return nil, err
	}
	if _, err := f.NewSheet(conflictsSheet); err != nil {
		f.Close()
		return nil, err
	}

	rows := [][]any{{"Callsign", "Route", "Speed (kt)", "Flight level", "Entry time", "Exit time"}}
	for _, fl := range flights {
		exit := fl.Timeline[len(fl.Timeline)-1].Time
		rows = append(rows, []any{
			fl.Callsign,
			strings.Join(fl.Route, "-"),
			fl.Speed,
			fmt.Sprintf("FL%03d", fl.FlightLevel),
			fl.EntryTime.UTC().Format(time.RFC3339),
			exit.UTC().Format(time.RFC3339),
		})
	}
	if err := writeRows(f, flightsSheet, rows); err != nil {
		f.Close()
		return nil, err
	}

	rows = [][]any{{"Type", "Flight 1", "Flight 2", "FL 1", "FL 2", "Location", "Start", "End"}}
	for _, c := range cs {
		p := c.Base()
		rows = append(rows, []any{
			string(c.Type()),
			p.Flight1,
			p.Flight2,
			p.FlightLevel1,
			p.FlightLevel2,
			conflict.Describe(c),
			p.StartTime.UTC().Format(time.RFC3339),
			p.EndTime.UTC().Format(time.RFC3339),
		})
	}
	if err := writeRows(f, conflictsSheet, rows); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	return nil
}
