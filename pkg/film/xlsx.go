package film

import (
	"fmt"
	"strconv"

	"github.com/xuri/excelize/v2"
)

const (
	energySheet = "Energy"
	countSheet  = "Counts"
	metaSheet   = "Tape"
)

// SaveXLSX writes the tape as a workbook with one column per band.
// labels name the band columns; missing labels fall back to the band index.
func (tp *Tape) SaveXLSX(path string, labels []string) error {
	timeSteps, bands := tp.Size()

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", energySheet); err != nil {
		return err
	}
	for _, name := range []string{countSheet, metaSheet} {
		if _, err := f.NewSheet(name); err != nil {
			return err
		}
	}

	header := make([]interface{}, bands+1)
	header[0] = "time"
	for b := 0; b < bands; b++ {
		if b < len(labels) {
			header[b+1] = labels[b]
		} else {
			header[b+1] = "band " + strconv.Itoa(b)
		}
	}
	for _, sheet := range []string{energySheet, countSheet} {
		if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
			return err
		}
	}

	raw := make([][]float64, bands)
	counts := make([][]uint32, bands)
	for b := range raw {
		raw[b] = tp.Raw(b)
		counts[b] = tp.Counts(b)
	}

	dt := tp.BinDuration()
	for t := 0; t < timeSteps; t++ {
		energyRow := make([]interface{}, bands+1)
		countRow := make([]interface{}, bands+1)
		energyRow[0] = float64(t) * dt
		countRow[0] = float64(t) * dt
		for b := 0; b < bands; b++ {
			energyRow[b+1] = raw[b][t]
			countRow[b+1] = counts[b][t]
		}

		cell, err := excelize.CoordinatesToCellName(1, t+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(energySheet, cell, &energyRow); err != nil {
			return err
		}
		if err := f.SetSheetRow(countSheet, cell, &countRow); err != nil {
			return err
		}
	}

	meta := [][]interface{}{
		{"time_steps", timeSteps},
		{"bands", bands},
		{"max_time", tp.maxTime},
	}
	for i, row := range meta {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(metaSheet, cell, &row); err != nil {
			return err
		}
	}

	return f.SaveAs(path)
}

// LoadXLSX reads a tape written by SaveXLSX
func LoadXLSX(path string) (*Tape, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	metaRows, err := f.GetRows(metaSheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, err
	}
	if len(metaRows) < 3 {
		return nil, fmt.Errorf("no tape metadata found in %s", path)
	}
	timeSteps, err := strconv.Atoi(metaRows[0][1])
	if err != nil {
		return nil, fmt.Errorf("invalid time_steps: %w", err)
	}
	bands, err := strconv.Atoi(metaRows[1][1])
	if err != nil {
		return nil, fmt.Errorf("invalid bands: %w", err)
	}
	maxTime, err := strconv.ParseFloat(metaRows[2][1], 64)
	if err != nil {
		return nil, fmt.Errorf("invalid max_time: %w", err)
	}

	tp, err := NewTape(timeSteps, bands, maxTime)
	if err != nil {
		return nil, err
	}

	energyRows, err := f.GetRows(energySheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, err
	}
	countRows, err := f.GetRows(countSheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, err
	}

	for t := 0; t < timeSteps && t+1 < len(energyRows) && t+1 < len(countRows); t++ {
		energyRow, countRow := energyRows[t+1], countRows[t+1]
		for b := 0; b < bands && b+1 < len(energyRow) && b+1 < len(countRow); b++ {
			value, err := strconv.ParseFloat(energyRow[b+1], 64)
			if err != nil {
				return nil, fmt.Errorf("energy at row %d: %w", t+2, err)
			}
			count, err := strconv.ParseUint(countRow[b+1], 10, 32)
			if err != nil {
				return nil, fmt.Errorf("count at row %d: %w", t+2, err)
			}
			tp.set(t, b, value, uint32(count))
		}
	}
	return tp, nil
}
