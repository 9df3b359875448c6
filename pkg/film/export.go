package film

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/df07/go-acoustic-raytracer/pkg/core"
	"github.com/ulikunitz/xz"
)

var csvHeader = []string{"time_bin", "time", "band", "energy", "count"}

// set writes a single bin; the tape histogram has one channel and no border
func (tp *Tape) set(t, band int, value float64, count uint32) {
	_, bands := tp.hist.Size()
	i := t*bands + band
	tp.hist.Data()[i] = value
	tp.hist.Counts()[i] = count
}

// WriteCSV writes the tape as one row per (time step, band)
func (tp *Tape) WriteCSV(w io.Writer) error {
	timeSteps, bands := tp.Size()
	cw := csv.NewWriter(w)

	meta := []string{
		strconv.Itoa(timeSteps),
		strconv.Itoa(bands),
		strconv.FormatFloat(tp.maxTime, 'g', -1, 64),
	}
	if err := cw.Write([]string{"time_steps", "bands", "max_time"}); err != nil {
		return err
	}
	if err := cw.Write(meta); err != nil {
		return err
	}
	if err := cw.Write(csvHeader); err != nil {
		return err
	}

	dt := tp.BinDuration()
	for band := 0; band < bands; band++ {
		raw := tp.Raw(band)
		counts := tp.Counts(band)
		for t := range raw {
			row := []string{
				strconv.Itoa(t),
				strconv.FormatFloat(float64(t)*dt, 'g', -1, 64),
				strconv.Itoa(band),
				strconv.FormatFloat(raw[t], 'g', -1, 64),
				strconv.FormatUint(uint64(counts[t]), 10),
			}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
	}

	cw.Flush()
	return cw.Error()
}

// ReadCSV reads a tape written by WriteCSV
func ReadCSV(r io.Reader) (*Tape, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}
	if len(records) < 3 || len(records[1]) != 3 {
		return nil, fmt.Errorf("%w: missing tape header", core.ErrConfig)
	}

	timeSteps, err := strconv.Atoi(records[1][0])
	if err != nil {
		return nil, fmt.Errorf("invalid time_steps: %w", err)
	}
	bands, err := strconv.Atoi(records[1][1])
	if err != nil {
		return nil, fmt.Errorf("invalid bands: %w", err)
	}
	maxTime, err := strconv.ParseFloat(records[1][2], 64)
	if err != nil {
		return nil, fmt.Errorf("invalid max_time: %w", err)
	}

	tp, err := NewTape(timeSteps, bands, maxTime)
	if err != nil {
		return nil, err
	}

	for line, rec := range records[3:] {
		if len(rec) != len(csvHeader) {
			return nil, fmt.Errorf("%w: row %d has %d fields", core.ErrConfig, line+4, len(rec))
		}
		t, err1 := strconv.Atoi(rec[0])
		band, err2 := strconv.Atoi(rec[2])
		value, err3 := strconv.ParseFloat(rec[3], 64)
		count, err4 := strconv.ParseUint(rec[4], 10, 32)
		for _, err := range []error{err1, err2, err3, err4} {
			if err != nil {
				return nil, fmt.Errorf("row %d: %w", line+4, err)
			}
		}
		if t < 0 || t >= timeSteps || band < 0 || band >= bands {
			return nil, fmt.Errorf("%w: row %d addresses bin (%d, %d) outside %dx%d", core.ErrConfig, line+4, t, band, timeSteps, bands)
		}
		tp.set(t, band, value, uint32(count))
	}
	return tp, nil
}

// SaveCSV writes the tape to path, xz compressed when path ends in .xz
func (tp *Tape) SaveCSV(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if !strings.HasSuffix(path, ".xz") {
		if err := tp.WriteCSV(f); err != nil {
			return err
		}
		return f.Close()
	}

	xzWriter, err := xz.NewWriter(f)
	if err != nil {
		return fmt.Errorf("failed to create xz writer: %w", err)
	}
	if err := tp.WriteCSV(xzWriter); err != nil {
		return err
	}
	if err := xzWriter.Close(); err != nil {
		return fmt.Errorf("failed to finish xz stream: %w", err)
	}
	return f.Close()
}

// LoadCSV reads a tape from path, decompressing when path ends in .xz
func LoadCSV(path string) (*Tape, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var reader io.Reader = f
	if strings.HasSuffix(path, ".xz") {
		xzReader, err := xz.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("failed to create xz reader: %w", err)
		}
		reader = xzReader
	}
	return ReadCSV(reader)
}
