package refdata

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/selim-create/kg-growth/internal/domain/model"
	"github.com/selim-create/kg-growth/internal/domain/reference"
)

// DaysPerMonth converts WHO month tables to the day axis.
const DaysPerMonth = 30.4375

// axis column names, lowercased.
var (
	ageColumns    = map[string]float64{"day": 1, "days": 1, "age": 1, "agedays": 1, "month": DaysPerMonth, "months": DaysPerMonth}
	lengthColumns = map[string]float64{"length": 1, "height": 1, "lengthcm": 1, "heightcm": 1}
)

// Parse reads a WHO LMS table. The header row names the columns; only the
// breakpoint column (Day, Month, Length or Height) and L, M, S are used.
// Tab, comma, semicolon and whitespace separated files are accepted.
func Parse(r io.Reader, mt model.MeasurementType) ([]reference.Row, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: read: %w", ErrParse, err)
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	records, err := split(data)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: empty file", ErrParse)
	}

	header := records[0]
	bpCol, scale, err := breakpointColumn(header, mt)
	if err != nil {
		return nil, err
	}
	lCol, mCol, sCol := column(header, "l"), column(header, "m"), column(header, "s")
	if lCol < 0 || mCol < 0 || sCol < 0 {
		return nil, fmt.Errorf("%w: header %v lacks L, M or S", ErrParse, header)
	}

	rows := make([]reference.Row, 0, len(records)-1)
	for i, rec := range records[1:] {
		line := i + 2
		vals, err := floats(rec, line, bpCol, lCol, mCol, sCol)
		if err != nil {
			return nil, err
		}
		rows = append(rows, reference.Row{Breakpoint: vals[0] * scale, L: vals[1], M: vals[2], S: vals[3]})
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: no data rows", ErrParse)
	}
	return rows, nil
}

// split detects the delimiter from the first non-blank line and returns the
// non-blank records.
func split(data []byte) ([][]string, error) {
	first := firstLine(data)
	var delim rune
	switch {
	case strings.ContainsRune(first, '\t'):
		delim = '\t'
	case strings.ContainsRune(first, ','):
		delim = ','
	case strings.ContainsRune(first, ';'):
		delim = ';'
	}

	if delim == 0 {
		var out [][]string
		sc := bufio.NewScanner(bytes.NewReader(data))
		for sc.Scan() {
			if f := strings.Fields(sc.Text()); len(f) > 0 {
				out = append(out, f)
			}
		}
		if err := sc.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrParse, err)
		}
		return out, nil
	}

	cr := csv.NewReader(bytes.NewReader(data))
	cr.Comma = delim
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}
	out := records[:0]
	for _, rec := range records {
		if !blank(rec) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func firstLine(data []byte) string {
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			return sc.Text()
		}
	}
	return ""
}

func blank(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

func normalize(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.Trim(h, `"'`)
	return strings.NewReplacer(" ", "", "_", "", "(", "", ")", "").Replace(h)
}

func column(header []string, name string) int {
	for i, h := range header {
		if normalize(h) == name {
			return i
		}
	}
	return -1
}

// breakpointColumn finds the axis column matching mt and its scale to days
// or centimetres.
func breakpointColumn(header []string, mt model.MeasurementType) (int, float64, error) {
	names := ageColumns
	if mt.Axis() == model.AxisLengthCm {
		names = lengthColumns
	}
	for i, h := range header {
		if scale, ok := names[normalize(h)]; ok {
			return i, scale, nil
		}
	}
	return -1, 0, fmt.Errorf("%w: no %s column in header %v", ErrParse, mt.Axis(), header)
}

func floats(rec []string, line int, cols ...int) ([]float64, error) {
	out := make([]float64, len(cols))
	for i, c := range cols {
		if c >= len(rec) {
			return nil, fmt.Errorf("%w: line %d: missing column %d", ErrParse, line, c+1)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(rec[c]), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %q is not a number", ErrParse, line, rec[c])
		}
		out[i] = v
	}
	return out, nil
}
