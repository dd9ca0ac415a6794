package reference

import (
	"fmt"
	"sort"

	"github.com/selim-create/kg-growth/internal/domain/model"
)

type key struct {
	mt  model.MeasurementType
	sex model.Sex
}

// Catalog owns one table per (measurement type, sex).
type Catalog struct {
	tables map[key]*Table
}

// TableInfo summarises a loaded table.
type TableInfo struct {
	MeasurementType model.MeasurementType `json:"measurement_type"`
	Sex             model.Sex             `json:"sex"`
	Axis            model.Axis            `json:"axis"`
	Rows            int                   `json:"rows"`
	Min             float64               `json:"min"`
	Max             float64               `json:"max"`
}

// NewCatalog builds a catalog from validated tables. Two tables for the same
// combination are rejected as malformed reference data.
func NewCatalog(tables ...*Table) (*Catalog, error) {
	c := &Catalog{tables: make(map[key]*Table, len(tables))}
	for _, t := range tables {
		if t == nil {
			return nil, fmt.Errorf("%w: nil table", model.ErrMalformedReferenceData)
		}
		k := key{mt: t.measurementType, sex: t.sex}
		if _, dup := c.tables[k]; dup {
			return nil, fmt.Errorf("%w: duplicate table for %s/%s", model.ErrMalformedReferenceData, k.mt, k.sex)
		}
		c.tables[k] = t
	}
	return c, nil
}

// Resolve returns the table for the combination or ErrReferenceNotFound.
func (c *Catalog) Resolve(mt model.MeasurementType, sex model.Sex) (*Table, error) {
	if c != nil {
		if t, ok := c.tables[key{mt: mt, sex: sex}]; ok {
			return t, nil
		}
	}
	return nil, fmt.Errorf("%w: %s/%s", model.ErrReferenceNotFound, mt, sex)
}

// Current lets a static catalog act as its own Provider.
func (c *Catalog) Current() *Catalog { return c }

// Len returns the number of tables.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.tables)
}

// RowCount returns the number of rows across all tables.
func (c *Catalog) RowCount() int {
	n := 0
	if c == nil {
		return n
	}
	for _, t := range c.tables {
		n += t.Len()
	}
	return n
}

// Summary lists the loaded tables ordered by measurement type then sex.
func (c *Catalog) Summary() []TableInfo {
	if c == nil {
		return nil
	}
	out := make([]TableInfo, 0, len(c.tables))
	for k, t := range c.tables {
		lo, hi := t.Range()
		out = append(out, TableInfo{
			MeasurementType: k.mt,
			Sex:             k.sex,
			Axis:            k.mt.Axis(),
			Rows:            t.Len(),
			Min:             lo,
			Max:             hi,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].MeasurementType != out[j].MeasurementType {
			return out[i].MeasurementType < out[j].MeasurementType
		}
		return out[i].Sex < out[j].Sex
	})
	return out
}

// Provider yields the catalog snapshot to use for one request.
type Provider interface {
	Current() *Catalog
}
