package refdata

import (
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/v2"

	"github.com/selim-create/kg-growth/internal/domain/model"
)

// ManifestName is the optional file that maps tables to keys explicitly.
const ManifestName = "manifest.yaml"

// Entry binds one reference object to the table it holds.
type Entry struct {
	Key             string
	MeasurementType model.MeasurementType
	Sex             model.Sex
}

// bytesProvider feeds raw YAML to koanf.
type bytesProvider []byte

func (b bytesProvider) ReadBytes() ([]byte, error) { return b, nil }

func (b bytesProvider) Read() (map[string]interface{}, error) {
	return nil, errors.New("bytes provider does not support Read")
}

// ParseManifest reads a manifest of the form
//
//	tables:
//	  weight_for_age:
//	    male: wfa_boys.txt
//	    female: wfa_girls.txt
//
// Keys are resolved relative to the manifest's directory. Measurement types
// and sexes accept the same aliases as the API (wfa, boys, ...).
func ParseManifest(data []byte, dir string) ([]Entry, error) {
	k := koanf.New(".")
	if err := k.Load(bytesProvider(data), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("%w: manifest: %w", ErrParse, err)
	}
	var tables map[string]map[string]string
	if err := k.UnmarshalWithConf("tables", &tables, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: manifest tables: %w", ErrParse, err)
	}

	var out []Entry
	for rawType, bySex := range tables {
		mt, err := model.ParseMeasurementType(rawType)
		if err != nil {
			return nil, fmt.Errorf("%w: manifest: %w", ErrParse, err)
		}
		for rawSex, key := range bySex {
			sex, err := model.ParseSex(rawSex)
			if err != nil {
				return nil, fmt.Errorf("%w: manifest: %w", ErrParse, err)
			}
			if strings.TrimSpace(key) == "" {
				return nil, fmt.Errorf("%w: manifest: empty key for %s/%s", ErrParse, mt, sex)
			}
			out = append(out, Entry{Key: path.Join(dir, key), MeasurementType: mt, Sex: sex})
		}
	}
	sortEntries(out)
	return out, nil
}
