package refdata

import (
	"path"
	"sort"
	"strings"

	"github.com/selim-create/kg-growth/internal/domain/model"
)

// Indicator codes as used in WHO download file names.
var indicatorCodes = map[string]model.MeasurementType{
	"wfa":  model.WeightForAge,
	"lhfa": model.HeightForAge,
	"hfa":  model.HeightForAge,
	"lfa":  model.HeightForAge,
	"hcfa": model.HeadCircumferenceForAge,
	"wfl":  model.WeightForLength,
}

var sexCodes = map[string]model.Sex{
	"boys":   model.SexMale,
	"male":   model.SexMale,
	"girls":  model.SexFemale,
	"female": model.SexFemale,
}

var tableExts = map[string]bool{".txt": true, ".tsv": true, ".csv": true}

// EntryFromKey recognises WHO style names such as wfa_boys.txt or
// lhfa-girls-zscore-expanded-tables.txt. Unrelated keys return false.
func EntryFromKey(key string) (Entry, bool) {
	base := strings.ToLower(path.Base(key))
	ext := path.Ext(base)
	if !tableExts[ext] {
		return Entry{}, false
	}
	tokens := strings.FieldsFunc(strings.TrimSuffix(base, ext), func(r rune) bool {
		return r == '_' || r == '-' || r == '.' || r == ' '
	})

	var (
		e             = Entry{Key: key}
		haveMT, haveS bool
	)
	for _, t := range tokens {
		if mt, ok := indicatorCodes[t]; ok && !haveMT {
			e.MeasurementType, haveMT = mt, true
		}
		if s, ok := sexCodes[t]; ok && !haveS {
			e.Sex, haveS = s, true
		}
	}
	return e, haveMT && haveS
}

func sortEntries(es []Entry) {
	sort.Slice(es, func(i, j int) bool {
		if es[i].MeasurementType != es[j].MeasurementType {
			return es[i].MeasurementType < es[j].MeasurementType
		}
		return es[i].Sex < es[j].Sex
	})
}
