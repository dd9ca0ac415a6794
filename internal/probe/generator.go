package probe

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/selim-create/kg-growth/pkg/logger"
)

// Plausible measurement spans for children up to five years.
const (
	fiveYearsDays = 1856

	weightBirthKg = 3.3
	weightFiveKg  = 18.5
	heightBirthCm = 49.9
	heightFiveCm  = 110.0
	headBirthCm   = 34.5
	headFiveCm    = 50.5
)

// VisitRequest is the body sent to POST /visits.
type VisitRequest struct {
	ChildID             string   `json:"child_id"`
	VisitID             string   `json:"visit_id"`
	MeasuredAt          string   `json:"measured_at"`
	Sex                 string   `json:"sex"`
	AgeDays             float64  `json:"age_days"`
	WeightKg            *float64 `json:"weight_kg,omitempty"`
	HeightCm            *float64 `json:"height_cm,omitempty"`
	HeadCircumferenceCm *float64 `json:"head_circumference_cm,omitempty"`
}

// ageRange is the span of the age-axis tables loaded for one sex.
type ageRange struct{ min, max float64 }

// referenceAges reads GET /reference and returns the age span per sex.
func referenceAges(ctx context.Context, client *httpClient, baseURL string) (map[string]ageRange, error) {
	body, status, err := client.get(ctx, baseURL+"/reference")
	if err != nil {
		return nil, err
	}
	if status != 200 {
		return nil, fmt.Errorf("%w: GET /reference returned %d", ErrUnexpectedStatus, status)
	}

	ranges := map[string]ageRange{}
	gjson.GetBytes(body, "tables").ForEach(func(_, t gjson.Result) bool {
		if t.Get("axis").String() != "age_days" {
			return true
		}
		sex := t.Get("sex").String()
		lo, hi := t.Get("min").Float(), t.Get("max").Float()
		r, ok := ranges[sex]
		if !ok || lo < r.min {
			r.min = lo
		}
		if !ok || hi > r.max {
			r.max = hi
		}
		ranges[sex] = r
		return true
	})
	if len(ranges) == 0 {
		return nil, ErrNoReference
	}
	return ranges, nil
}

// generateVisits creates cfg.Visits visits spread over cfg.Children children.
// Values scatter around a typical growth curve so every category shows up.
func generateVisits(ctx context.Context, cfg *Config, ages map[string]ageRange, stats *Stats) []VisitRequest {
	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	sexes := make([]string, 0, len(ages))
	for _, s := range []string{"male", "female"} {
		if _, ok := ages[s]; ok {
			sexes = append(sexes, s)
		}
	}

	children := make([]string, cfg.Children)
	childSex := make([]string, cfg.Children)
	for i := range children {
		children[i] = uuid.NewString()
		childSex[i] = sexes[rng.IntN(len(sexes))]
	}

	base := time.Now().UTC().Add(-time.Duration(cfg.Visits) * time.Minute)
	visits := make([]VisitRequest, cfg.Visits)
	for i := range visits {
		c := i % cfg.Children
		r := ages[childSex[c]]
		age := r.min + rng.Float64()*(r.max-r.min)
		f := age / fiveYearsDays

		v := VisitRequest{
			ChildID:    children[c],
			VisitID:    uuid.NewString(),
			MeasuredAt: base.Add(time.Duration(i) * time.Minute).Format(time.RFC3339),
			Sex:        childSex[c],
			AgeDays:    float64(int(age)),
		}
		w := lerp(weightBirthKg, weightFiveKg, f) * (0.7 + 0.6*rng.Float64())
		h := lerp(heightBirthCm, heightFiveCm, f) * (0.88 + 0.24*rng.Float64())
		hc := lerp(headBirthCm, headFiveCm, f) * (0.9 + 0.2*rng.Float64())
		v.WeightKg, v.HeightCm = &w, &h
		// Head circumference is only measured at some visits.
		if rng.IntN(2) == 0 {
			v.HeadCircumferenceCm = &hc
		}
		visits[i] = v
	}

	stats.VisitsGenerated = len(visits)
	logger.Get().Info(ctx, "generated visits",
		logger.Int("visits", len(visits)),
		logger.Int("children", cfg.Children),
		logger.Any("seed", seed),
	)
	return visits
}

func lerp(a, b, f float64) float64 { return a + (b-a)*f }
