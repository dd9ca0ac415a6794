package probe

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/tidwall/gjson"

	"github.com/selim-create/kg-growth/pkg/logger"
)

const (
	historyPollInterval = 100 * time.Millisecond
	maxHistoryLimit     = 500
)

// Run generates visits, submits them concurrently, verifies every returned
// assessment and optionally reads each child's history back. It returns
// ErrViolations together with the stats when any check failed.
func Run(ctx context.Context, cfg Config) (*Stats, error) { //nolint:gocritic // hugeParam: config is copied once per run
	cfg.normalize()
	log := logger.Get().Named("probe")

	v, err := newVerifier(cfg.Thresholds, cfg.Policy)
	if err != nil {
		return nil, err
	}
	client := newHTTPClient(cfg.Timeout)
	r := &run{
		cfg:      &cfg,
		client:   client,
		verifier: v,
		log:      log,
		stats: &Stats{
			StartTime:  time.Now(),
			SlotErrors: map[string]int{},
			Categories: map[string]int{},
		},
		expected: map[string]int{},
		recorded: map[string]bool{},
	}

	ages, err := referenceAges(ctx, client, cfg.BaseURL)
	if err != nil {
		return nil, err
	}
	visits := generateVisits(ctx, &cfg, ages, r.stats)

	r.submitAll(ctx, visits)
	r.resubmit(ctx, visits[:cfg.Duplicates])
	if cfg.CheckHistory && r.stats.VisitsRecorded > 0 {
		r.checkHistory(ctx)
	}
	r.logServiceStats(ctx)

	r.stats.EndTime = time.Now()
	r.stats.Duration = r.stats.EndTime.Sub(r.stats.StartTime)
	log.Info(ctx, "probe finished",
		logger.Int("submitted", r.stats.VisitsSubmitted),
		logger.Int("failed", r.stats.VisitsFailed),
		logger.Int("assessments", r.stats.Assessments),
		logger.Int("violations", len(r.stats.Violations)),
		logger.Duration("took", r.stats.Duration),
	)
	if !r.stats.Passed() {
		return r.stats, fmt.Errorf("%w: %d violations, %d failed visits",
			ErrViolations, len(r.stats.Violations), r.stats.VisitsFailed)
	}
	return r.stats, nil
}

type run struct {
	cfg      *Config
	client   *httpClient
	verifier *verifier
	log      logger.Logger

	mu       sync.Mutex
	stats    *Stats
	expected map[string]int  // child id -> recorded assessments
	recorded map[string]bool // visit ids recorded on first submission
}

// submitAll posts every visit through a pool of cfg.Workers submitters.
func (r *run) submitAll(ctx context.Context, visits []VisitRequest) {
	r.log.Info(ctx, "submitting visits", logger.Int("visits", len(visits)), logger.Int("workers", r.cfg.Workers))

	ch := make(chan VisitRequest, r.cfg.Workers*2)
	var wg sync.WaitGroup
	for i := 0; i < r.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for visit := range ch {
				r.submit(ctx, visit)
			}
		}()
	}

	go func() {
		defer close(ch)
		for _, visit := range visits {
			select {
			case <-ctx.Done():
				return
			case ch <- visit:
			}
		}
	}()
	wg.Wait()
}

func (r *run) submit(ctx context.Context, visit VisitRequest) { //nolint:gocritic // hugeParam: request value
	body, status, err := r.client.post(ctx, r.cfg.BaseURL+"/visits", visit)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats.VisitsSubmitted++
	if err != nil || (status != http.StatusOK && status != http.StatusAccepted) {
		r.stats.VisitsFailed++
		r.log.Warn(ctx, "visit rejected",
			logger.String("visit_id", visit.VisitID),
			logger.Int("status", status),
			logger.String("body", string(body)),
		)
		return
	}

	resp := gjson.ParseBytes(body)
	recorded := resp.Get("recorded").Bool()
	ok := 0
	resp.Get("results").ForEach(func(_, slot gjson.Result) bool {
		if e := slot.Get("error"); e.Exists() {
			r.stats.SlotErrors[e.Get("code").String()]++
			return true
		}
		res := slot.Get("result")
		ok++
		r.stats.Assessments++
		r.stats.Categories[res.Get("category").String()]++
		r.stats.RedFlags += len(res.Get("red_flags").Array())
		r.stats.Violations = append(r.stats.Violations, r.verifier.check(visit.ChildID, visit.VisitID, res)...)
		return true
	})
	if recorded {
		r.stats.VisitsRecorded++
		r.expected[visit.ChildID] += ok
		r.recorded[visit.VisitID] = true
	}
	if r.cfg.Verbose {
		r.log.Debug(ctx, "visit assessed",
			logger.String("visit_id", visit.VisitID),
			logger.Int("assessments", ok),
			logger.Bool("recorded", recorded),
		)
	}
}

// resubmit posts visits again; the ones recorded the first time must come
// back flagged as duplicates and must not be recorded twice.
func (r *run) resubmit(ctx context.Context, visits []VisitRequest) {
	for _, visit := range visits {
		body, status, err := r.client.post(ctx, r.cfg.BaseURL+"/visits", visit)
		if err != nil || status != http.StatusOK {
			continue
		}
		resp := gjson.ParseBytes(body)

		r.mu.Lock()
		r.stats.DuplicatesSent++
		wasRecorded := r.recorded[visit.VisitID]
		dup, rec := resp.Get("duplicate").Bool(), resp.Get("recorded").Bool()
		if dup {
			r.stats.DuplicatesFlagged++
		}
		if wasRecorded && (!dup || rec) {
			r.stats.Violations = append(r.stats.Violations, Violation{
				ChildID: visit.ChildID,
				VisitID: visit.VisitID,
				Rule:    RuleDuplicate,
				Detail:  fmt.Sprintf("resubmission returned duplicate=%t recorded=%t", dup, rec),
			})
		}
		r.mu.Unlock()
	}
}

// checkHistory waits for the history writers and compares every child's
// recorded assessments with what the probe saw accepted.
func (r *run) checkHistory(ctx context.Context) {
	deadline := time.Now().Add(r.cfg.HistoryWait)
	for childID, want := range r.expected {
		if want == 0 {
			continue
		}
		want = min(want, maxHistoryLimit)
		got, ordered, err := r.pollHistory(ctx, childID, want, deadline)
		r.stats.HistoryChecked++
		switch {
		case err != nil:
			r.addViolation(childID, fmt.Sprintf("history read failed: %v", err))
		case got != want:
			r.addViolation(childID, fmt.Sprintf("expected %d records, got %d", want, got))
		case !ordered:
			r.addViolation(childID, "records are not ordered newest first")
		}
	}
}

func (r *run) pollHistory(ctx context.Context, childID string, want int, deadline time.Time) (int, bool, error) {
	u := r.cfg.BaseURL + "/children/" + url.PathEscape(childID) + "/history?limit=" + strconv.Itoa(want)
	for {
		body, status, err := r.client.get(ctx, u)
		if err != nil {
			return 0, false, err
		}
		var (
			got     int
			ordered = true
		)
		if status == http.StatusOK {
			records := gjson.GetBytes(body, "records").Array()
			got = len(records)
			for i := 1; i < len(records); i++ {
				prev, err1 := time.Parse(time.RFC3339Nano, records[i-1].Get("measured_at").String())
				cur, err2 := time.Parse(time.RFC3339Nano, records[i].Get("measured_at").String())
				if err1 != nil || err2 != nil || cur.After(prev) {
					ordered = false
				}
			}
		} else if status != http.StatusNotFound {
			return 0, false, fmt.Errorf("%w: %d", ErrUnexpectedStatus, status)
		}
		if got >= want || time.Now().After(deadline) {
			return got, ordered, nil
		}
		select {
		case <-ctx.Done():
			return got, ordered, ctx.Err()
		case <-time.After(historyPollInterval):
		}
	}
}

func (r *run) addViolation(childID, detail string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats.Violations = append(r.stats.Violations, Violation{ChildID: childID, Rule: RuleHistory, Detail: detail})
}

func (r *run) logServiceStats(ctx context.Context) {
	body, status, err := r.client.get(ctx, r.cfg.BaseURL+"/stats")
	if err != nil || status != http.StatusOK {
		if err == nil {
			err = fmt.Errorf("%w: %d", ErrUnexpectedStatus, status)
		}
		r.log.Warn(ctx, "could not read service stats", logger.Error(err))
		return
	}
	stats := gjson.ParseBytes(body)
	r.log.Info(ctx, "service stats",
		logger.Int("queue_length", int(stats.Get("queueLength").Int())),
		logger.Int("history_records", int(stats.Get("historyRecords").Int())),
		logger.Int("tables", int(stats.Get("tables").Int())),
	)
}
