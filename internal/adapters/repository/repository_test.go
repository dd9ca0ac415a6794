package repository

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/selim-create/kg-growth/internal/domain/model"
	"github.com/selim-create/kg-growth/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func visitEvent(child, visit string, at time.Time) model.HistoryEvent {
	return model.HistoryEvent{
		ChildID:    child,
		VisitID:    visit,
		Sex:        model.SexFemale,
		MeasuredAt: at,
		Results: []model.AssessmentResult{
			{MeasurementType: model.WeightForAge, Breakpoint: 180, Observed: 7.1, ZScore: -0.2, Percentile: 42.1, Category: model.CategoryNormal, RedFlags: []model.RedFlag{}},
			{MeasurementType: model.HeightForAge, Breakpoint: 180, Observed: 58, ZScore: -3.1, Percentile: 0.1, Category: model.CategorySeverelyLow,
				RedFlags: []model.RedFlag{{Kind: model.RedFlagStunting, Severity: model.SeverityCritical, Direction: model.DirectionLow}}},
		},
	}
}

// storeContract runs the behaviour every Store must share.
func storeContract(newStore func() Store) {
	ctx := context.Background()
	t0 := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	Convey("When a visit is saved", func() {
		s := newStore()
		defer func() { _ = s.Close() }()
		n, err := s.SaveAll(ctx, RecordsFromEvent(visitEvent("child-1", "visit-1", t0)))

		Convey("Then its records are listed in visit order", func() {
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 2)
			So(s.Count(ctx), ShouldEqual, 2)

			recs, err := s.ListByChild(ctx, "child-1", 10)
			So(err, ShouldBeNil)
			So(recs, ShouldHaveLength, 2)
			So(recs[0].MeasurementType, ShouldEqual, model.WeightForAge)
			So(recs[1].MeasurementType, ShouldEqual, model.HeightForAge)
			So(recs[1].RedFlags, ShouldResemble, []model.RedFlag{{Kind: model.RedFlagStunting, Severity: model.SeverityCritical, Direction: model.DirectionLow}})
			So(recs[0].RedFlags, ShouldNotBeNil)
			So(recs[0].MeasuredAt.Equal(t0), ShouldBeTrue)
			So(recs[0].Sex, ShouldEqual, model.SexFemale)
			So(recs[0].Percentile, ShouldEqual, 42.1)
		})

		Convey("And the same visit is saved again", func() {
			n, err := s.SaveAll(ctx, RecordsFromEvent(visitEvent("child-1", "visit-1", t0)))

			Convey("Then nothing new is stored", func() {
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 0)
				So(s.Count(ctx), ShouldEqual, 2)
			})

			Convey("And a single save reports the duplicate", func() {
				err := s.Save(ctx, RecordsFromEvent(visitEvent("child-1", "visit-1", t0))[0])
				So(errors.Is(err, ErrDuplicate), ShouldBeTrue)
			})
		})

		Convey("And a later visit is saved", func() {
			_, err := s.SaveAll(ctx, RecordsFromEvent(visitEvent("child-1", "visit-2", t0.Add(30*24*time.Hour))))
			So(err, ShouldBeNil)

			Convey("Then the newest visit comes first and limit applies", func() {
				recs, err := s.ListByChild(ctx, "child-1", 3)
				So(err, ShouldBeNil)
				So(recs, ShouldHaveLength, 3)
				So(recs[0].VisitID, ShouldEqual, "visit-2")
				So(recs[1].VisitID, ShouldEqual, "visit-2")
				So(recs[2].VisitID, ShouldEqual, "visit-1")
			})
		})
	})

	Convey("When two children use the same visit id", func() {
		s := newStore()
		defer func() { _ = s.Close() }()
		nA, errA := s.SaveAll(ctx, RecordsFromEvent(visitEvent("child-a", "visit-1", t0)))
		nB, errB := s.SaveAll(ctx, RecordsFromEvent(visitEvent("child-b", "visit-1", t0)))

		Convey("Then each child keeps its own history", func() {
			So(errA, ShouldBeNil)
			So(errB, ShouldBeNil)
			So(nA, ShouldEqual, 2)
			So(nB, ShouldEqual, 2)
			So(s.Count(ctx), ShouldEqual, 4)

			recs, err := s.ListByChild(ctx, "child-b", 10)
			So(err, ShouldBeNil)
			So(recs, ShouldHaveLength, 2)
			So(recs[0].ChildID, ShouldEqual, "child-b")
		})
	})

	Convey("When visits without a visit id repeat", func() {
		s := newStore()
		defer func() { _ = s.Close() }()
		_, err1 := s.SaveAll(ctx, RecordsFromEvent(visitEvent("child-2", "", t0)))
		_, err2 := s.SaveAll(ctx, RecordsFromEvent(visitEvent("child-2", "", t0.Add(time.Hour))))

		Convey("Then both are stored", func() {
			So(err1, ShouldBeNil)
			So(err2, ShouldBeNil)
			So(s.Count(ctx), ShouldEqual, 4)
		})
	})

	Convey("When listing an unknown child or a bad limit", func() {
		s := newStore()
		defer func() { _ = s.Close() }()
		_, errUnknown := s.ListByChild(ctx, "nobody", 10)
		_, errLimit := s.ListByChild(ctx, "nobody", 0)

		So(errors.Is(errUnknown, ErrNotFound), ShouldBeTrue)
		So(errors.Is(errLimit, ErrInvalidLimit), ShouldBeTrue)
	})

	Convey("When a record is invalid", func() {
		s := newStore()
		defer func() { _ = s.Close() }()
		r := RecordsFromEvent(visitEvent("", "visit-x", t0))[0]
		err := s.Save(ctx, r)

		So(errors.Is(err, ErrInvalidRecord), ShouldBeTrue)
		So(s.Count(ctx), ShouldEqual, 0)
	})

	Convey("When writers run concurrently", func() {
		s := newStore()
		defer func() { _ = s.Close() }()
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				ev := visitEvent("child-c", uuid.NewString(), t0.Add(time.Duration(i)*time.Hour))
				if _, err := s.SaveAll(ctx, RecordsFromEvent(ev)); err != nil {
					panic(err)
				}
			}(i)
		}
		wg.Wait()
		So(s.Count(ctx), ShouldEqual, 16)
	})
}

func TestMemoryStore(t *testing.T) {
	Convey("Given a memory store", t, func() {
		storeContract(func() Store { return NewMemoryStore() })
	})

	Convey("Given a closed memory store", t, func() {
		s := NewMemoryStore()
		So(s.Close(), ShouldBeNil)
		_, err := s.SaveAll(context.Background(), RecordsFromEvent(visitEvent("c", "v", time.Now())))
		So(errors.Is(err, ErrClosed), ShouldBeTrue)
	})
}

func TestSQLiteStore(t *testing.T) {
	Convey("Given a sqlite store", t, func() {
		dir := t.TempDir()
		storeContract(func() Store {
			s, err := NewSQLiteStore(context.Background(), filepath.Join(dir, "db", uuid.NewString()+".db"))
			if err != nil {
				t.Fatalf("open sqlite: %v", err)
			}
			return s
		})
	})

	Convey("Given a sqlite database reopened after writes", t, func() {
		ctx := context.Background()
		path := filepath.Join(t.TempDir(), "history.db")
		s, err := NewSQLiteStore(ctx, path)
		So(err, ShouldBeNil)
		_, err = s.SaveAll(ctx, RecordsFromEvent(visitEvent("child-9", "visit-9", time.Now())))
		So(err, ShouldBeNil)
		So(s.Close(), ShouldBeNil)

		reopened, err := NewSQLiteStore(ctx, path)
		So(err, ShouldBeNil)
		defer func() { _ = reopened.Close() }()

		Convey("Then the history survives", func() {
			So(reopened.Count(ctx), ShouldEqual, 2)
			recs, err := reopened.ListByChild(ctx, "child-9", 5)
			So(err, ShouldBeNil)
			So(recs[0].ID, ShouldNotEqual, uuid.Nil)
		})
	})
}

func TestDialect(t *testing.T) {
	Convey("Given the supported dialects", t, func() {
		q := "SELECT a FROM t WHERE b = ? AND c = ? LIMIT ?"

		Convey("Then sqlite keeps question marks", func() {
			So(sqliteDialect.rebind(q), ShouldEqual, q)
		})

		Convey("Then postgres numbers placeholders", func() {
			So(postgresDialect.rebind(q), ShouldEqual, "SELECT a FROM t WHERE b = $1 AND c = $2 LIMIT $3")
		})

		Convey("Then the schema uses dialect float types", func() {
			So(postgresDialect.schema()[0], ShouldContainSubstring, "DOUBLE PRECISION")
			So(sqliteDialect.schema()[0], ShouldContainSubstring, "breakpoint REAL")
		})

		Convey("Then visit uniqueness is scoped to the child", func() {
			last := sqliteDialect.schema()[len(sqliteDialect.schema())-1]
			So(last, ShouldContainSubstring, "(child_id, visit_id, measurement_type)")
		})
	})
}

func TestOpen(t *testing.T) {
	Convey("Given store configurations", t, func() {
		ctx := context.Background()

		Convey("When history is disabled", func() {
			s, err := Open(ctx, Config{Driver: DriverNone})
			So(err, ShouldBeNil)
			So(s, ShouldBeNil)
		})

		Convey("When the memory driver is selected", func() {
			s, err := Open(ctx, Config{Driver: DriverMemory})
			So(err, ShouldBeNil)
			So(s, ShouldHaveSameTypeAs, &MemoryStore{})
		})

		Convey("When the sqlite driver is selected", func() {
			s, err := Open(ctx, Config{Driver: DriverSQLite, SQLitePath: filepath.Join(t.TempDir(), "h.db")})
			So(err, ShouldBeNil)
			So(s, ShouldHaveSameTypeAs, &SQLStore{})
			So(s.Close(), ShouldBeNil)
		})

		Convey("When postgres is unreachable", func() {
			_, err := Open(ctx, Config{Driver: DriverPostgres, PostgresDSN: "postgres://growth@127.0.0.1:1/growth?sslmode=disable&connect_timeout=1"},
				WithPingTimeout(2*time.Second))
			So(err, ShouldNotBeNil)
		})

		Convey("When the driver is unknown", func() {
			_, err := Open(ctx, Config{Driver: "mongo"})
			So(errors.Is(err, ErrUnknownDriver), ShouldBeTrue)
		})
	})
}
