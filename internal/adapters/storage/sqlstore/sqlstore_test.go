package sqlstore_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/drillcore/internal/adapters/storage"
	"github.com/okian/drillcore/internal/adapters/storage/sqlstore"
	"github.com/okian/drillcore/internal/domain/bus"
	"github.com/okian/drillcore/internal/domain/model"
	"github.com/okian/drillcore/internal/domain/rotation"
	"github.com/okian/drillcore/internal/pipeline"
)

func openTemp(t *testing.T) *sqlstore.Store {
	t.Helper()
	s, err := sqlstore.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "drill.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func record(key string) storage.Record {
	return storage.Record{
		EventID:        "00000000-0000-0000-0000-000000000001",
		ActorID:        "actor-1",
		Kind:           model.KindAnswerSubmitted,
		Mode:           model.ModeStandard,
		IdempotencyKey: key,
		Payload:        []byte(`{"question_index":0}`),
		OccurredAt:     time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
	}
}

func TestSQLiteAppend(t *testing.T) {
	Convey("Given a migrated sqlite store", t, func() {
		ctx := context.Background()
		s := openTemp(t)
		So(s.Ping(ctx), ShouldBeNil)

		Convey("When the same key is appended twice", func() {
			So(s.Append(ctx, record("r1:ANSWER_SUBMITTED:0")), ShouldBeNil)
			So(s.Append(ctx, record("r1:ANSWER_SUBMITTED:0")), ShouldBeNil)
			So(s.Append(ctx, record("r1:ANSWER_SUBMITTED:1")), ShouldBeNil)

			Convey("Then each key is stored once, in order", func() {
				n, err := s.Count(ctx)
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 2)

				recs, err := s.Records(ctx, 10)
				So(err, ShouldBeNil)
				So(recs, ShouldHaveLength, 2)
				So(recs[0].IdempotencyKey, ShouldEqual, "r1:ANSWER_SUBMITTED:0")
				So(recs[0].Kind, ShouldEqual, model.KindAnswerSubmitted)
				So(recs[0].Mode, ShouldEqual, model.ModeStandard)
				So(recs[0].OccurredAt.Equal(record("").OccurredAt), ShouldBeTrue)
				So(string(recs[0].Payload), ShouldEqual, `{"question_index":0}`)

				latest, err := s.Records(ctx, 1)
				So(err, ShouldBeNil)
				So(latest[0].IdempotencyKey, ShouldEqual, "r1:ANSWER_SUBMITTED:1")
			})
		})

		Convey("When the events table is dropped", func() {
			_, err := s.DB().ExecContext(ctx, `DROP TABLE events`)
			So(err, ShouldBeNil)
			err = s.Append(ctx, record("k"))

			Convey("Then writes report a missing schema", func() {
				So(errors.Is(err, storage.ErrSchemaMissing), ShouldBeTrue)
				So(errors.Is(err, storage.ErrUnavailable), ShouldBeFalse)
			})
		})

		Convey("When the store is closed", func() {
			So(s.Close(), ShouldBeNil)

			Convey("Then writes report unavailability", func() {
				So(errors.Is(s.Append(ctx, record("k")), storage.ErrUnavailable), ShouldBeTrue)
				So(errors.Is(s.Ping(ctx), storage.ErrUnavailable), ShouldBeTrue)
			})
		})

		Convey("When migrations run again", func() {
			So(s.Migrate(ctx), ShouldBeNil)
		})
	})
}

func TestSQLiteCache(t *testing.T) {
	Convey("Given a sqlite rotation cache", t, func() {
		ctx := context.Background()
		c := sqlstore.NewCache(openTemp(t))

		st, err := c.Load(ctx)
		So(err, ShouldBeNil)
		So(st.Selection, ShouldBeNil)

		Convey("When state is saved twice", func() {
			ts := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
			for i := 1; i <= 2; i++ {
				So(c.Save(ctx, rotation.State{
					Selection: &rotation.Selection{Timestamp: ts, RotationID: fmt.Sprintf("rot_%d", i)},
					History:   []rotation.HistoryEntry{{RotationID: fmt.Sprintf("rot_%d", i), FeaturedID: "mtt_01"}},
				}), ShouldBeNil)
			}

			Convey("Then the latest state is loaded back", func() {
				out, err := c.Load(ctx)
				So(err, ShouldBeNil)
				So(out.Selection.RotationID, ShouldEqual, "rot_2")
				So(out.Selection.Timestamp.Equal(ts), ShouldBeTrue)
				So(out.History, ShouldHaveLength, 1)
			})
		})
	})
}

func TestPipelineOnSQLite(t *testing.T) {
	Convey("Given a pipeline writing to sqlite", t, func() {
		ctx := context.Background()
		s := openTemp(t)
		p := pipeline.New(bus.New(), s)
		So(p.Init(ctx), ShouldBeTrue)

		Convey("When a run starts", func() {
			r := p.Emit(ctx, model.RunStarted{RunRef: model.RunRef{RunID: "r1", GameID: "mtt_01"}, QuestionCount: 20}, "test")

			Convey("Then the event is durably recorded", func() {
				So(r.Success, ShouldBeTrue)
				So(r.LocalOnly, ShouldBeFalse)
				n, err := s.Count(ctx)
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 1)
			})
		})
	})
}

func TestClassifyPostgres(t *testing.T) {
	Convey("Postgres errors map to storage classes", t, func() {
		So(errors.Is(sqlstore.Classify(&pgconn.PgError{Code: "42P01"}), storage.ErrSchemaMissing), ShouldBeTrue)
		So(errors.Is(sqlstore.Classify(&pgconn.PgError{Code: "57P01"}), storage.ErrUnavailable), ShouldBeTrue)
		So(sqlstore.Classify(nil), ShouldBeNil)
	})
}
