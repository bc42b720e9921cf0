package service_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/okian/catalog/internal/adapters/feed"
	service "github.com/okian/catalog/internal/app"
	"github.com/okian/catalog/internal/domain/model"
	"github.com/okian/catalog/internal/domain/validate"
	"github.com/okian/catalog/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

type staticVenues []model.Venue

func (v staticVenues) Venues(context.Context) (*feed.VenueSet, error) {
	return &feed.VenueSet{Venues: v}, nil
}

type staticEvents struct {
	name  string
	rows  []model.RawEventRow
	err   error
	block bool
}

func (e staticEvents) FeedName() string { return e.name }

func (e staticEvents) Rows(ctx context.Context) ([]model.RawEventRow, error) {
	if e.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if e.err != nil {
		return nil, e.err
	}
	out := make([]model.RawEventRow, len(e.rows))
	for i, r := range e.rows {
		r.Feed = e.name
		r.Line = i + 1
		out[i] = r
	}
	return out, nil
}

var venues = staticVenues{
	{VenueID: "v1", Name: "Musicbox", InstagramHandle: "@musicboxlisboa"},
	{VenueID: "v2", Name: "Lux", Aliases: []string{"Lux Frágil"}},
}

var fixedNow = time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC)

func newService(rows ...model.RawEventRow) *service.Service {
	return service.New(
		service.WithLogger(logger.Nop()),
		service.WithClock(func() time.Time { return fixedNow }),
		service.WithRowWorkers(4),
		service.WithVenueSource(venues),
		service.WithEventSources(staticEvents{name: "test", rows: rows}),
	)
}

func ingest(svc *service.Service) *model.Result {
	res, err := svc.Ingest(context.Background())
	So(err, ShouldBeNil)
	So(res, ShouldNotBeNil)
	return res
}

func balanced(res *model.Result) bool {
	s := res.Stats
	return s.QuarantinedTotal()+s.LoadedCount+s.DuplicatesMerged == s.TotalRows &&
		len(res.Quarantined) == s.QuarantinedTotal() &&
		len(res.Events) == s.LoadedCount
}

func TestIngest_Scenarios(t *testing.T) {
	Convey("Given a valid row referencing an indexed venue id", t, func() {
		res := ingest(newService(model.RawEventRow{EventID: "e1", Title: "Jazz Night", StartDatetime: "2024-05-01T22:00", VenueID: "v1"}))

		Convey("Then it should be loaded and resolved", func() {
			So(res.Quarantined, ShouldBeEmpty)
			So(len(res.Events), ShouldEqual, 1)
			ev := res.Events[0]
			So(ev.EventID, ShouldEqual, "e1")
			So(ev.VenueID, ShouldEqual, "v1")
			So(ev.VenueName, ShouldEqual, "Musicbox")
			So(ev.VenueMatchedBy, ShouldEqual, "id")
			So(ev.Sources, ShouldResemble, []string{"test"})
			So(ev.FirstSeenAt, ShouldEqual, fixedNow)
			So(res.PassID, ShouldNotBeEmpty)
			So(res.Stats.LoadedCount, ShouldEqual, 1)
		})
	})

	Convey("Given a row without a title", t, func() {
		res := ingest(newService(model.RawEventRow{EventID: "e1", StartDatetime: "2024-05-01T22:00", VenueID: "v1"}))

		Convey("Then it should be quarantined as missing_title", func() {
			So(res.Events, ShouldBeEmpty)
			So(len(res.Quarantined), ShouldEqual, 1)
			So(res.Quarantined[0].Reason, ShouldEqual, model.ReasonMissingTitle)
			So(res.Stats.QuarantinedByReason[model.ReasonMissingTitle], ShouldEqual, 1)
		})
	})

	Convey("Given a row naming a venue by its alias", t, func() {
		res := ingest(newService(model.RawEventRow{EventID: "e1", Title: "Club Night", StartDatetime: "2024-05-01T23:00", VenueName: "Lux Fragil"}))

		Convey("Then it should resolve to the aliased venue", func() {
			So(len(res.Events), ShouldEqual, 1)
			So(res.Events[0].VenueID, ShouldEqual, "v2")
			So(res.Events[0].VenueMatchedBy, ShouldEqual, "alias")
			So(res.Events[0].VenueName, ShouldEqual, "Lux")
		})
	})

	Convey("Given two sources reporting the same event", t, func() {
		res := ingest(newService(
			model.RawEventRow{EventID: "a-1", Title: "Jazz Night", StartDatetime: "2024-05-01T22:00", VenueID: "v1", SourceName: "SourceA"},
			model.RawEventRow{EventID: "b-7", Title: "JAZZ NIGHT", StartDatetime: "2024-05-01T22:10", VenueID: "v1", SourceName: "SourceB"},
		))

		Convey("Then one event should carry both sources", func() {
			So(len(res.Events), ShouldEqual, 1)
			So(res.Events[0].SourceCount, ShouldEqual, 2)
			So(res.Events[0].Sources, ShouldResemble, []string{"SourceA", "SourceB"})
			So(res.Events[0].EventID, ShouldEqual, "a-1")
			So(res.Stats.DuplicatesMerged, ShouldEqual, 1)
			So(balanced(res), ShouldBeTrue)
		})
	})

	Convey("Given a row with an unparsable start", t, func() {
		res := ingest(newService(model.RawEventRow{EventID: "e1", Title: "Jazz Night", StartDatetime: "not-a-date", VenueID: "v1"}))

		Convey("Then it should be quarantined as invalid_datetime", func() {
			So(res.Events, ShouldBeEmpty)
			So(res.Quarantined[0].Reason, ShouldEqual, model.ReasonInvalidDatetime)
			So(res.Quarantined[0].Detail, ShouldContainSubstring, "not-a-date")
		})
	})
}

func TestIngest_Invariants(t *testing.T) {
	Convey("Given a mixed feed", t, func() {
		rows := []model.RawEventRow{
			{EventID: "e1", Title: "Jazz Night", StartDatetime: "2024-05-01T22:00", VenueID: "v1", SourceName: "A"},
			{EventID: "e2", Title: "Jazz Night", StartDatetime: "2024-05-01T22:05", VenueName: "musicbox", SourceName: "B"},
			{EventID: "e3", StartDatetime: "2024-05-01T22:00", VenueName: "Nowhere"},
			{EventID: "e4", Title: "Ghost Gig", StartDatetime: "2024-05-02T21:00", VenueName: "Nowhere"},
			{EventID: "e5", Title: "Fado", StartDatetime: "2024-05-03T21:00", VenueID: "v2", PriceMin: "cheap"},
			{Title: "No id", StartDatetime: "2024-05-03T21:00", VenueID: "v2"},
			{EventID: "e7", Title: "Late", VenueID: "v2"},
			{EventID: "e8", Title: "Handle", StartDatetime: "2024-05-04T20:00", SourceName: "@MusicboxLisboa"},
		}
		res := ingest(newService(rows...))

		Convey("Then every row should be accounted for exactly once", func() {
			So(res.Stats.TotalRows, ShouldEqual, len(rows))
			So(balanced(res), ShouldBeTrue)
			So(len(res.Stats.QuarantinedByReason), ShouldEqual, len(model.AllReasons()))
		})

		Convey("Then reasons should follow the check order", func() {
			reasons := map[string]model.QuarantineReason{}
			for _, q := range res.Quarantined {
				reasons[q.Row.EventID] = q.Reason
			}
			So(reasons["e3"], ShouldEqual, model.ReasonMissingTitle)
			So(reasons["e4"], ShouldEqual, model.ReasonVenueResolutionFailed)
			So(reasons["e5"], ShouldEqual, model.ReasonParseError)
			So(reasons[""], ShouldEqual, model.ReasonMissingEventID)
			So(reasons["e7"], ShouldEqual, model.ReasonMissingStartDatetime)
		})

		Convey("Then unresolved rows should keep the raw venue label", func() {
			for _, q := range res.Quarantined {
				if q.Reason == model.ReasonVenueResolutionFailed {
					So(q.VenueLabel, ShouldEqual, "Nowhere")
					So(q.Row.Line, ShouldEqual, 4)
				}
			}
		})

		Convey("Then events should keep first-seen order with one per fingerprint", func() {
			So(len(res.Events), ShouldEqual, 2)
			So(res.Events[0].EventID, ShouldEqual, "e1")
			So(res.Events[0].Sources, ShouldResemble, []string{"A", "B"})
			So(res.Events[1].EventID, ShouldEqual, "e8")
			So(res.Events[1].VenueMatchedBy, ShouldEqual, "handle")
			seen := map[string]bool{}
			for _, ev := range res.Events {
				So(seen[ev.Fingerprint], ShouldBeFalse)
				seen[ev.Fingerprint] = true
				So(ev.SourceCount, ShouldEqual, len(ev.Sources))
				So(ev.FirstSeenAt.After(ev.LastSeenAt), ShouldBeFalse)
			}
		})

		Convey("When the pass runs again", func() {
			again := ingest(newService(rows...))

			Convey("Then the output should be identical apart from the pass id", func() {
				So(again.PassID, ShouldNotEqual, res.PassID)
				So(again.Events, ShouldResemble, res.Events)
				So(again.Quarantined, ShouldResemble, res.Quarantined)
				So(again.Stats, ShouldResemble, res.Stats)
			})
		})
	})

	Convey("Given many rows and a single worker", t, func() {
		var rows []model.RawEventRow
		for i := 0; i < 200; i++ {
			rows = append(rows, model.RawEventRow{
				EventID:       fmt.Sprintf("e%d", i),
				Title:         fmt.Sprintf("Show %d", i%50),
				StartDatetime: "2024-05-01T22:00",
				VenueID:       "v1",
				SourceName:    fmt.Sprintf("S%d", i%3),
			})
		}
		serial, err := service.New(
			service.WithLogger(logger.Nop()),
			service.WithClock(func() time.Time { return fixedNow }),
			service.WithRowWorkers(1),
			service.WithVenueSource(venues),
			service.WithEventSources(staticEvents{name: "test", rows: rows}),
		).Ingest(context.Background())
		So(err, ShouldBeNil)
		parallel := ingest(newService(rows...))

		Convey("Then parallelism should not change the result", func() {
			So(len(parallel.Events), ShouldEqual, 50)
			So(parallel.Stats.DuplicatesMerged, ShouldEqual, 150)
			So(parallel.Events, ShouldResemble, serial.Events)
		})
	})
}

func TestIngest_Configuration(t *testing.T) {
	Convey("Given a naive timestamp and a configured timezone", t, func() {
		plusTwo := time.FixedZone("+02", 2*3600)
		svc := service.New(
			service.WithLogger(logger.Nop()),
			service.WithValidator(validate.New(validate.WithLocation(plusTwo))),
			service.WithVenueSource(venues),
			service.WithEventSources(staticEvents{name: "test", rows: []model.RawEventRow{
				{EventID: "e1", Title: "Jazz", StartDatetime: "2024-05-01T22:00", VenueID: "v1"},
			}}),
		)
		res := ingest(svc)

		Convey("Then the start should be read in that timezone", func() {
			So(res.Events[0].StartAt.Equal(time.Date(2024, 5, 1, 20, 0, 0, 0, time.UTC)), ShouldBeTrue)
		})
	})

	Convey("Given several feeds", t, func() {
		svc := service.New(
			service.WithLogger(logger.Nop()),
			service.WithVenueSource(venues),
			service.WithEventSources(
				staticEvents{name: "first", rows: []model.RawEventRow{{EventID: "e1", Title: "Jazz", StartDatetime: "2024-05-01T22:00", VenueID: "v1"}}},
				staticEvents{name: "second", rows: []model.RawEventRow{{EventID: "x9", Title: "jazz", StartDatetime: "2024-05-01T22:00", VenueID: "v1"}}},
			),
		)
		res := ingest(svc)

		Convey("Then feed names should stand in for missing source names", func() {
			So(len(res.Events), ShouldEqual, 1)
			So(res.Events[0].Sources, ShouldResemble, []string{"first", "second"})
		})
	})
}

func TestIngest_Failures(t *testing.T) {
	Convey("Given a feed whose fetch fails", t, func() {
		boom := errors.New("connection refused")
		svc := service.New(
			service.WithLogger(logger.Nop()),
			service.WithVenueSource(venues),
			service.WithEventSources(
				staticEvents{name: "ok", rows: []model.RawEventRow{{EventID: "e1", Title: "Jazz", StartDatetime: "2024-05-01T22:00", VenueID: "v1"}}},
				staticEvents{name: "down", err: boom},
			),
		)
		res, err := svc.Ingest(context.Background())

		Convey("Then the pass should fail without partial output", func() {
			So(res, ShouldBeNil)
			So(errors.Is(err, service.ErrIngestion), ShouldBeTrue)
			So(errors.Is(err, boom), ShouldBeTrue)
			var ie *service.IngestionError
			So(errors.As(err, &ie), ShouldBeTrue)
			So(ie.Stage, ShouldEqual, service.StageFetching)
			So(ie.PassID, ShouldNotBeEmpty)
			So(err.Error(), ShouldContainSubstring, "down")
		})
	})

	Convey("Given a pass deadline that expires during fetch", t, func() {
		svc := service.New(
			service.WithLogger(logger.Nop()),
			service.WithPassTimeout(20*time.Millisecond),
			service.WithVenueSource(venues),
			service.WithEventSources(staticEvents{name: "slow", block: true}),
		)
		res, err := svc.Ingest(context.Background())

		Convey("Then the pass should fail at the timeout stage", func() {
			So(res, ShouldBeNil)
			var ie *service.IngestionError
			So(errors.As(err, &ie), ShouldBeTrue)
			So(ie.Stage, ShouldEqual, service.StageTimeout)
			So(errors.Is(err, context.DeadlineExceeded), ShouldBeTrue)
		})
	})

	Convey("Given no sources", t, func() {
		_, err := service.New(service.WithLogger(logger.Nop())).Ingest(context.Background())
		So(errors.Is(err, service.ErrNoVenueSource), ShouldBeTrue)

		_, err = service.New(service.WithLogger(logger.Nop()), service.WithVenueSource(venues)).Ingest(context.Background())
		So(errors.Is(err, service.ErrNoEventSources), ShouldBeTrue)
		So(errors.Is(err, service.ErrIngestion), ShouldBeTrue)
	})

	Convey("Given a cancelled caller context", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := newService(model.RawEventRow{EventID: "e1"}).Ingest(ctx)
		So(errors.Is(err, service.ErrIngestion), ShouldBeTrue)
		So(errors.Is(err, context.Canceled), ShouldBeTrue)

		var ie *service.IngestionError
		So(errors.As(err, &ie), ShouldBeTrue)
		So(ie.Stage, ShouldEqual, service.StageValidating)
	})
}
