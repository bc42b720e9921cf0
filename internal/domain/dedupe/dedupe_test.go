package dedupe_test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/okian/catalog/internal/domain/dedupe"
	"github.com/okian/catalog/internal/domain/model"
	"github.com/okian/catalog/internal/domain/validate"
	"github.com/okian/catalog/internal/domain/venue"
	. "github.com/smartystreets/goconvey/convey"
)

type stepClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *stepClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Minute)
	return c.t
}

func observation(label string) dedupe.Observation {
	price := 10.0
	return dedupe.Observation{
		Record: validate.Record{
			Row:      model.RawEventRow{EventID: "e1", SourceName: label, TicketURL: " https://tix.example/e1 "},
			EventID:  "e1",
			Title:    "Jazz Night",
			StartAt:  time.Date(2024, 5, 1, 22, 0, 0, 0, time.UTC),
			PriceMin: &price,
			Status:   "scheduled",
			Tags:     []string{"jazz"},
		},
		Venue:       venue.Resolved{VenueID: "v1", VenueName: "Musicbox", MatchedBy: venue.KeyID},
		Fingerprint: "fp-1",
		SourceLabel: label,
	}
}

func TestMerge(t *testing.T) {
	Convey("Given a fresh observation", t, func() {
		now := time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC)
		ev := dedupe.Merge(nil, observation("SourceA"), now)

		Convey("Then a new event should be created with a one-entry ledger", func() {
			So(ev.EventID, ShouldEqual, "e1")
			So(ev.Title, ShouldEqual, "Jazz Night")
			So(ev.VenueID, ShouldEqual, "v1")
			So(ev.VenueMatchedBy, ShouldEqual, "id")
			So(ev.TicketURL, ShouldEqual, "https://tix.example/e1")
			So(ev.SourceCount, ShouldEqual, 1)
			So(ev.Sources, ShouldResemble, []string{"SourceA"})
			So(ev.FirstSeenAt, ShouldEqual, now)
			So(ev.LastSeenAt, ShouldEqual, now)
			So(ev.ChangedAt, ShouldEqual, now)
			So(ev.ChangeHash, ShouldEqual, dedupe.ChangeHash(observation("SourceA")))
		})

		Convey("When the same observation is merged again", func() {
			later := now.Add(time.Hour)
			again := dedupe.Merge(&ev, observation("SourceA"), later)

			Convey("Then the source count should not double", func() {
				So(again.SourceCount, ShouldEqual, 1)
				So(again.Sources, ShouldResemble, []string{"SourceA"})
				So(again.LastSeenAt, ShouldEqual, later)
				So(again.ChangedAt, ShouldEqual, now)
				So(again.FirstSeenAt, ShouldEqual, now)
			})

			Convey("Then the original event should be untouched", func() {
				So(ev.LastSeenAt, ShouldEqual, now)
			})
		})

		Convey("When another source reports a changed status", func() {
			later := now.Add(time.Hour)
			obs := observation("SourceB")
			obs.Record.Status = "cancelled"
			obs.Record.Title = "Jazz Night (Cancelled)"
			merged := dedupe.Merge(&ev, obs, later)

			Convey("Then display fields should be overwritten and changed_at set", func() {
				So(merged.Status, ShouldEqual, "cancelled")
				So(merged.Title, ShouldEqual, "Jazz Night (Cancelled)")
				So(merged.ChangedAt, ShouldEqual, later)
				So(merged.ChangeHash, ShouldNotEqual, ev.ChangeHash)
				So(merged.EventID, ShouldEqual, "e1")
				So(merged.Sources, ShouldResemble, []string{"SourceA", "SourceB"})
				So(merged.SourceCount, ShouldEqual, 2)
			})
		})

		Convey("When only a non-core field differs", func() {
			obs := observation("SourceA")
			obs.Record.Row.Description = "new text"
			merged := dedupe.Merge(&ev, obs, now.Add(time.Hour))

			Convey("Then display fields should be kept", func() {
				So(merged.Description, ShouldEqual, "")
				So(merged.ChangedAt, ShouldEqual, now)
			})
		})

		Convey("When the source label is blank", func() {
			fresh := dedupe.Merge(nil, observation(" "), now)
			So(fresh.Sources, ShouldResemble, []string{"unknown"})
			So(fresh.SourceCount, ShouldEqual, 1)
		})
	})
}

func TestChangeHash(t *testing.T) {
	Convey("Given the same instant stated in two offsets", t, func() {
		a := observation("SourceA")
		b := observation("SourceB")
		b.Record.StartAt = a.Record.StartAt.In(time.FixedZone("+02", 7200))

		Convey("Then the change hash should be equal", func() {
			So(dedupe.ChangeHash(a), ShouldEqual, dedupe.ChangeHash(b))
		})

		Convey("Then a price change should alter the hash", func() {
			upper := 25.0
			b.Record.PriceMax = &upper
			So(dedupe.ChangeHash(a), ShouldNotEqual, dedupe.ChangeHash(b))
		})
	})
}

func TestLedger(t *testing.T) {
	Convey("Given a ledger with a stepping clock", t, func() {
		clock := &stepClock{t: time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC)}
		l := dedupe.NewLedger(dedupe.WithClock(clock.now))

		So(l.Size(), ShouldEqual, 0)
		So(l.DuplicatesMerged(), ShouldEqual, 0)

		Convey("When two sources report the same event", func() {
			_, matchedA := l.Observe(observation("SourceA"))
			ev, matchedB := l.Observe(observation("SourceB"))

			Convey("Then one event should carry both sources", func() {
				So(matchedA, ShouldBeFalse)
				So(matchedB, ShouldBeTrue)
				So(l.Size(), ShouldEqual, 1)
				So(l.DuplicatesMerged(), ShouldEqual, 1)
				So(ev.SourceCount, ShouldEqual, 2)
				So(ev.Sources, ShouldResemble, []string{"SourceA", "SourceB"})
				So(ev.FirstSeenAt.Before(ev.LastSeenAt), ShouldBeTrue)
			})
		})

		Convey("When distinct events are observed", func() {
			for i := 0; i < 5; i++ {
				obs := observation("SourceA")
				obs.Fingerprint = fmt.Sprintf("fp-%d", i)
				obs.Record.EventID = fmt.Sprintf("e%d", i)
				l.Observe(obs)
			}

			Convey("Then events should keep first-seen order", func() {
				events := l.Events()
				So(len(events), ShouldEqual, 5)
				for i, ev := range events {
					So(ev.EventID, ShouldEqual, fmt.Sprintf("e%d", i))
					So(ev.SourceCount, ShouldEqual, len(ev.Sources))
				}
			})

			Convey("Then snapshots should not alias ledger state", func() {
				events := l.Events()
				events[0].Sources[0] = "mutated"
				So(l.Events()[0].Sources[0], ShouldEqual, "SourceA")
			})
		})

		Convey("When observations arrive concurrently", func() {
			var wg sync.WaitGroup
			for i := 0; i < 20; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					l.Observe(observation(fmt.Sprintf("S%d", i%4)))
				}(i)
			}
			wg.Wait()

			Convey("Then the ledger should count every match once", func() {
				So(l.Size(), ShouldEqual, 1)
				So(l.DuplicatesMerged(), ShouldEqual, 19)
				So(l.Events()[0].SourceCount, ShouldEqual, 4)
			})
		})
	})
}
