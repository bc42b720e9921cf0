package service

import (
	"context"
	"errors"
	"testing"

	"github.com/okian/catalog/internal/domain/fingerprint"
	"github.com/okian/catalog/internal/domain/model"
	"github.com/okian/catalog/internal/domain/validate"
	"github.com/okian/catalog/internal/domain/venue"
	. "github.com/smartystreets/goconvey/convey"
)

func TestValidateRow(t *testing.T) {
	Convey("Given a service whose validator is missing", t, func() {
		s := &Service{engine: fingerprint.New()}
		row := model.RawEventRow{EventID: "e1", Title: "Jazz", StartDatetime: "2024-05-01T22:00", VenueID: "v1"}

		Convey("When a row is validated", func() {
			var c checked
			So(func() { c = s.validateRow(row) }, ShouldNotPanic)

			Convey("Then the panic should become an unknown quarantine", func() {
				So(c.quarantine, ShouldNotBeNil)
				So(c.quarantine.Reason, ShouldEqual, model.ReasonUnknown)
				So(c.quarantine.Detail, ShouldStartWith, "panic:")
				So(c.quarantine.Row.EventID, ShouldEqual, "e1")
			})
		})
	})
}

func TestResolveRows(t *testing.T) {
	Convey("Given validated and quarantined rows", t, func() {
		s := &Service{engine: fingerprint.New(), validator: validate.New(), rowWorkers: 2}
		index := venue.BuildIndex([]model.Venue{{VenueID: "v1", Name: "Musicbox"}})
		rows := []model.RawEventRow{
			{EventID: "e1", Title: "Jazz", StartDatetime: "2024-05-01T22:00", VenueName: "musicbox"},
			{EventID: "e2", StartDatetime: "2024-05-01T22:00", VenueID: "v1"},
		}
		checkedRows, err := s.validateRows(context.Background(), rows)
		So(err, ShouldBeNil)

		Convey("When they are resolved", func() {
			out, err := s.resolveRows(context.Background(), index, checkedRows)

			Convey("Then resolution should keep input order and pass quarantines through", func() {
				So(err, ShouldBeNil)
				So(out, ShouldHaveLength, 2)
				So(out[0].quarantine, ShouldBeNil)
				So(out[0].observation.Venue.VenueID, ShouldEqual, "v1")
				So(out[0].observation.Venue.MatchedBy, ShouldEqual, venue.KeyName)
				So(out[1].quarantine, ShouldNotBeNil)
				So(out[1].quarantine.Reason, ShouldEqual, model.ReasonMissingTitle)
			})
		})

		Convey("When the context is already cancelled", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			_, err := s.resolveRows(ctx, index, checkedRows)
			So(errors.Is(err, context.Canceled), ShouldBeTrue)
		})
	})
}
