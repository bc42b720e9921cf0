package service

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/okian/catalog/internal/domain/dedupe"
	"github.com/okian/catalog/internal/domain/model"
	"github.com/okian/catalog/internal/domain/validate"
	"github.com/okian/catalog/internal/domain/venue"
	"github.com/okian/catalog/pkg/metrics"
)

// checked is the result of validating one row: exactly one of quarantine
// or record.
type checked struct {
	row        model.RawEventRow
	record     validate.Record
	quarantine *model.Quarantined
}

// outcome is the per-row result: exactly one of quarantine or observation.
type outcome struct {
	quarantine  *model.Quarantined
	observation dedupe.Observation
}

// resolutionMethodNone labels unresolved references in metrics.
const resolutionMethodNone = "none"

// forEachRow applies fn to every item with at most workers in flight.
// Results are written by position so later stages keep input order.
func forEachRow[T, R any](ctx context.Context, workers int, in []T, fn func(T) R) ([]R, error) {
	out := make([]R, len(in))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range in {
		if err := gctx.Err(); err != nil {
			break
		}
		i := i
		g.Go(func() error {
			out[i] = fn(in[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// validateRows runs the field checks on every row in parallel.
func (s *Service) validateRows(ctx context.Context, rows []model.RawEventRow) ([]checked, error) {
	return forEachRow(ctx, s.rowWorkers, rows, s.validateRow)
}

// resolveRows resolves venues and fingerprints the rows that passed
// validation. Quarantined rows pass through unchanged.
func (s *Service) resolveRows(ctx context.Context, index *venue.Index, rows []checked) ([]outcome, error) {
	return forEachRow(ctx, s.rowWorkers, rows, func(c checked) outcome {
		if c.quarantine != nil {
			return outcome{quarantine: c.quarantine}
		}
		return s.resolveRow(index, c)
	})
}

// validateRow applies the field checks. A panic is downgraded to the
// unknown reason.
func (s *Service) validateRow(row model.RawEventRow) (c checked) {
	defer func() {
		if r := recover(); r != nil {
			c = checked{row: row, quarantine: quarantine(row, model.ReasonUnknown, fmt.Sprintf("panic: %v", r), "")}
		}
	}()

	rec, err := s.validator.Validate(row)
	if err != nil {
		return checked{row: row, quarantine: quarantine(row, validate.ReasonOf(err), detailOf(err), "")}
	}
	return checked{row: row, record: rec}
}

// resolveRow maps the row's venue reference onto the index. A panic is
// downgraded to the unknown reason.
func (s *Service) resolveRow(index *venue.Index, c checked) (o outcome) {
	row := c.row
	defer func() {
		if r := recover(); r != nil {
			o = outcome{quarantine: quarantine(row, model.ReasonUnknown, fmt.Sprintf("panic: %v", r), "")}
		}
	}()

	switch res := index.Resolve(venue.Reference{
		VenueID:    row.VenueID,
		VenueName:  row.VenueName,
		SourceName: row.SourceName,
	}).(type) {
	case venue.Resolved:
		metrics.RecordVenueResolution(string(res.MatchedBy))
		return outcome{observation: dedupe.Observation{
			Record:      c.record,
			Venue:       res,
			Fingerprint: s.engine.Fingerprint(c.record.Title, c.record.StartAt, res.VenueID),
			SourceLabel: row.SourceLabel(),
		}}
	case venue.Unresolved:
		metrics.RecordVenueResolution(resolutionMethodNone)
		return outcome{quarantine: quarantine(row, model.ReasonVenueResolutionFailed,
			fmt.Sprintf("no venue matches %q", res.RawName), res.RawName)}
	default:
		return outcome{quarantine: quarantine(row, model.ReasonUnknown, fmt.Sprintf("unexpected resolution %T", res), "")}
	}
}

func quarantine(row model.RawEventRow, reason model.QuarantineReason, detail, venueLabel string) *model.Quarantined {
	return &model.Quarantined{
		Row:        row,
		Reason:     reason,
		Detail:     detail,
		VenueLabel: venueLabel,
	}
}

func detailOf(err error) string {
	if rej, ok := err.(*validate.Rejection); ok {
		return rej.Detail
	}
	return err.Error()
}
