// Package fingerprint computes the content key that identifies one
// real-world event across repeated fetches and sources.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/okian/catalog/internal/domain/normalize"
)

const (
	minutesPerDay        = 24 * 60
	defaultBucketMinutes = 30
)

// Engine derives fingerprints. It is immutable and safe for concurrent use.
type Engine struct {
	bucketMinutes int
}

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithBucketMinutes sets the time bucket granularity. Values that are not a
// positive divisor of a day are ignored.
func WithBucketMinutes(minutes int) Option {
	return func(e *Engine) {
		if minutes > 0 && minutes <= minutesPerDay && minutesPerDay%minutes == 0 {
			e.bucketMinutes = minutes
		}
	}
}

// New creates an Engine with configuration options.
func New(opts ...Option) *Engine {
	e := &Engine{bucketMinutes: defaultBucketMinutes}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// BucketMinutes returns the configured time bucket granularity.
func (e *Engine) BucketMinutes() int { return e.bucketMinutes }

// Key returns the unhashed composite "title|date|time|venue". The date is
// the calendar date of start in its own location; the time is start rounded
// to the nearest bucket.
func (e *Engine) Key(title string, start time.Time, venueID string) string {
	return strings.Join([]string{
		normalize.Text(title),
		start.Format("2006-01-02"),
		e.timeBucket(start),
		strings.TrimSpace(venueID),
	}, "|")
}

// Fingerprint returns the hex SHA-256 of Key.
func (e *Engine) Fingerprint(title string, start time.Time, venueID string) string {
	sum := sha256.Sum256([]byte(e.Key(title, start, venueID)))
	return hex.EncodeToString(sum[:])
}

// timeBucket rounds the wall-clock time of day to the nearest bucket. The
// last bucket of a day may round up to "24:00"; the date part is unchanged.
func (e *Engine) timeBucket(start time.Time) string {
	seconds := start.Hour()*3600 + start.Minute()*60 + start.Second()
	width := e.bucketMinutes * 60
	rounded := (seconds + width/2) / width * e.bucketMinutes
	return fmt.Sprintf("%02d:%02d", rounded/60, rounded%60)
}
