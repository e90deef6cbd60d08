package trakt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sourcegraph/conc/pool"

	"traktical/internal/metrics"
)

const (
	// MaxWindowDays is the widest range Trakt's calendar endpoints serve per call.
	MaxWindowDays = 33

	MinDaysAgo = 0
	MaxDaysAgo = 30
	MinPeriod  = 1
	MaxPeriod  = 90

	// DefaultWindowTimeout bounds each sub-window request.
	DefaultWindowTimeout = 10 * time.Second

	dateLayout = "2006-01-02"
)

// ErrInvalidWindow is wrapped by every window validation failure.
var ErrInvalidWindow = errors.New("invalid calendar window")

// Window is a contiguous calendar range of Days days beginning at Start (UTC midnight).
type Window struct {
	Start time.Time
	Days  int
}

// StartDate formats the window start the way Trakt's calendar paths expect.
func (w Window) StartDate() string {
	return w.Start.Format(dateLayout)
}

// End returns the exclusive end of the window.
func (w Window) End() time.Time {
	return w.Start.AddDate(0, 0, w.Days)
}

// FetchFunc retrieves the entries of one sub-window.
type FetchFunc[T any] func(ctx context.Context, w Window) ([]T, error)

// ValidateWindow checks days_ago and period against their bounds. Values are
// never clamped.
func ValidateWindow(daysAgo, period int) error {
	var errs []error
	if daysAgo < MinDaysAgo || daysAgo > MaxDaysAgo {
		errs = append(errs, fmt.Errorf("days_ago must be between %d and %d, got %d", MinDaysAgo, MaxDaysAgo, daysAgo))
	}
	if period < MinPeriod || period > MaxPeriod {
		errs = append(errs, fmt.Errorf("period must be between %d and %d, got %d", MinPeriod, MaxPeriod, period))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidWindow, errors.Join(errs...))
}

// RequestWindow returns the start and length of the range covering
// [today-daysAgo, today+period).
func RequestWindow(now time.Time, daysAgo, period int) (time.Time, int) {
	now = now.UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return today.AddDate(0, 0, -daysAgo), daysAgo + period
}

// SplitWindow cuts days days from start into consecutive, non-overlapping
// windows of at most MaxWindowDays days.
func SplitWindow(start time.Time, days int) []Window {
	if days <= 0 {
		return nil
	}
	windows := make([]Window, 0, (days+MaxWindowDays-1)/MaxWindowDays)
	cursor := start
	for remaining := days; remaining > 0; {
		n := min(remaining, MaxWindowDays)
		windows = append(windows, Window{Start: cursor, Days: n})
		cursor = cursor.AddDate(0, 0, n)
		remaining -= n
	}
	return windows
}

// FetchBatch fetches every sub-window of [start, start+days). A single window
// is fetched inline; several are fetched concurrently and concatenated in no
// particular order. The first failure cancels the remaining fetches and is
// returned.
func FetchBatch[T any](ctx context.Context, start time.Time, days int, timeout time.Duration, fetch FetchFunc[T]) ([]T, error) {
	if timeout <= 0 {
		timeout = DefaultWindowTimeout
	}
	windows := SplitWindow(start, days)
	metrics.BatchWindows.Add(float64(len(windows)))

	switch len(windows) {
	case 0:
		return nil, nil
	case 1:
		return fetchWindow(ctx, windows[0], timeout, fetch)
	}

	log := slog.Default().With("component", "trakt-batch")
	log.Debug("dispatching calendar windows", "windows", len(windows), "start", start.Format(dateLayout), "days", days)

	p := pool.NewWithResults[[]T]().
		WithContext(ctx).
		WithCancelOnError().
		WithFirstError()
	for _, w := range windows {
		w := w // per-iteration copy for go < 1.22
		p.Go(func(ctx context.Context) ([]T, error) {
			return fetchWindow(ctx, w, timeout, fetch)
		})
	}

	chunks, err := p.Wait()
	if err != nil {
		log.Warn("calendar batch failed", "error", err)
		return nil, err
	}

	var out []T
	for _, chunk := range chunks {
		out = append(out, chunk...)
	}
	return out, nil
}

func fetchWindow[T any](ctx context.Context, w Window, timeout time.Duration, fetch FetchFunc[T]) ([]T, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	items, err := fetch(ctx, w)
	if err != nil {
		return nil, fmt.Errorf("window %s+%d: %w", w.StartDate(), w.Days, err)
	}
	return items, nil
}

// SetWindowTimeout sets the per sub-window timeout used by the batch calls.
func (c *Client) SetWindowTimeout(d time.Duration) {
	c.windowTimeout = d
}

// ShowsBatch returns every episode airing in the requested range.
func (c *Client) ShowsBatch(ctx context.Context, accessToken string, daysAgo, period int) ([]CalendarShow, error) {
	if err := ValidateWindow(daysAgo, period); err != nil {
		return nil, err
	}
	start, days := RequestWindow(c.now(), daysAgo, period)
	return FetchBatch(ctx, start, days, c.windowTimeout, func(ctx context.Context, w Window) ([]CalendarShow, error) {
		return c.GetShowCalendar(ctx, accessToken, w.StartDate(), w.Days)
	})
}

// MoviesBatch returns every movie releasing in the requested range.
func (c *Client) MoviesBatch(ctx context.Context, accessToken string, daysAgo, period int) ([]CalendarMovie, error) {
	if err := ValidateWindow(daysAgo, period); err != nil {
		return nil, err
	}
	start, days := RequestWindow(c.now(), daysAgo, period)
	return FetchBatch(ctx, start, days, c.windowTimeout, func(ctx context.Context, w Window) ([]CalendarMovie, error) {
		return c.GetMovieCalendar(ctx, accessToken, w.StartDate(), w.Days)
	})
}
