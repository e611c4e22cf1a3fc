package schedule

import (
	"context"
	"sort"
	"sync"

	"cloud.google.com/go/civil"

	"github.com/dvloznov/budget-tracker/internal/clock"
	"github.com/dvloznov/budget-tracker/internal/domain"
)

// PassOptions tunes one due pass.
type PassOptions struct {
	// PersonID narrows the pass to one person's series; empty sweeps all.
	PersonID string

	// DryRun selects and reports without executing or mutating anything.
	DryRun bool

	// ForceExecute overrides the per-series AutoExecute opt-in. Due-date
	// and pause checks still apply.
	ForceExecute bool

	// MaxDaysOverdue overrides the scheduler default when positive.
	MaxDaysOverdue int
}

// PassResult is one series' outcome within a pass.
type PassResult struct {
	SeriesID      string     `json:"series_id"`
	Description   string     `json:"description"`
	DueDate       civil.Date `json:"due_date"`
	TransactionID string     `json:"transaction_id,omitempty"`
	Error         string     `json:"error,omitempty"`
}

// PassSummary aggregates a pass for logging and surfacing to the user.
type PassSummary struct {
	Considered int  `json:"considered"`
	Due        int  `json:"due"`
	Executed   int  `json:"executed"`
	Failed     int  `json:"failed"`
	DryRun     bool `json:"dry_run"`
}

// PassReport is the full outcome of one scheduling sweep.
type PassReport struct {
	AsOf     civil.Date   `json:"as_of"`
	Executed []PassResult `json:"executed"`
	Failed   []PassResult `json:"failed"`
	Summary  PassSummary  `json:"summary"`
}

// RunDuePass sweeps all series, executes the due ones, and reports. Each
// series executes independently on a bounded worker pool; one failure never
// aborts the pass for the others. Dry runs produce the same selection twice
// in a row and mutate nothing.
func (s *Scheduler) RunDuePass(ctx context.Context, opts PassOptions) (*PassReport, error) {
	asOf := clock.Today(s.clk)
	maxOverdue := s.opts.MaxDaysOverdue
	if opts.MaxDaysOverdue > 0 {
		maxOverdue = opts.MaxDaysOverdue
	}

	all, err := s.series.ListSeries(ctx, opts.PersonID)
	if err != nil {
		return nil, err
	}

	report := &PassReport{AsOf: asOf}
	report.Summary.DryRun = opts.DryRun
	report.Summary.Considered = len(all)

	var due []*domain.RecurringSeries
	for _, series := range all {
		if !s.selectable(series, asOf, opts.ForceExecute) {
			continue
		}
		if !IsDue(series, asOf, maxOverdue) {
			continue
		}
		due = append(due, series)
	}
	report.Summary.Due = len(due)

	if opts.DryRun {
		for _, series := range due {
			report.Executed = append(report.Executed, PassResult{
				SeriesID:    series.ID,
				Description: series.Description,
				DueDate:     series.NextDueDate,
			})
		}
		sortResults(report.Executed)
		report.Summary.Executed = len(report.Executed)
		return report, nil
	}

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, s.opts.Workers)
	)
	for _, series := range due {
		series := series
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			result := PassResult{
				SeriesID:    series.ID,
				Description: series.Description,
				DueDate:     series.NextDueDate,
			}
			tx, err := s.executeAt(ctx, series.ID, asOf)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == errSkipped:
				// Another pass took this cycle; not ours to report.
			case err != nil:
				result.Error = err.Error()
				report.Failed = append(report.Failed, result)
			default:
				result.TransactionID = tx.ID
				report.Executed = append(report.Executed, result)
			}
		}()
	}
	wg.Wait()

	sortResults(report.Executed)
	sortResults(report.Failed)
	report.Summary.Executed = len(report.Executed)
	report.Summary.Failed = len(report.Failed)

	s.log.Info().
		Str("as_of", asOf.String()).
		Int("considered", report.Summary.Considered).
		Int("due", report.Summary.Due).
		Int("executed", report.Summary.Executed).
		Int("failed", report.Summary.Failed).
		Bool("dry_run", opts.DryRun).
		Msg("Due pass completed")

	return report, nil
}

// selectable applies everything but the date window: active, not paused, not
// past its end date, and opted into unattended execution unless forced.
func (s *Scheduler) selectable(series *domain.RecurringSeries, asOf civil.Date, force bool) bool {
	if !series.IsActive {
		return false
	}
	if series.PausedOn(asOf) {
		return false
	}
	if series.Ended(asOf) {
		return false
	}
	if !series.AutoExecute && !force {
		return false
	}
	return true
}

func sortResults(results []PassResult) {
	sort.Slice(results, func(i, j int) bool {
		return results[i].SeriesID < results[j].SeriesID
	})
}
