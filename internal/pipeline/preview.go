// Package pipeline orchestrates the preview phase: parse statement rows in
// input order, resolve a ledger for each narration under bounded concurrency,
// and account for every input row in the result.
package pipeline

import (
	"context"
	"errors"

	"github.com/anayak/bank2tally/internal/ledger"
	"github.com/anayak/bank2tally/internal/statement"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// DefaultWorkers bounds concurrent classification calls. Sized conservatively
// for the classifier's rate limit; override per deployment with -workers.
const DefaultWorkers = 4

// Resolver is the slice of ledger.Resolver the pipeline needs.
type Resolver interface {
	Resolve(ctx context.Context, narration string) (string, error)
}

// Pipeline turns a statement table into preview rows.
type Pipeline struct {
	resolver Resolver
	workers  int
	log      zerolog.Logger
}

// New creates a preview pipeline. workers <= 0 selects DefaultWorkers.
func New(resolver Resolver, workers int, log zerolog.Logger) *Pipeline {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Pipeline{resolver: resolver, workers: workers, log: log}
}

// Row is one successfully previewed transaction. Row numbers are 1-based data
// row positions; Flagged marks rows whose classification failed and carry the
// Unclassified placeholder for manual review.
type Row struct {
	Row       int     `json:"row"`
	Date      string  `json:"date"`
	Narration string  `json:"narration"`
	Amount    float64 `json:"amount"`
	VType     string  `json:"vtype"`
	Ledger    string  `json:"ledger"`
	Flagged   bool    `json:"flagged,omitempty"`
}

// Skipped identifies a row excluded from the preview and why.
type Skipped struct {
	Row    int    `json:"row"`
	Reason string `json:"error"`
}

// Result enumerates the fate of every input row: previewed, skipped, or
// previewed-but-flagged. Rows preserve input order.
type Result struct {
	Rows    []Row     `json:"rows"`
	Skipped []Skipped `json:"skipped"`
	Flagged []int     `json:"flagged"`
}

// Preview parses the table and resolves a ledger for each parsed row.
// Parse and classification failures are row-scoped; a cache failure aborts
// the whole batch (cache writes already committed remain valid).
func (p *Pipeline) Preview(ctx context.Context, t *statement.Table) (*Result, error) {
	if err := t.RequireColumns(statement.RequiredColumns...); err != nil {
		return nil, err
	}

	type item struct {
		row int
		rec statement.Record
	}

	items := make([]item, 0, t.Len())
	skipped := make([]Skipped, 0)
	for i := 0; i < t.Len(); i++ {
		rec, err := statement.ParseRow(t, i)
		if err != nil {
			p.log.Warn().Int("row", i+1).Err(err).Msg("Skipping unparsable row")
			skipped = append(skipped, Skipped{Row: i + 1, Reason: err.Error()})
			continue
		}
		items = append(items, item{row: i + 1, rec: rec})
	}

	// Resolve concurrently but write results by index so output order
	// matches input order even when classifications finish out of order.
	rows := make([]Row, len(items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)

	for i, it := range items {
		g.Go(func() error {
			name, err := p.resolver.Resolve(gctx, it.rec.Narration)
			flagged := false
			if err != nil {
				var classErr *ledger.ClassificationError
				if !errors.As(err, &classErr) {
					return err
				}
				p.log.Warn().Int("row", it.row).Err(err).Msg("Classification failed, flagging row")
				name = ledger.Unclassified
				flagged = true
			}
			rows[i] = Row{
				Row:       it.row,
				Date:      it.rec.DateText(),
				Narration: it.rec.Narration,
				Amount:    it.rec.Amount.Round(2).InexactFloat64(),
				VType:     string(it.rec.Kind),
				Ledger:    name,
				Flagged:   flagged,
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	flagged := make([]int, 0)
	for _, r := range rows {
		if r.Flagged {
			flagged = append(flagged, r.Row)
		}
	}

	p.log.Info().
		Int("rows", len(rows)).
		Int("skipped", len(skipped)).
		Int("flagged", len(flagged)).
		Msg("Preview batch processed")

	return &Result{Rows: rows, Skipped: skipped, Flagged: flagged}, nil
}
