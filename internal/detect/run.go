package detect

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/dvloznov/leakage-detector/internal/domain"
	"github.com/dvloznov/leakage-detector/internal/logger"
)

// Run evaluates all four rules against the batch in parallel, unions their
// output, and computes the raw aggregate summary.
//
// Rules read the batch as an immutable snapshot, so they need no
// synchronization; the union waits for all four. Any rule aborting (via
// context cancellation) aborts the whole stage: partial results from a
// subset of rules are not meaningful, since scoring assumes the full union.
// Zero flags is a valid, non-error outcome.
func Run(ctx context.Context, txns []domain.Transaction, span domain.DateRange, p Params) ([]domain.Flag, domain.DetectionSummary, error) {
	log := logger.FromContext(ctx)

	log.Info().
		Int("duplicate_window_days", p.DuplicateWindowDays).
		Float64("price_variance_threshold", p.PriceVarianceThreshold).
		Int("sla_grace_days", p.SLAGraceDays).
		Float64("volume_spike_sigma", p.VolumeSpikeSigma).
		Int("volume_rolling_window", p.VolumeRollingWindow).
		Msg("running detection rules")

	var results [4][]domain.Flag
	rules := []struct {
		name string
		fn   func() []domain.Flag
	}{
		{"duplicate", func() []domain.Flag { return Duplicates(txns, p.DuplicateWindowDays) }},
		{"price_variance", func() []domain.Flag { return PriceVariance(txns, p.PriceVarianceThreshold) }},
		{"sla_breach", func() []domain.Flag { return SLABreaches(txns, p.SLAGraceDays) }},
		{"volume_spike", func() []domain.Flag { return VolumeSpikes(txns, p.VolumeSpikeSigma, p.VolumeRollingWindow) }},
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, rule := range rules {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return fmt.Errorf("rule %s: %w", rule.name, err)
			}
			results[i] = rule.fn()
			log.Info().Str("rule", rule.name).Int("flags", len(results[i])).Msg("rule complete")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, domain.DetectionSummary{}, fmt.Errorf("run detection: %w", err)
	}

	flags := Aggregate(results[:])
	summary := Summarize(txns, flags, span)

	log.Info().
		Int("flags", summary.TotalFlags).
		Int("transactions", summary.TotalTransactions).
		Float64("total_leakage_gbp", summary.TotalLeakageGBP).
		Msg("detection complete")
	return flags, summary, nil
}

// Aggregate unions the per-rule flag slices and drops any repeated
// (transaction, rule) pair, keeping the first occurrence. Rules should not
// duplicate their own output; this is a correctness safeguard so the
// invariant holds on the aggregated result regardless.
func Aggregate(results [][]domain.Flag) []domain.Flag {
	type pair struct {
		id   string
		rule domain.Rule
	}

	seen := make(map[pair]bool)
	var flags []domain.Flag
	for _, ruleFlags := range results {
		for _, f := range ruleFlags {
			k := pair{f.Transaction.TransactionID, f.Rule}
			if seen[k] {
				continue
			}
			seen[k] = true
			flags = append(flags, f)
		}
	}
	return flags
}

// Summarize computes the raw aggregate over the flag union.
func Summarize(txns []domain.Transaction, flags []domain.Flag, span domain.DateRange) domain.DetectionSummary {
	byRule := make(map[domain.Rule]domain.RuleBreakdown)
	var total float64
	for _, f := range flags {
		b := byRule[f.Rule]
		b.Count++
		b.LeakageGBP += f.LeakageGBP
		byRule[f.Rule] = b
		total += f.LeakageGBP
	}
	for rule, b := range byRule {
		b.LeakageGBP = round2(b.LeakageGBP)
		byRule[rule] = b
	}

	return domain.DetectionSummary{
		TotalTransactions: len(txns),
		TotalFlags:        len(flags),
		TotalLeakageGBP:   round2(total),
		ByRule:            byRule,
		DateRange:         span,
	}
}
