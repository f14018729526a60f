package app

import (
	"context"
	"fmt"
	"time"

	"cloneexec/internal/agent"
	"cloneexec/internal/logger"
)

// ReplayReport 汇总一次回放。
type ReplayReport struct {
	From     time.Time
	To       time.Time
	Ticks    int
	Outcomes map[agent.Outcome]int
	Fills    int
	Messages int
}

// Replay 以 step 为步长在 [from, to] 上逐个执行 tick。每个 tick 前把 paper
// 网关的市价设为当期指标的价格，之后撮合所有挂单。
func (a *App) Replay(ctx context.Context, from, to time.Time, step time.Duration) (ReplayReport, error) {
	report := ReplayReport{From: from.UTC(), To: to.UTC(), Outcomes: make(map[agent.Outcome]int)}
	if a == nil || a.agent == nil {
		return report, fmt.Errorf("app not initialized")
	}
	if a.paper == nil {
		return report, fmt.Errorf("replay needs the paper exchange")
	}
	if step <= 0 {
		return report, fmt.Errorf("replay step must be > 0")
	}
	if to.Before(from) {
		return report, fmt.Errorf("replay range ends before it starts")
	}
	logger.Infof("Replay: %s -> %s step %s", report.From.Format(time.RFC3339), report.To.Format(time.RFC3339), step)

	for at := report.From; !at.After(report.To); at = at.Add(step) {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		rec, err := a.resolver.Resolve(ctx, at)
		if err != nil {
			logger.Warnf("Replay: no indicator at %s: %v", at.Format(time.RFC3339), err)
		} else if rec != nil && rec.Rate > 0 {
			a.paper.SetMarketRate(rec.Rate)
		}
		outcome, _ := a.agent.TickErr(ctx, at)
		report.Ticks++
		report.Outcomes[outcome]++
		if outcome == agent.OutcomeFail {
			return report, fmt.Errorf("replay stopped at %s: tick failed", at.Format(time.RFC3339))
		}
		report.Fills += a.paper.Execute()
	}
	if a.recent != nil {
		report.Messages = len(a.recent.Messages())
	}
	logger.Infof("Replay: %d ticks, %d fills, %d audit messages", report.Ticks, report.Fills, report.Messages)
	return report, nil
}
