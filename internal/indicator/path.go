package indicator

import (
	"fmt"
	"strings"
	"time"
)

const (
	pathRoot = "Trading-Simulation"
	// Periods above this threshold are stored in one market file; shorter
	// periods are split into daily files.
	dailyFileThreshold = 45 * time.Minute
)

// Location identifies the indicator file of one data set and period.
type Location struct {
	DataSet     string
	PeriodLabel string
	Period      time.Duration
	FileName    string
}

// Path returns the directory holding the file relevant for tick.
func (l Location) Path(tick time.Time) string {
	base := pathRoot + "/" + strings.TrimSpace(l.DataSet) + "/" + strings.TrimSpace(l.PeriodLabel)
	if l.Period > dailyFileThreshold {
		return base
	}
	t := tick.UTC()
	return fmt.Sprintf("%s/%04d/%02d/%02d", base, t.Year(), int(t.Month()), t.Day())
}
