package backtest

import (
	"io"

	"github.com/gocarina/gocsv"
)

// computeMetrics derives return and drawdown figures from the equity curve.
func computeMetrics(result *Result) {
	result.FinalEquity = result.InitialCash
	if len(result.Snapshots) > 0 {
		result.FinalEquity = result.Snapshots[len(result.Snapshots)-1].Account.EquityValue
	}
	if result.InitialCash > 0 {
		result.TotalReturn = (result.FinalEquity - result.InitialCash) / result.InitialCash * 100
	}

	peak := result.InitialCash
	maxDrawdown := 0.0
	for _, snapshot := range result.Snapshots {
		equity := snapshot.Account.EquityValue
		if equity > peak {
			peak = equity
		}
		if peak > 0 {
			drawdown := (peak - equity) / peak
			if drawdown > maxDrawdown {
				maxDrawdown = drawdown
			}
		}
	}
	result.MaxDrawdown = maxDrawdown * 100
}

// snapshotRow is the CSV shape of one simulated day.
type snapshotRow struct {
	Day         string  `csv:"day"`
	Equity      float64 `csv:"equity"`
	Cash        float64 `csv:"cash"`
	BuyingPower float64 `csv:"buying_power"`
	Positions   int     `csv:"positions"`
}

// WriteSnapshotsCSV exports a run's daily snapshots as CSV.
func WriteSnapshotsCSV(w io.Writer, result *Result) error {
	rows := make([]snapshotRow, 0, len(result.Snapshots))
	for _, snapshot := range result.Snapshots {
		rows = append(rows, snapshotRow{
			Day:         snapshot.Day.Format("2006-01-02"),
			Equity:      snapshot.Account.EquityValue,
			Cash:        snapshot.Account.Cash.AvailableAmount,
			BuyingPower: snapshot.Account.Cash.BuyingPower,
			Positions:   len(snapshot.Account.Positions),
		})
	}
	return gocsv.Marshal(&rows, w)
}
