package dashboard

import (
	"time"

	"doka-backend/internal/models"

	"github.com/shopspring/decimal"
)

type ChartPoint struct {
	Label string          `json:"label"` // bucket start date
	Sales int             `json:"sales"`
	Items int             `json:"items"`
	Total decimal.Decimal `json:"total"`
}

type SalesChart struct {
	Location   string          `json:"location,omitempty"`
	Period     string          `json:"period"` // daily | weekly | monthly
	From       string          `json:"from"`
	To         string          `json:"to"`
	Points     []ChartPoint    `json:"points"`
	GrandTotal decimal.Decimal `json:"grandTotal"`
}

// ChartRange returns the first bucket start and the exclusive end for count
// buckets of period ending with the one containing now. Unknown periods fall
// back to daily.
func ChartRange(period string, count int, now time.Time) (string, time.Time, time.Time) {
	today := startOfDay(now)
	switch period {
	case "weekly":
		start := today.AddDate(0, 0, -7*(count-1)-6)
		return period, start, today.AddDate(0, 0, 1)
	case "monthly":
		month := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		return period, month.AddDate(0, -(count - 1), 0), month.AddDate(0, 1, 0)
	default:
		return "daily", today.AddDate(0, 0, -(count - 1)), today.AddDate(0, 0, 1)
	}
}

// BuildSalesChart sums sales into count consecutive buckets. Weekly buckets are
// seven-day windows ending today; empty buckets are kept so charts have no gaps.
func BuildSalesChart(sales []models.Sale, location, period string, count int, now time.Time) SalesChart {
	period, start, end := ChartRange(period, count, now)

	points := make([]ChartPoint, count)
	bucketStart := func(i int) time.Time {
		switch period {
		case "weekly":
			return start.AddDate(0, 0, 7*i)
		case "monthly":
			return start.AddDate(0, i, 0)
		}
		return start.AddDate(0, 0, i)
	}
	for i := range points {
		points[i] = ChartPoint{Label: bucketStart(i).Format("2006-01-02"), Total: decimal.Zero}
	}

	grand := decimal.Zero
	for _, s := range sales {
		if location != "" && s.Location != location {
			continue
		}
		d := s.Date.In(now.Location())
		if d.Before(start) || !d.Before(end) {
			continue
		}
		i := count - 1
		for i > 0 && d.Before(bucketStart(i)) {
			i--
		}
		points[i].Sales++
		points[i].Items += s.ItemCount()
		points[i].Total = points[i].Total.Add(s.Total)
		grand = grand.Add(s.Total)
	}

	return SalesChart{
		Location:   location,
		Period:     period,
		From:       start.Format("2006-01-02"),
		To:         end.AddDate(0, 0, -1).Format("2006-01-02"),
		Points:     points,
		GrandTotal: grand,
	}
}
