// Package dashboard aggregates recorded sales for the owner's overview.
package dashboard

import (
	"sort"
	"time"

	"doka-backend/internal/ledger"
	"doka-backend/internal/models"

	"github.com/shopspring/decimal"
)

type PeriodStats struct {
	Sales        int             `json:"sales"`
	Items        int             `json:"items"`
	Total        decimal.Decimal `json:"total"`
	AverageOrder decimal.Decimal `json:"averageOrder"`
}

type Summary struct {
	Location         string      `json:"location,omitempty"`
	Today            PeriodStats `json:"today"`
	Week             PeriodStats `json:"week"`
	Month            PeriodStats `json:"month"`
	AllTime          PeriodStats `json:"allTime"`
	LowStockProducts int         `json:"lowStockProducts"`
	TodayMKD         string      `json:"todayMkd"`
	TodayEUR         string      `json:"todayEur"`
}

type TopProduct struct {
	ProductID uint            `json:"productId"`
	Model     string          `json:"model"`
	Color     string          `json:"color"`
	Qty       int             `json:"qty"`
	Revenue   decimal.Decimal `json:"revenue"`
}

func (p *PeriodStats) add(s models.Sale) {
	p.Sales++
	p.Items += s.ItemCount()
	p.Total = p.Total.Add(s.Total)
}

func (p *PeriodStats) finish() {
	if p.Sales > 0 {
		p.AverageOrder = p.Total.Div(decimal.NewFromInt(int64(p.Sales))).Round(2)
	}
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// Summarize buckets sales into today, the last seven days including today,
// the calendar month and all time. eurRate is MKD per EUR.
func Summarize(sales []models.Sale, products []models.Product, location string, now time.Time, eurRate decimal.Decimal) Summary {
	today := startOfDay(now)
	weekStart := today.AddDate(0, 0, -6)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())

	sum := Summary{Location: location}
	for _, s := range sales {
		if location != "" && s.Location != location {
			continue
		}
		d := s.Date.In(now.Location())
		sum.AllTime.add(s)
		if !d.Before(monthStart) {
			sum.Month.add(s)
		}
		if !d.Before(weekStart) {
			sum.Week.add(s)
		}
		if !d.Before(today) {
			sum.Today.add(s)
		}
	}
	for _, p := range []*PeriodStats{&sum.Today, &sum.Week, &sum.Month, &sum.AllTime} {
		p.finish()
	}

	sum.LowStockProducts = LowStockCount(products, location)
	sum.TodayMKD = sum.Today.Total.Round(0).String()
	if eurRate.IsPositive() {
		sum.TodayEUR = sum.Today.Total.Div(eurRate).StringFixed(2)
	}
	return sum
}

// LowStockCount counts products with at least one size at or below its
// threshold at location. An empty location checks the aggregate quantity.
func LowStockCount(products []models.Product, location string) int {
	n := 0
	for _, p := range products {
		for _, s := range p.Sizes {
			low := s.Quantity <= s.Threshold()
			if location != "" {
				low = ledger.IsLowStock(s, location)
			}
			if low {
				n++
				break
			}
		}
	}
	return n
}

// TopProducts ranks products by units sold, then by revenue.
func TopProducts(sales []models.Sale, limit int) []TopProduct {
	byID := map[uint]*TopProduct{}
	for _, s := range sales {
		for _, it := range s.Items {
			tp, ok := byID[it.ProductID]
			if !ok {
				tp = &TopProduct{ProductID: it.ProductID, Model: it.Model, Color: it.Color}
				byID[it.ProductID] = tp
			}
			tp.Qty += it.Qty
			tp.Revenue = tp.Revenue.Add(it.Price.Mul(decimal.NewFromInt(int64(it.Qty))))
		}
	}

	out := make([]TopProduct, 0, len(byID))
	for _, tp := range byID {
		out = append(out, *tp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Qty != out[j].Qty {
			return out[i].Qty > out[j].Qty
		}
		if !out[i].Revenue.Equal(out[j].Revenue) {
			return out[i].Revenue.GreaterThan(out[j].Revenue)
		}
		return out[i].ProductID < out[j].ProductID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
