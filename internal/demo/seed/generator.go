package seed

import (
	"fmt"
	"math"
	"math/rand"
	"time"
)

// ViewerRow is one day of audience numbers for a brand and channel.
type ViewerRow struct {
	BrandID  string `parquet:"brandid"`
	DayDate  string `parquet:"daydate"`
	Channel  string `parquet:"channel"`
	Viewers  int64  `parquet:"viewers"`
	Sessions int64  `parquet:"sessions"`
}

// SalesRow is one day of revenue for a brand and channel.
type SalesRow struct {
	BrandID string  `parquet:"brandid"`
	DayDate string  `parquet:"daydate"`
	Channel string  `parquet:"channel"`
	Orders  int64   `parquet:"orders"`
	Revenue float64 `parquet:"revenue"`
}

var channels = []string{"web", "mobile", "email", "social"}

type Generator struct {
	rnd    *rand.Rand
	brands []string
	start  time.Time
	days   int
}

// NewGenerator produces the same rows for the same seed. Dates run from
// start for days days, one row per brand and channel.
func NewGenerator(seed int64, brands int, start time.Time, days int) *Generator {
	ids := make([]string, 0, brands)
	for i := 1; i <= brands; i++ {
		ids = append(ids, fmt.Sprintf("brand-%03d", i))
	}
	return &Generator{
		rnd:    rand.New(rand.NewSource(seed)),
		brands: ids,
		start:  time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC),
		days:   days,
	}
}

func (g *Generator) Viewers() []ViewerRow {
	rows := make([]ViewerRow, 0, g.rowCount())
	g.each(func(brand, day, channel string) {
		viewers := int64(200 + g.rnd.Intn(5000))
		rows = append(rows, ViewerRow{
			BrandID:  brand,
			DayDate:  day,
			Channel:  channel,
			Viewers:  viewers,
			Sessions: viewers + int64(g.rnd.Intn(int(viewers))),
		})
	})
	return rows
}

func (g *Generator) Sales() []SalesRow {
	rows := make([]SalesRow, 0, g.rowCount())
	g.each(func(brand, day, channel string) {
		orders := int64(g.rnd.Intn(120))
		rows = append(rows, SalesRow{
			BrandID: brand,
			DayDate: day,
			Channel: channel,
			Orders:  orders,
			Revenue: round2(float64(orders) * (15 + g.rnd.Float64()*85)),
		})
	})
	return rows
}

func (g *Generator) each(fn func(brand, day, channel string)) {
	for offset := 0; offset < g.days; offset++ {
		day := g.start.AddDate(0, 0, offset).Format(time.DateOnly)
		for _, brand := range g.brands {
			for _, channel := range channels {
				fn(brand, day, channel)
			}
		}
	}
}

func (g *Generator) rowCount() int {
	return g.days * len(g.brands) * len(channels)
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}
