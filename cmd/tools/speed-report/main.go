// Command speed-report renders an HTML report of recorded speed readings:
// summary statistics per vehicle class plus hourly charts from the rollup
// table.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/gonum/stat"

	_ "modernc.org/sqlite"

	"github.com/banshee-data/lane.report/internal/db"
	"github.com/banshee-data/lane.report/internal/security"
)

var (
	dbFile  = flag.String("db", "lane_data.db", "Path to the sqlite database")
	outFile = flag.String("out", "speed_report.html", "Output HTML file")
	limit   = flag.Int("limit", 10000, "Maximum readings and rollup buckets to load")
)

type classSummary struct {
	Class       string
	Count       int
	Infractions int
	Mean        float64
	StdDev      float64
	P50         float64
	P85         float64
	P98         float64
	Max         float64
}

// summarize computes per-class statistics over the raw readings.
func summarize(rows []db.ReadingRow) []classSummary {
	speeds := make(map[string][]float64)
	infractions := make(map[string]int)
	for _, r := range rows {
		speeds[r.VehicleClass] = append(speeds[r.VehicleClass], r.SpeedKMH)
		if r.Status == "infraction" {
			infractions[r.VehicleClass]++
		}
	}

	classes := make([]string, 0, len(speeds))
	for class := range speeds {
		classes = append(classes, class)
	}
	sort.Strings(classes)

	out := make([]classSummary, 0, len(classes))
	for _, class := range classes {
		x := speeds[class]
		sort.Float64s(x)
		s := classSummary{
			Class:       class,
			Count:       len(x),
			Infractions: infractions[class],
			Mean:        stat.Mean(x, nil),
			StdDev:      stat.StdDev(x, nil),
			P50:         stat.Quantile(0.50, stat.Empirical, x, nil),
			P85:         stat.Quantile(0.85, stat.Empirical, x, nil),
			P98:         stat.Quantile(0.98, stat.Empirical, x, nil),
			Max:         x[len(x)-1],
		}
		out = append(out, s)
	}
	return out
}

// hourlyCharts builds the average-speed and volume charts from rollups.
func hourlyCharts(rollups []db.RollupRow) (*charts.Line, *charts.Bar) {
	// rollups arrive newest first; charts read left to right
	byHour := make(map[int64]map[string]db.RollupRow)
	hours := make([]int64, 0)
	for _, r := range rollups {
		if _, ok := byHour[r.RollupHour]; !ok {
			byHour[r.RollupHour] = make(map[string]db.RollupRow)
			hours = append(hours, r.RollupHour)
		}
		byHour[r.RollupHour][r.VehicleClass] = r
	}
	sort.Slice(hours, func(i, j int) bool { return hours[i] < hours[j] })

	labels := make([]string, len(hours))
	lightSpeed := make([]opts.LineData, len(hours))
	heavySpeed := make([]opts.LineData, len(hours))
	lightCount := make([]opts.BarData, len(hours))
	heavyCount := make([]opts.BarData, len(hours))
	for i, h := range hours {
		labels[i] = time.Unix(h, 0).UTC().Format("Jan 02 15:04")
		lightSpeed[i] = opts.LineData{Value: byHour[h]["light"].AvgSpeedKMH}
		heavySpeed[i] = opts.LineData{Value: byHour[h]["heavy"].AvgSpeedKMH}
		lightCount[i] = opts.BarData{Value: byHour[h]["light"].ReadingCount}
		heavyCount[i] = opts.BarData{Value: byHour[h]["heavy"].ReadingCount}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Average speed by hour", Subtitle: "km/h per vehicle class"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	line.SetXAxis(labels).
		AddSeries("light", lightSpeed).
		AddSeries("heavy", heavySpeed)

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Traffic volume by hour", Subtitle: "readings per vehicle class"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(labels).
		AddSeries("light", lightCount).
		AddSeries("heavy", heavyCount)

	return line, bar
}

func main() {
	flag.Parse()
	ctx := context.Background()

	if err := security.ValidateOutputPath(*outFile); err != nil {
		log.Fatalf("Refusing output path: %v", err)
	}

	database, err := db.NewDB(*dbFile)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer database.Close()

	readings, err := database.ListReadings(ctx, *limit)
	if err != nil {
		log.Fatalf("Failed to load readings: %v", err)
	}
	if len(readings) == 0 {
		log.Fatal("No readings recorded; nothing to report")
	}

	rollups, err := database.ListRollups(ctx, *limit)
	if err != nil {
		log.Fatalf("Failed to load rollups: %v", err)
	}

	summaries := summarize(readings)
	for _, s := range summaries {
		fmt.Printf("%-5s n=%-6d infractions=%-5d mean=%.1f stddev=%.1f p50=%.0f p85=%.0f p98=%.0f max=%.0f km/h\n",
			s.Class, s.Count, s.Infractions, s.Mean, s.StdDev, s.P50, s.P85, s.P98, s.Max)
	}

	line, bar := hourlyCharts(rollups)

	page := components.NewPage()
	page.SetPageTitle("Lane speed report")
	page.AddCharts(line, bar)

	f, err := os.Create(*outFile)
	if err != nil {
		log.Fatalf("Failed to create output file: %v", err)
	}
	defer f.Close()
	if err := page.Render(f); err != nil {
		log.Fatalf("Failed to render report: %v", err)
	}
	log.Printf("Wrote report for %d readings to %s", len(readings), *outFile)
}
