// Command genmock writes a deterministic synthetic case time series in the
// upstream cases_time.csv layout, plus matching ISO code and population
// reference files, for local development without network access.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -out data/cases_time.csv \
//	  -iso-out data/iso_codes.csv \
//	  -population-out data/population.csv \
//	  -days 120 -seed 7
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

type country struct {
	name       string
	iso3       string
	numeric    int
	population int64
}

var countries = []country{
	{"US", "USA", 840, 331_002_651},
	{"Brazil", "BRA", 76, 212_559_417},
	{"India", "IND", 356, 1_380_004_385},
	{"Russia", "RUS", 643, 145_934_462},
	{"United Kingdom", "GBR", 826, 67_886_011},
	{"Spain", "ESP", 724, 46_754_778},
	{"Italy", "ITA", 380, 60_461_826},
	{"France", "FRA", 250, 65_273_511},
	{"Germany", "DEU", 276, 83_783_942},
	{"Turkey", "TUR", 792, 84_339_067},
	{"Iran", "IRN", 364, 83_992_949},
	{"Peru", "PER", 604, 32_971_854},
	{"Chile", "CHL", 152, 19_116_201},
	{"Mexico", "MEX", 484, 128_932_753},
	{"Canada", "CAN", 124, 37_742_154},
	{"China", "CHN", 156, 1_439_323_776},
	{"Korea, South", "KOR", 410, 51_269_185},
	{"Japan", "JPN", 392, 126_476_461},
	{"Sweden", "SWE", 752, 10_099_265},
	{"Norway", "NOR", 578, 5_421_241},
	{"Denmark", "DNK", 208, 5_792_202},
	{"Finland", "FIN", 246, 5_540_720},
	{"Iceland", "ISL", 352, 341_243},
	{"Belgium", "BEL", 56, 11_589_623},
	{"Netherlands", "NLD", 528, 17_134_872},
	{"South Africa", "ZAF", 710, 59_308_690},
	{"Egypt", "EGY", 818, 102_334_404},
	{"Australia", "AUS", 36, 25_499_884},
	{"New Zealand", "NZL", 554, 4_822_233},
	{"Holy See", "VAT", 336, 801},
}

var startDate = time.Date(2020, time.January, 22, 0, 0, 0, 0, time.UTC)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "data/cases_time.csv", "output path for the case time series")
	isoOut := flag.String("iso-out", "", "optional output path for the ISO code reference")
	popOut := flag.String("population-out", "", "optional output path for the population reference")
	days := flag.Int("days", 120, "number of days to generate")
	seed := flag.Uint64("seed", 7, "random seed")
	invalid := flag.Bool("invalid", false, "append rows the loader must drop")
	flag.Parse()

	if *days < 1 {
		return fmt.Errorf("-days must be positive, got %d", *days)
	}

	rows := generate(rand.New(rand.NewPCG(*seed, *seed^0x9e3779b97f4a7c15)), *days)
	if *invalid {
		rows = append(rows, invalidRows()...)
	}
	header := []string{"Country_Region", "Last_Update", "Confirmed", "Deaths", "Delta_Confirmed", "iso3"}
	if err := writeCSV(*out, header, rows); err != nil {
		return fmt.Errorf("writing time series: %w", err)
	}
	log.Printf("wrote %d rows for %d countries over %d days: %s", len(rows), len(countries), *days, *out)

	if *isoOut != "" {
		iso := make([][]string, len(countries))
		for i, c := range countries {
			iso[i] = []string{c.name, c.iso3, strconv.Itoa(c.numeric)}
		}
		if err := writeCSV(*isoOut, []string{"Country", "Alpha-3 code", "Numeric"}, iso); err != nil {
			return fmt.Errorf("writing iso codes: %w", err)
		}
		log.Printf("wrote iso codes: %s", *isoOut)
	}

	if *popOut != "" {
		pop := make([][]string, len(countries))
		for i, c := range countries {
			pop[i] = []string{c.name, strconv.FormatInt(c.population, 10)}
		}
		if err := writeCSV(*popOut, []string{"Country_Region", "Population"}, pop); err != nil {
			return fmt.Errorf("writing population: %w", err)
		}
		log.Printf("wrote population: %s", *popOut)
	}
	return nil
}

// generate draws a logistic epidemic curve per country. Cumulative counts
// never decrease.
func generate(rng *rand.Rand, days int) [][]string {
	rows := make([][]string, 0, len(countries)*days)
	for _, c := range countries {
		// Final size between 0.05% and 3% of the population.
		final := float64(c.population) * (0.0005 + rng.Float64()*0.0295)
		midpoint := float64(days) * (0.3 + rng.Float64()*0.5)
		growth := 0.06 + rng.Float64()*0.12
		fatality := 0.005 + rng.Float64()*0.04

		var prev int64
		for d := range days {
			expected := final / (1 + math.Exp(-growth*(float64(d)-midpoint)))
			// Reporting noise: a day may under-report, never un-report.
			cum := max(prev, int64(expected*(0.9+rng.Float64()*0.2)))
			deaths := int64(float64(cum) * fatality)
			rows = append(rows, []string{
				c.name,
				startDate.AddDate(0, 0, d).Format(time.DateOnly),
				strconv.FormatInt(cum, 10),
				strconv.FormatInt(deaths, 10),
				strconv.FormatInt(cum-prev, 10),
				c.iso3,
			})
			prev = cum
		}
	}
	return rows
}

// invalidRows cover each drop reason once.
func invalidRows() [][]string {
	day := startDate.Format(time.DateOnly)
	return [][]string{
		{"", day, "1", "0", "1", "XXX"},
		{"Diamond Princess", day, "712", "13", "0", ""},
		{"MS Zaandam", day, "9", "2", "0", "zz"},
		{"Atlantis", "not-a-date", "5", "0", "5", "ATL"},
		{"Atlantis", day, "-5", "0", "0", "ATL"},
	}
}

func writeCSV(path string, header []string, rows [][]string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return err
	}
	if err := w.WriteAll(rows); err != nil {
		return err
	}
	return f.Close()
}
