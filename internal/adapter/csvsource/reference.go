package csvsource

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/couchcryptid/covid-dashboard/internal/domain"
)

// isoTable is the ISO reference: the known alpha-3 codes and, when the file
// has a numeric column, the ISO 3166-1 numeric code of each.
type isoTable struct {
	codes   map[string]struct{}
	numeric map[string]int
}

// loadISOCodes reads the known alpha-3 codes from an ISO reference CSV.
func loadISOCodes(path string) (isoTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return isoTable{}, fmt.Errorf("open iso codes: %w", err)
	}
	defer f.Close()

	r := newReader(f)
	h, err := readHeader(r)
	if err != nil {
		return isoTable{}, err
	}
	if err := h.require("iso3"); err != nil {
		return isoTable{}, fmt.Errorf("iso codes %s: %w", path, err)
	}

	t := isoTable{codes: make(map[string]struct{}), numeric: make(map[string]int)}
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return isoTable{}, fmt.Errorf("read iso codes: %w", err)
		}
		code := strings.ToUpper(strings.TrimSpace(h.field(rec, "iso3")))
		if !domain.ValidISO3(code) {
			continue
		}
		t.codes[code] = struct{}{}
		if n, err := strconv.Atoi(strings.TrimSpace(h.field(rec, "numeric"))); err == nil && n > 0 {
			t.numeric[code] = n
		}
	}
	return t, nil
}

// loadPopulation reads country populations, keyed by canonical country name.
// Rows with an unparsable population are skipped.
func loadPopulation(path string, aliases Aliases) (map[string]int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open population: %w", err)
	}
	defer f.Close()

	r := newReader(f)
	h, err := readHeader(r)
	if err != nil {
		return nil, err
	}
	if err := h.require("country", "population"); err != nil {
		return nil, fmt.Errorf("population %s: %w", path, err)
	}

	pop := make(map[string]int64)
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read population: %w", err)
		}
		n, err := domain.ParseCount(h.field(rec, "population"))
		if err != nil || n == 0 {
			continue
		}
		pop[aliases.Resolve(h.field(rec, "country"))] = n
	}
	return pop, nil
}
