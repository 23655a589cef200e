package curate

import (
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/m25mathews/rainger-poc/internal/consensus"
	"github.com/m25mathews/rainger-poc/internal/logging"
	"github.com/m25mathews/rainger-poc/internal/normalize"
)

// Precurate runs row-level inference over batch, then builds and applies
// the batch consensus dictionary. The result is ordered by address
// popularity so that the first row of every group is its most common form.
func Precurate(batch []DimensionRecord, tables *normalize.Tables) ([]Precurated, error) {
	if len(batch) == 0 {
		return nil, ErrEmptyBatch
	}
	logger := logging.WithComponent("curate")
	defer logging.Timer(logger, "precurate", "records", len(batch))()

	rows := parallelMap(batch, func(rec DimensionRecord) Precurated {
		inferred := tables.Infer(normalize.RowInput{
			StreetNum:    rec.StreetNum,
			Street:       rec.Street,
			Department:   rec.Department,
			Attention:    rec.Attention,
			Supplemental: rec.Supplemental,
			Receiver:     rec.Receiver,
		})
		address := normalize.HandleSpecial(inferred.Address)
		return Precurated{
			DimensionRecord: rec,
			Address:         address,
			Sublocation1:    inferred.Sublocation1,
			Sublocation2:    inferred.Sublocation2,
			IsIntersection:  normalize.IsIntersection(address),
		}
	})

	addresses := make([]string, len(rows))
	for i := range rows {
		addresses[i] = rows[i].Address
	}
	dict := consensus.Build(addresses, tables, consensus.DefaultOptions())
	logger.Debug("consensus dictionary built", "entries", len(dict))

	rows = parallelMap(rows, func(row Precurated) Precurated {
		row.Address = dict.Apply(row.Address)
		row.Marker, _ = normalize.InferMarker(row.Sublocation1)
		return row
	})

	countRows(rows)
	sortRows(rows)
	return rows, nil
}

type addressCityZip struct{ address, city, zip string }
type addressSubloc struct{ address, subloc string }
type rawAddress struct{ street, city, state, zip string }

func countRows(rows []Precurated) {
	byAddress := make(map[string]int)
	byCityZip := make(map[addressCityZip]int)
	bySubloc := make(map[addressSubloc]int)
	byRaw := make(map[rawAddress]int)
	for _, r := range rows {
		byAddress[r.Address]++
		byCityZip[addressCityZip{r.Address, r.City, r.Zip5}]++
		bySubloc[addressSubloc{r.Address, r.Sublocation1}]++
		byRaw[rawAddress{r.Street, r.City, r.State, r.Zip5}]++
	}
	for i := range rows {
		r := &rows[i]
		r.AddressCount = byAddress[r.Address]
		r.AddressCityZipCount = byCityZip[addressCityZip{r.Address, r.City, r.Zip5}]
		r.SublocationCount = bySubloc[addressSubloc{r.Address, r.Sublocation1}]
		r.RawCount = byRaw[rawAddress{r.Street, r.City, r.State, r.Zip5}]
	}
}

// sortRows orders rows descending by address count, address, sub-location
// count, sub-location, level 2 and raw street.
func sortRows(rows []Precurated) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		switch {
		case a.AddressCount != b.AddressCount:
			return a.AddressCount > b.AddressCount
		case a.Address != b.Address:
			return a.Address > b.Address
		case a.SublocationCount != b.SublocationCount:
			return a.SublocationCount > b.SublocationCount
		case a.Sublocation1 != b.Sublocation1:
			return a.Sublocation1 > b.Sublocation1
		case a.Sublocation2 != b.Sublocation2:
			return a.Sublocation2 > b.Sublocation2
		default:
			return a.Street > b.Street
		}
	})
}

// parallelMap applies fn to every item, across all CPUs when there are at
// least MinLenParallel items. Output order matches input order.
func parallelMap[T, R any](items []T, fn func(T) R) []R {
	out := make([]R, len(items))
	if len(items) < MinLenParallel {
		for i, item := range items {
			out[i] = fn(item)
		}
		return out
	}

	workers := runtime.NumCPU()
	chunk := (len(items) + workers - 1) / workers
	var g errgroup.Group
	for start := 0; start < len(items); start += chunk {
		end := min(start+chunk, len(items))
		g.Go(func() error {
			for i := start; i < end; i++ {
				out[i] = fn(items[i])
			}
			return nil
		})
	}
	_ = g.Wait()
	return out
}
