package scope

import (
	"math"
	"sort"
)

// Sized is a key with its workload estimate: the number of dimension
// records, or dimensions times locations for matching-heavy kinds.
type Sized struct {
	Key
	Size int64
}

// Group is a size bucket. A scope key belongs to the group with the largest
// MinSize below its size.
type Group struct {
	Name      string
	MinSize   int64
	ChunkSize int // keys per scope
	Parallel  int // processes, one scope file each
}

// File is the work of one process of one group.
type File struct {
	Kind   Kind
	Group  string
	PID    int
	Scopes []Scope
}

// GroupConfig sets the per-group process counts and the sales-order medium
// bounds.
type GroupConfig struct {
	ParallelSmall  int   `koanf:"parallel_small"`
	ParallelMedium int   `koanf:"parallel_medium"`
	ParallelLarge  int   `koanf:"parallel_large"`
	ParallelHuge   int   `koanf:"parallel_huge"`
	ParallelSoldTo int   `koanf:"parallel_soldto"`
	Parallel       int   `koanf:"parallel"`
	MinDimsMedium  int64 `koanf:"min_dims_medium"`
	MaxDimsMedium  int64 `koanf:"max_dims_medium"`
	MaxScopes      int   `koanf:"max_scopes"`
}

// DefaultGroupConfig returns single-process settings.
func DefaultGroupConfig() GroupConfig {
	return GroupConfig{
		ParallelSmall:  1,
		ParallelMedium: 1,
		ParallelLarge:  1,
		ParallelHuge:   1,
		ParallelSoldTo: 1,
		Parallel:       1,
		MinDimsMedium:  500,
		MaxDimsMedium:  5000,
	}
}

const hugeSalesOrderDims = 30000

// SalesOrderGroups buckets sales-order scopes by dimension count. The huge
// group only exists for full runs.
func SalesOrderGroups(cfg GroupConfig, incremental bool) []Group {
	groups := []Group{
		{Name: "small", MinSize: -1, ChunkSize: 16000, Parallel: cfg.ParallelSmall},
		{Name: "medium", MinSize: cfg.MinDimsMedium, ChunkSize: 100, Parallel: cfg.ParallelMedium},
		{Name: "large", MinSize: cfg.MaxDimsMedium, ChunkSize: 5, Parallel: cfg.ParallelLarge},
	}
	if !incremental {
		groups = append(groups, Group{Name: "huge", MinSize: hugeSalesOrderDims, ChunkSize: 1, Parallel: cfg.ParallelHuge})
	}
	return groups
}

// FirmographicGroups buckets firmographic scopes by dims times locations.
func FirmographicGroups(cfg GroupConfig) []Group {
	return []Group{
		{Name: "SM", MinSize: 0, ChunkSize: 1, Parallel: cfg.ParallelSmall},
		{Name: "MD", MinSize: 83_000_000, ChunkSize: 1, Parallel: cfg.ParallelMedium},
		{Name: "LG", MinSize: 409_000_000, ChunkSize: 1, Parallel: cfg.ParallelLarge},
		{Name: "HG", MinSize: 1_500_000_000, ChunkSize: 1, Parallel: cfg.ParallelHuge},
	}
}

// SoldToGroup is the single sold-to bucket.
func SoldToGroup(cfg GroupConfig) Group {
	return Group{MinSize: math.MinInt64, ChunkSize: 3000, Parallel: cfg.ParallelSoldTo}
}

// KeepstockGroup is the single keepstock bucket.
func KeepstockGroup(cfg GroupConfig) Group {
	return Group{MinSize: math.MinInt64, ChunkSize: 100, Parallel: cfg.Parallel}
}

// RankChunks is the number of candidate chunks used when ranking a group.
func RankChunks(kind Kind, group string) int {
	switch {
	case kind == KindSalesOrder && group == "large":
		return 100
	case kind == KindFirmographic && group == "HG":
		return 10
	case kind == KindSoldTo:
		return 10
	}
	return 1
}

// Plan buckets sizes into groups and splits every group into one file per
// process. Keys are dealt to processes largest first, round robin, and each
// process's keys are cut into scopes of ChunkSize keys. maxScopes > 0 keeps
// only the largest keys of each group. Keys at or below the smallest
// MinSize are dropped.
func Plan(kind Kind, sizes []Sized, groups []Group, incremental bool, maxScopes int) ([]File, error) {
	ordered := append([]Group(nil), groups...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].MinSize < ordered[j].MinSize })

	buckets := make([][]Sized, len(ordered))
	for _, s := range sizes {
		gi := -1
		for i, g := range ordered {
			if s.Size > g.MinSize {
				gi = i
			}
		}
		if gi >= 0 {
			buckets[gi] = append(buckets[gi], s)
		}
	}

	var files []File
	for gi, g := range ordered {
		rows := buckets[gi]
		sort.SliceStable(rows, func(i, j int) bool {
			if rows[i].Size != rows[j].Size {
				return rows[i].Size > rows[j].Size
			}
			return less(rows[i].Key, rows[j].Key)
		})
		if maxScopes > 0 && len(rows) > maxScopes {
			rows = rows[:maxScopes]
		}

		parallel := max(g.Parallel, 1)
		chunk := max(g.ChunkSize, 1)
		pods := make([][]Key, parallel)
		for i, r := range rows {
			pods[i%parallel] = append(pods[i%parallel], r.Key)
		}

		for pid, keys := range pods {
			f := File{Kind: kind, Group: g.Name, PID: pid, Scopes: []Scope{}}
			for start := 0; start < len(keys); start += chunk {
				s, err := New(kind, keys[start:min(start+chunk, len(keys))], incremental)
				if err != nil {
					return nil, err
				}
				f.Scopes = append(f.Scopes, s)
			}
			files = append(files, f)
		}
	}
	return files, nil
}

func less(a, b Key) bool {
	if a.OrganizationID != b.OrganizationID {
		return a.OrganizationID < b.OrganizationID
	}
	if a.State != b.State {
		return a.State < b.State
	}
	if a.Zip3 != b.Zip3 {
		return a.Zip3 < b.Zip3
	}
	return a.Account < b.Account
}
