package match

import (
	"log/slog"

	"github.com/m25mathews/rainger-poc/internal/logging"
	"github.com/m25mathews/rainger-poc/internal/normalize"
)

// Resolver runs the three matching tiers over one scope.
type Resolver struct {
	markers *normalize.MarkerCache
	opts    Options
	logger  *slog.Logger
}

// NewResolver creates a resolver sharing the compiled marker cache.
func NewResolver(markers *normalize.MarkerCache, opts Options) *Resolver {
	if markers == nil {
		markers = normalize.NewMarkerCache()
	}
	if opts.Chunks < 1 {
		opts.Chunks = 1
	}
	return &Resolver{
		markers: markers,
		opts:    opts,
		logger:  logging.WithComponent("match"),
	}
}

// MatchMarkers returns, per dimension, the indexes of the candidates whose
// marker matches the dimension's text. Candidates with an invalid marker
// are skipped.
func (r *Resolver) MatchMarkers(cands []Candidate, dims []Dimension) [][]int {
	out := make([][]int, len(dims))
	for ci, c := range cands {
		if c.Marker == "" {
			continue
		}
		re, err := r.markers.Get(c.Marker)
		if err != nil {
			r.logger.Warn("skipping candidate with invalid marker", "location_id", c.ID, "error", err)
			continue
		}
		for di, d := range dims {
			if sameOrganization(d.OrganizationID, c.OrganizationID) && re.MatchString(d.Text) {
				out[di] = append(out[di], ci)
			}
		}
	}
	return out
}

// Resolve associates every dimension it can with a candidate. A single
// marker hit is final. The remaining dimensions take the fuzzy winner, which
// the learned tier then replaces wherever its partition has training data.
func (r *Resolver) Resolve(dims []Dimension, cands []Candidate) []Association {
	if len(dims) == 0 || len(cands) == 0 {
		return nil
	}
	defer logging.Timer(r.logger, "resolve", "dimensions", len(dims), "candidates", len(cands))()

	answers := make([]*Association, len(dims))
	marked := make([]bool, len(dims))
	for di, hits := range r.MatchMarkers(cands, dims) {
		if len(hits) != 1 {
			continue
		}
		marked[di] = true
		answers[di] = &Association{
			DimensionID: dims[di].ID,
			LocationID:  cands[hits[0]].ID,
			Score:       1,
			Method:      MethodMarker,
		}
	}

	ranks := RankChunks(cands, dims, r.opts.Chunks)
	trained := make([]bool, len(dims))
	for di, rank := range ranks {
		if marked[di] {
			trained[di] = true
			continue
		}
		if rank.Index < 0 || rank.Score <= 0 {
			continue
		}
		answers[di] = &Association{
			DimensionID: dims[di].ID,
			LocationID:  cands[rank.Index].ID,
			Score:       rank.Score,
			Method:      MethodFuzzy,
		}
		trained[di] = rank.Score >= r.opts.RankThreshold
	}

	r.learn(dims, answers, marked, trained)

	var out []Association
	for _, a := range answers {
		if a != nil {
			out = append(out, *a)
		}
	}
	return out
}

type partitionKey struct{ org, state string }

// learn fits one classifier per (organization, state) on the trusted
// answers and predicts every unmarked dimension of the partition. A
// prediction with no similarity at all leaves the fuzzy answer in place.
func (r *Resolver) learn(dims []Dimension, answers []*Association, marked, trained []bool) {
	partitions := make(map[partitionKey][]int)
	var order []partitionKey
	for di, d := range dims {
		k := partitionKey{d.OrganizationID, d.State}
		if _, ok := partitions[k]; !ok {
			order = append(order, k)
		}
		partitions[k] = append(partitions[k], di)
	}

	for _, k := range order {
		members := partitions[k]
		var texts, labels []string
		for _, di := range members {
			if trained[di] {
				texts = append(texts, dims[di].Text)
				labels = append(labels, answers[di].LocationID)
			}
		}
		if len(texts) == 0 {
			r.logger.Debug("no training data, learned tier skipped", "organization_id", k.org, "state", k.state)
			continue
		}

		model := FitNeighbors(texts, labels, r.opts.Neighbors)
		for _, di := range members {
			if marked[di] {
				continue
			}
			label, score := model.Predict(dims[di].Text)
			if score <= 0 {
				continue
			}
			answers[di] = &Association{
				DimensionID: dims[di].ID,
				LocationID:  label,
				Score:       score,
				Method:      MethodLearned,
			}
		}
	}
}
