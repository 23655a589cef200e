package match

import (
	"math"
	"sort"
)

// Vectorizer turns texts into L2-normalized TF-IDF vectors over word
// tokens and character 3-grams taken inside word boundaries.
type Vectorizer struct {
	vocab map[string]int
	idf   []float64
}

// sparse is sorted by term index.
type sparse []term

type term struct {
	ix int
	w  float64
}

func features(text string) map[string]float64 {
	tf := make(map[string]float64)
	for _, word := range words(text) {
		tf["w:"+word]++
		padded := []rune(" " + word + " ")
		for i := 0; i+3 <= len(padded); i++ {
			tf["c:"+string(padded[i:i+3])]++
		}
	}
	return tf
}

// FitVectorizer learns the vocabulary and smoothed inverse document
// frequencies of docs.
func FitVectorizer(docs []string) *Vectorizer {
	v := &Vectorizer{vocab: make(map[string]int)}
	var df []float64
	for _, doc := range docs {
		tf := features(doc)
		names := make([]string, 0, len(tf))
		for name := range tf {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			ix, ok := v.vocab[name]
			if !ok {
				ix = len(df)
				v.vocab[name] = ix
				df = append(df, 0)
			}
			df[ix]++
		}
	}
	n := float64(len(docs))
	v.idf = make([]float64, len(df))
	for i, d := range df {
		v.idf[i] = math.Log((1+n)/(1+d)) + 1
	}
	return v
}

// transform drops terms outside the vocabulary.
func (v *Vectorizer) transform(text string) sparse {
	var vec sparse
	for name, count := range features(text) {
		ix, ok := v.vocab[name]
		if !ok {
			continue
		}
		vec = append(vec, term{ix, count * v.idf[ix]})
	}
	sort.Slice(vec, func(i, j int) bool { return vec[i].ix < vec[j].ix })

	var norm float64
	for _, t := range vec {
		norm += t.w * t.w
	}
	if norm == 0 {
		return vec
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i].w /= norm
	}
	return vec
}

func cosine(a, b sparse) float64 {
	var dot float64
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i].ix == b[j].ix:
			dot += a[i].w * b[j].w
			i++
			j++
		case a[i].ix < b[j].ix:
			i++
		default:
			j++
		}
	}
	return dot
}

// Neighbors is a k-nearest-neighbour classifier over TF-IDF vectors with
// cosine similarity.
type Neighbors struct {
	k      int
	vec    *Vectorizer
	train  []sparse
	labels []string
}

// FitNeighbors trains on texts with their labels. k below 1 means 1.
func FitNeighbors(texts, labels []string, k int) *Neighbors {
	if k < 1 {
		k = 1
	}
	vec := FitVectorizer(texts)
	train := make([]sparse, len(texts))
	for i, t := range texts {
		train[i] = vec.transform(t)
	}
	return &Neighbors{k: k, vec: vec, train: train, labels: labels}
}

// Predict returns the label of text and the similarity of its nearest
// neighbour carrying that label. With k > 1 the label with the largest
// summed similarity among the k nearest wins. Ties go to the earlier
// training row.
func (n *Neighbors) Predict(text string) (string, float64) {
	if len(n.train) == 0 {
		return "", 0
	}
	q := n.vec.transform(text)

	type hit struct {
		ix  int
		sim float64
	}
	hits := make([]hit, len(n.train))
	for i, t := range n.train {
		hits[i] = hit{i, cosine(q, t)}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].sim > hits[j].sim })
	if n.k < len(hits) {
		hits = hits[:n.k]
	}

	votes := make(map[string]float64)
	nearest := make(map[string]float64)
	var order []string
	for _, h := range hits {
		label := n.labels[h.ix]
		if _, ok := votes[label]; !ok {
			order = append(order, label)
			nearest[label] = h.sim
		}
		votes[label] += h.sim
	}
	best := order[0]
	for _, label := range order[1:] {
		if votes[label] > votes[best] {
			best = label
		}
	}
	return best, nearest[best]
}
