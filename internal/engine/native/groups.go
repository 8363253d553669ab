package native

import (
	"encoding/json"
	"math"
	"sort"
	"strings"

	"github.com/mwiater/aletheia/internal/engine"
	"gonum.org/v1/gonum/floats"
)

const (
	groupWords       = 16
	groupSize        = 4
	embeddingDims    = 64
	hardLexicalFloor = 0.25
	boostedLexical   = 0.5
	boostThreshold   = 0.25
)

type groupsPayload struct {
	Groups          [][]string           `json:"groups"`
	GroupConfidence []float64            `json:"group_confidence"`
	Points          []engine.RenderPoint `json:"points"`
	Variance        []float64            `json:"variance"`
	LexicalBoosted  bool                 `json:"lexical_boosted"`
	LexicalWeight   float64              `json:"lexical_weight"`
}

// splitWords lowercases ASCII and splits on whitespace.
func splitWords(text string) []string {
	fields := strings.Fields(text)
	for i, f := range fields {
		fields[i] = strings.Map(func(r rune) rune {
			if r >= 'A' && r <= 'Z' {
				return r - 'A' + 'a'
			}
			return r
		}, f)
	}
	return fields
}

// hashedEmbedding derives a fixed pseudo-embedding from a 64-bit FNV-1a hash.
func hashedEmbedding(word string) []float64 {
	hash := uint64(1469598103934665603)
	for i := 0; i < len(word); i++ {
		hash ^= uint64(word[i])
		hash *= 1099511628211
	}
	vec := make([]float64, embeddingDims)
	for i := range vec {
		value := float64((hash >> (uint(i) * 3)) & 0xFFFF)
		vec[i] = math.Sin(value*0.001 + float64(i))
	}
	return vec
}

func lexicalSimilarity(left, right string) float64 {
	if left == "" || right == "" {
		return 0
	}
	if left == right {
		return 1
	}
	lenA, lenB := len(left), len(right)
	minLen, maxLen := min(lenA, lenB), max(lenA, lenB)

	prefix := 0
	for prefix < minLen && left[prefix] == right[prefix] {
		prefix++
	}
	suffix := 0
	for suffix < minLen && left[lenA-1-suffix] == right[lenB-1-suffix] {
		suffix++
	}

	score := 0.45*float64(prefix)/float64(maxLen) + 0.45*float64(suffix)/float64(maxLen)
	if lenA == lenB {
		score += 0.05
		if lenA > 1 && sortedLetters(left) == sortedLetters(right) {
			score += 0.25
		}
	}
	return math.Min(score, 1)
}

func sortedLetters(s string) string {
	b := []byte(s)
	sort.Slice(b, func(i, j int) bool { return b[i] < b[j] })
	return string(b)
}

// similarityMatrix blends cosine similarity with lexical similarity by weight.
func similarityMatrix(vectors [][]float64, words []string, weight float64) [][]float64 {
	weight = math.Max(0, math.Min(1, weight))
	n := len(vectors)
	norms := make([]float64, n)
	for i, v := range vectors {
		norms[i] = floats.Norm(v, 2)
	}
	sim := make([][]float64, n)
	for i := range sim {
		sim[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			var cosine float64
			if norms[i] != 0 && norms[j] != 0 {
				cosine = floats.Dot(vectors[i], vectors[j]) / (norms[i] * norms[j])
			}
			if weight > 0 {
				sim[i][j] = (1-weight)*cosine + weight*lexicalSimilarity(words[i], words[j])
			} else {
				sim[i][j] = cosine
			}
		}
	}
	return sim
}

type quad struct {
	mask  uint16
	score float64
}

// partitioner finds the 4x4 partition maximizing the summed pairwise
// similarity inside each group.
type partitioner struct {
	quads     []quad
	byNode    [groupWords][]int
	best      []int
	bestScore float64
}

func newPartitioner(sim [][]float64) *partitioner {
	p := &partitioner{quads: make([]quad, 0, 1820), bestScore: math.Inf(-1)}
	for i := 0; i < groupWords; i++ {
		for j := i + 1; j < groupWords; j++ {
			for k := j + 1; k < groupWords; k++ {
				for l := k + 1; l < groupWords; l++ {
					idx := len(p.quads)
					p.quads = append(p.quads, quad{
						mask:  uint16(1<<i | 1<<j | 1<<k | 1<<l),
						score: sim[i][j] + sim[i][k] + sim[i][l] + sim[j][k] + sim[j][l] + sim[k][l],
					})
					for _, node := range [...]int{i, j, k, l} {
						p.byNode[node] = append(p.byNode[node], idx)
					}
				}
			}
		}
	}
	return p
}

func (p *partitioner) solve() []uint16 {
	current := make([]int, 0, groupSize)
	p.search(uint16(1<<groupWords-1), 0, current)
	masks := make([]uint16, 0, len(p.best))
	for _, idx := range p.best {
		masks = append(masks, p.quads[idx].mask)
	}
	return masks
}

// search always extends the group containing the lowest unassigned word,
// so every partition is visited exactly once.
func (p *partitioner) search(remaining uint16, score float64, current []int) {
	if remaining == 0 {
		if score > p.bestScore {
			p.bestScore = score
			p.best = append(p.best[:0], current...)
		}
		return
	}
	pivot := firstSetBit(remaining)
	for _, idx := range p.byNode[pivot] {
		q := p.quads[idx]
		if q.mask&remaining != q.mask {
			continue
		}
		p.search(remaining^q.mask, score+q.score, append(current, idx))
	}
}

func firstSetBit(mask uint16) int {
	for i := 0; i < groupWords; i++ {
		if mask&(1<<i) != 0 {
			return i
		}
	}
	return -1
}

func maskMembers(mask uint16) []int {
	var out []int
	for i := 0; i < groupWords; i++ {
		if mask&(1<<i) != 0 {
			out = append(out, i)
		}
	}
	return out
}

// clusterConfidence is the dominant eigenvalue's share of the group covariance.
func clusterConfidence(vectors [][]float64, members []int) float64 {
	if len(members) < 2 {
		return 0
	}
	rows := make([][]float64, len(members))
	for i, idx := range members {
		rows[i] = vectors[idx]
	}
	values, _ := symmetricEigen(gram(centerRows(rows)))
	var sum float64
	for _, v := range values {
		sum += v
	}
	if sum <= 0 {
		return 0
	}
	return values[0] / sum
}

// pcaProjection projects rows onto their top two principal components and
// returns the explained variance ratio of each.
func pcaProjection(rows [][]float64) (points [][2]float64, evr []float64) {
	n := len(rows)
	if n == 0 {
		return nil, nil
	}
	values, vectors := symmetricEigen(gram(centerRows(rows)))
	var total float64
	for _, v := range values {
		if v > 0 {
			total += v
		}
	}
	points = make([][2]float64, n)
	evr = make([]float64, 2)
	denom := math.Max(1, float64(n-1))
	for k := 0; k < 2 && k < len(values); k++ {
		lambda := math.Max(0, values[k])
		scale := math.Sqrt(lambda * denom)
		vec := vectors[k]
		// Fix the sign so the largest loading is positive.
		sign := 1.0
		var largest float64
		for _, x := range vec {
			if math.Abs(x) > math.Abs(largest) {
				largest = x
			}
		}
		if largest < 0 {
			sign = -1
		}
		for i := 0; i < n; i++ {
			points[i][k] = sign * vec[i] * scale
		}
		if total > 0 {
			evr[k] = lambda / total
		}
	}
	return points, evr
}

func solveGroupsPayload(text string, hardMode bool, lexicalWeight float64) any {
	words := splitWords(text)
	if len(words) != groupWords {
		return errorPayload{Error: "Expected 16 words"}
	}
	vectors := make([][]float64, len(words))
	for i, w := range words {
		vectors[i] = hashedEmbedding(w)
	}

	weight := math.Max(0, math.Min(1, lexicalWeight))
	if hardMode && weight < hardLexicalFloor {
		weight = hardLexicalFloor
	}

	solve := func(weight float64) ([]uint16, [][]int, []float64, float64) {
		masks := newPartitioner(similarityMatrix(vectors, words, weight)).solve()
		members := make([][]int, len(masks))
		confidence := make([]float64, len(masks))
		var avg float64
		for g, mask := range masks {
			members[g] = maskMembers(mask)
			confidence[g] = clusterConfidence(vectors, members[g])
			avg += confidence[g]
		}
		if len(masks) > 0 {
			avg /= float64(len(masks))
		}
		return masks, members, confidence, avg
	}

	masks, members, confidence, avg := solve(weight)
	boosted := false
	if hardMode && avg < boostThreshold && weight < boostedLexical {
		weight = boostedLexical
		boosted = true
		masks, members, confidence, _ = solve(weight)
	}

	groupOf := make([]int, len(words))
	groups := make([][]string, len(masks))
	for g := range masks {
		groups[g] = make([]string, 0, groupSize)
		for _, idx := range members[g] {
			groupOf[idx] = g
			groups[g] = append(groups[g], words[idx])
		}
	}

	projected, evr := pcaProjection(vectors)
	centroids := make([][2]float64, len(members))
	for g, idxs := range members {
		for _, idx := range idxs {
			centroids[g][0] += projected[idx][0]
			centroids[g][1] += projected[idx][1]
		}
		if len(idxs) > 0 {
			centroids[g][0] /= float64(len(idxs))
			centroids[g][1] /= float64(len(idxs))
		}
	}

	points := make([]engine.RenderPoint, len(words))
	for i, w := range words {
		x, y := projected[i][0], projected[i][1]
		own, second := math.Inf(1), math.Inf(1)
		for g, c := range centroids {
			dist := math.Hypot(x-c[0], y-c[1])
			if g == groupOf[i] {
				own = dist
			} else if dist < second {
				second = dist
			}
		}
		var margin, centroidDist float64
		if !math.IsInf(own, 0) {
			centroidDist = own
			if !math.IsInf(second, 0) {
				margin = second - own
			}
		}
		points[i] = engine.RenderPoint{
			Word:               w,
			X:                  x,
			Y:                  y,
			Group:              groupOf[i],
			Margin:             margin,
			ConfidenceDistance: centroidDist,
			Confidence:         confidence[groupOf[i]],
		}
	}

	return groupsPayload{
		Groups:          groups,
		GroupConfidence: confidence,
		Points:          points,
		Variance:        evr,
		LexicalBoosted:  boosted,
		LexicalWeight:   weight,
	}
}

type errorPayload struct {
	Error string `json:"error"`
}

func encode(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		out, _ := json.Marshal(errorPayload{Error: err.Error()})
		return string(out)
	}
	return string(data)
}
