package features

import (
	"math"
	"sort"

	"signal-analytics-go/internal/models"
	"signal-analytics-go/internal/random"
	"signal-analytics-go/internal/stats"
)

const (
	DefaultK             = 3
	DefaultMaxIterations = 100
	DefaultTolerance     = 0.01
	DefaultTopK          = 5
)

// ClusterOptions configures Cluster. Zero values take the defaults.
type ClusterOptions struct {
	K             int        `json:"k"`
	MaxIterations int        `json:"maxIterations"`
	Tolerance     float64    `json:"tolerance"`
	Market        MarketData `json:"-"`
}

func (o ClusterOptions) withDefaults() ClusterOptions {
	if o.K <= 0 {
		o.K = DefaultK
	}
	if o.MaxIterations <= 0 {
		o.MaxIterations = DefaultMaxIterations
	}
	if o.Tolerance <= 0 || math.IsNaN(o.Tolerance) {
		o.Tolerance = DefaultTolerance
	}
	return o
}

// TradeCluster is one k-means group with the performance of its members.
type TradeCluster struct {
	ID                 int               `json:"id"`
	Size               int               `json:"size"`
	TradeIDs           []string          `json:"tradeIds"`
	Centroid           []float64         `json:"centroid"`
	WinRate            float64           `json:"winRate"`
	MeanReturn         float64           `json:"meanReturn"`
	Sharpe             float64           `json:"sharpe"`
	TotalPnL           float64           `json:"totalPnl"`
	DominantSignalType models.SignalType `json:"dominantSignalType,omitempty"`
}

// ClusterResult lists clusters best-first by Sharpe. Assignments[i] is the
// cluster ID of trades[i].
type ClusterResult struct {
	Clusters     []TradeCluster `json:"clusters"`
	Assignments  []int          `json:"assignments"`
	Iterations   int            `json:"iterations"`
	Converged    bool           `json:"converged"`
	Insufficient bool           `json:"insufficient,omitempty"`
	Reason       string         `json:"reason,omitempty"`
}

// Cluster runs Lloyd's k-means over the normalized feature vectors. Centroids
// are seeded from distinct random trades. The loop stops once the fraction of
// reassigned points falls below Tolerance. An empty cluster keeps its
// previous centroid.
func Cluster(trades []models.TradeRecord, opts ClusterOptions, src random.Source) ClusterResult {
	opts = opts.withDefaults()
	if len(trades) == 0 {
		return ClusterResult{Insufficient: true, Reason: "no trades"}
	}
	if src == nil {
		src = random.NewTimeSeeded()
	}

	points, _ := Normalize(matrix(trades, opts.Market))
	k := min(opts.K, len(points))

	centroids := make([][]float64, k)
	for c, idx := range random.Sample(src, len(points), k) {
		centroids[c] = append([]float64(nil), points[idx]...)
	}

	assign := make([]int, len(points))
	for i := range assign {
		assign[i] = -1
	}

	res := ClusterResult{}
	for iter := 1; iter <= opts.MaxIterations; iter++ {
		res.Iterations = iter
		changed := 0
		for i, p := range points {
			best := nearest(p, centroids)
			if best != assign[i] {
				assign[i] = best
				changed++
			}
		}
		updateCentroids(points, assign, centroids)

		if float64(changed)/float64(len(points)) < opts.Tolerance {
			res.Converged = true
			break
		}
	}

	res.Clusters, res.Assignments = summarize(trades, assign, centroids)
	return res
}

func nearest(p []float64, centroids [][]float64) int {
	best, bestDist := 0, math.Inf(1)
	for c, centroid := range centroids {
		if d := distance(p, centroid); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

func updateCentroids(points [][]float64, assign []int, centroids [][]float64) {
	dims := len(points[0])
	sums := make([][]float64, len(centroids))
	counts := make([]int, len(centroids))
	for c := range sums {
		sums[c] = make([]float64, dims)
	}
	for i, p := range points {
		c := assign[i]
		counts[c]++
		for j, v := range p {
			sums[c][j] += v
		}
	}
	for c := range centroids {
		if counts[c] == 0 {
			continue
		}
		for j := range sums[c] {
			centroids[c][j] = sums[c][j] / float64(counts[c])
		}
	}
}

func summarize(trades []models.TradeRecord, assign []int, centroids [][]float64) ([]TradeCluster, []int) {
	clusters := make([]TradeCluster, len(centroids))
	members := make([][]models.TradeRecord, len(centroids))
	for i, c := range assign {
		members[c] = append(members[c], trades[i])
	}

	for c := range clusters {
		m := members[c]
		returns := models.Returns(m)
		tc := TradeCluster{
			ID:         c,
			Size:       len(m),
			TradeIDs:   make([]string, 0, len(m)),
			Centroid:   centroids[c],
			WinRate:    stats.WinRate(returns),
			MeanReturn: stats.Mean(returns),
			Sharpe:     stats.SharpeRatio(returns, 0),
		}
		counts := make(map[models.SignalType]int)
		for _, t := range m {
			tc.TradeIDs = append(tc.TradeIDs, t.ID)
			tc.TotalPnL += t.PnL
			counts[t.SignalType]++
		}
		tc.DominantSignalType = dominant(counts)
		clusters[c] = tc
	}

	sort.SliceStable(clusters, func(i, j int) bool {
		return clusters[i].Sharpe > clusters[j].Sharpe
	})

	remap := make([]int, len(clusters))
	for rank := range clusters {
		remap[clusters[rank].ID] = rank
		clusters[rank].ID = rank
	}
	out := make([]int, len(assign))
	for i, c := range assign {
		out[i] = remap[c]
	}
	return clusters, out
}

func dominant(counts map[models.SignalType]int) models.SignalType {
	var best models.SignalType
	bestN := 0
	for _, st := range models.AllSignalTypes() {
		if counts[st] > bestN {
			best, bestN = st, counts[st]
		}
	}
	return best
}

func distance(a, b []float64) float64 {
	var s float64
	for i := range a {
		d := a[i] - b[i]
		s += d * d
	}
	return math.Sqrt(s)
}

// Similar is one neighbour returned by FindSimilar.
type Similar struct {
	TradeID    string            `json:"tradeId"`
	SignalType models.SignalType `json:"signalType"`
	Return     float64           `json:"return"`
	Distance   float64           `json:"distance"`
	Similarity float64           `json:"similarity"`
}

// FindSimilar returns the topK corpus trades closest to target in normalized
// feature space. Similarity is 1/(1+distance). The target itself is skipped
// if it appears in the corpus.
func FindSimilar(target models.TradeRecord, corpus []models.TradeRecord, topK int, md MarketData) []Similar {
	if topK <= 0 {
		topK = DefaultTopK
	}
	candidates := make([]models.TradeRecord, 0, len(corpus))
	for _, t := range corpus {
		if target.ID != "" && t.ID == target.ID {
			continue
		}
		candidates = append(candidates, t)
	}
	if len(candidates) == 0 {
		return []Similar{}
	}

	points, _ := Normalize(matrix(append(candidates, target), md))
	origin := points[len(points)-1]

	out := make([]Similar, len(candidates))
	for i, t := range candidates {
		d := distance(points[i], origin)
		out[i] = Similar{
			TradeID:    t.ID,
			SignalType: t.SignalType,
			Return:     t.Return(),
			Distance:   d,
			Similarity: 1 / (1 + d),
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })
	if len(out) > topK {
		out = out[:topK]
	}
	return out
}

// PatternKind classifies a detected pattern.
type PatternKind string

const (
	PatternHighPerforming PatternKind = "high_performing"
	PatternLowPerforming  PatternKind = "low_performing"
)

// Pattern is a recurring group of trades sharing a signal type.
type Pattern struct {
	SignalType   models.SignalType `json:"signalType"`
	Kind         PatternKind       `json:"kind"`
	Occurrences  int               `json:"occurrences"`
	WinRate      float64           `json:"winRate"`
	MeanReturn   float64           `json:"meanReturn"`
	Sharpe       float64           `json:"sharpe"`
	ProfitFactor models.Ratio      `json:"profitFactor"`
}

// DetectPatterns groups trades by signal type, keeps groups with at least
// minOccurrences trades and ranks them by Sharpe. A group is high performing
// when its Sharpe is positive and at least half its trades won.
func DetectPatterns(trades []models.TradeRecord, minOccurrences int) []Pattern {
	if minOccurrences <= 0 {
		minOccurrences = 1
	}
	groups := make(map[models.SignalType][]float64)
	for _, t := range trades {
		groups[t.SignalType] = append(groups[t.SignalType], t.Return())
	}

	out := make([]Pattern, 0, len(groups))
	for _, st := range models.AllSignalTypes() {
		returns := groups[st]
		if len(returns) < minOccurrences || len(returns) == 0 {
			continue
		}
		p := Pattern{
			SignalType:   st,
			Occurrences:  len(returns),
			WinRate:      stats.WinRate(returns),
			MeanReturn:   stats.Mean(returns),
			Sharpe:       stats.SharpeRatio(returns, 0),
			ProfitFactor: models.Ratio(stats.ProfitFactor(returns)),
			Kind:         PatternLowPerforming,
		}
		if p.Sharpe > 0 && p.WinRate >= 0.5 {
			p.Kind = PatternHighPerforming
		}
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Sharpe > out[j].Sharpe })
	return out
}
