package cluster

// #region imports
import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/ebrodeur/recoupement/internal/model"
	"github.com/ebrodeur/recoupement/internal/similarity"
)

// #endregion imports

// #region types

// Cluster is a connected set of documents mutually similar above the threshold.
// Transient: rebuilt on every reevaluation, never persisted as its own entity.
type Cluster struct {
	ID            string
	Documents     []model.Document
	AvgSimilarity float64
}

// ContainsHash reports whether the cluster holds a document with the given hash.
func (c Cluster) ContainsHash(hash string) bool {
	for _, d := range c.Documents {
		if d.ContentHash == hash {
			return true
		}
	}
	return false
}

// Partition is the output of one clustering pass over a document snapshot.
type Partition struct {
	Clusters []Cluster
	Isolated []model.Document // singletons, handled by the new-threat path
}

// ClusterFor returns the cluster containing hash, or nil.
func (p Partition) ClusterFor(hash string) *Cluster {
	for i := range p.Clusters {
		if p.Clusters[i].ContainsHash(hash) {
			return &p.Clusters[i]
		}
	}
	return nil
}

// BuilderConfig controls the connected-components pass.
type BuilderConfig struct {
	Threshold      float64 // link iff similarity >= Threshold
	MinClusterSize int     // clusters below this are reported as isolated
	MaxParallel    int     // concurrent pairwise scoring goroutines
}

// DefaultBuilderConfig returns the standard clustering parameters.
func DefaultBuilderConfig() BuilderConfig {
	return BuilderConfig{
		Threshold:      0.7,
		MinClusterSize: 2,
		MaxParallel:    8,
	}
}

// #endregion types

// #region builder

// Builder groups a document snapshot into clusters via threshold-based
// connected components over pairwise similarity scores.
type Builder struct {
	engine *similarity.Engine
	config BuilderConfig
}

// NewBuilder creates a Builder over the given similarity engine.
func NewBuilder(engine *similarity.Engine, config BuilderConfig) *Builder {
	if config.MinClusterSize < 2 {
		config.MinClusterSize = 2
	}
	if config.MaxParallel <= 0 {
		config.MaxParallel = 1
	}
	return &Builder{engine: engine, config: config}
}

// #endregion builder

// #region build

// Build partitions docs into clusters and isolated singletons. The snapshot
// is treated as immutable for the duration of the call. Deterministic for a
// fixed snapshot and threshold: membership never depends on traversal order,
// and cluster ids are derived from sorted member hashes.
func (b *Builder) Build(ctx context.Context, docs []model.Document) (Partition, error) {
	n := len(docs)
	if n == 0 {
		return Partition{}, nil
	}

	scores, err := b.pairwiseScores(ctx, docs)
	if err != nil {
		return Partition{}, err
	}

	// Adjacency: i~j iff score >= threshold.
	adj := make([][]int, n)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if scores[i][j] >= b.config.Threshold {
				adj[i] = append(adj[i], j)
				adj[j] = append(adj[j], i)
			}
		}
	}

	// BFS from each unvisited node (single-linkage components).
	visited := make([]bool, n)
	var partition Partition
	for start := 0; start < n; start++ {
		if visited[start] {
			continue
		}
		component := []int{start}
		visited[start] = true
		queue := []int{start}
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			for _, next := range adj[cur] {
				if visited[next] {
					continue
				}
				visited[next] = true
				component = append(component, next)
				queue = append(queue, next)
			}
		}

		if len(component) < b.config.MinClusterSize {
			for _, idx := range component {
				partition.Isolated = append(partition.Isolated, docs[idx])
			}
			continue
		}

		sort.Ints(component)
		members := make([]model.Document, len(component))
		for i, idx := range component {
			members[i] = docs[idx]
		}
		partition.Clusters = append(partition.Clusters, Cluster{
			ID:            clusterID(members),
			Documents:     members,
			AvgSimilarity: avgPairwise(component, scores),
		})
	}

	return partition, nil
}

// #endregion build

// #region pairwise

// pairwiseScores computes the upper-triangular score matrix with bounded
// parallelism. The engine caches by hash pair across calls.
func (b *Builder) pairwiseScores(ctx context.Context, docs []model.Document) ([][]float64, error) {
	n := len(docs)
	scores := make([][]float64, n)
	for i := range scores {
		scores[i] = make([]float64, n)
	}

	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(b.config.MaxParallel)

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			i, j := i, j
			g.Go(func() error {
				if err := ctx.Err(); err != nil {
					return err
				}
				s := b.engine.Similarity(docs[i], docs[j])
				mu.Lock()
				scores[i][j] = s
				scores[j][i] = s
				mu.Unlock()
				return nil
			})
		}
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("pairwise scoring: %w", err)
	}
	return scores, nil
}

// avgPairwise averages the scores of all member pairs.
func avgPairwise(component []int, scores [][]float64) float64 {
	if len(component) < 2 {
		return 0
	}
	var sum float64
	pairs := 0
	for a := 0; a < len(component); a++ {
		for b := a + 1; b < len(component); b++ {
			sum += scores[component[a]][component[b]]
			pairs++
		}
	}
	return sum / float64(pairs)
}

// clusterID is a stable label derived from sorted member hashes, so the same
// membership always yields the same id for threat/prescription traceability.
func clusterID(members []model.Document) string {
	hashes := make([]string, len(members))
	for i, d := range members {
		hashes[i] = d.ContentHash
	}
	sort.Strings(hashes)
	h := sha256.New()
	for _, hash := range hashes {
		h.Write([]byte(hash))
		h.Write([]byte{0})
	}
	return "cluster-" + hex.EncodeToString(h.Sum(nil))[:12]
}

// #endregion pairwise
