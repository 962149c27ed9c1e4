package themes

import (
	"math"
	"math/rand/v2"
)

// DefaultMaxIterations bounds the Lloyd iterations of one k-means run.
const DefaultMaxIterations = 10

// KMeans partitions vecs into k groups and returns the label of each vector.
// Seeding is k-means++: the first centre is vecs[0] and further centres are
// drawn with probability proportional to the squared distance to the nearest
// chosen centre, using a PRNG seeded with seed. The same input and seed always
// give the same labels.
func KMeans(vecs [][]float64, k, maxIter int, seed uint64) []int {
	n := len(vecs)
	labels := make([]int, n)

	if n == 0 || k <= 1 {
		return labels
	}

	k = min(k, n)

	if maxIter <= 0 {
		maxIter = DefaultMaxIterations
	}

	centers := seedCenters(vecs, k, seed)

	for range maxIter {
		changed := false

		for i, v := range vecs {
			best := nearest(v, centers)
			if labels[i] != best {
				labels[i] = best
				changed = true
			}
		}

		for j := range centers {
			if m, ok := mean(vecs, labels, j); ok {
				centers[j] = m
			}
		}

		if !changed {
			break
		}
	}

	return labels
}

func seedCenters(vecs [][]float64, k int, seed uint64) [][]float64 {
	rng := rand.New(rand.NewPCG(seed, seed))

	centers := make([][]float64, 0, k)
	centers = append(centers, clone(vecs[0]))

	dists := make([]float64, len(vecs))

	for len(centers) < k {
		var total float64

		for i, v := range vecs {
			d := math.Inf(1)
			for _, c := range centers {
				d = math.Min(d, squaredDistance(v, c))
			}

			dists[i] = d
			total += d
		}

		r := rng.Float64() * total
		pick := len(vecs) - 1

		var upto float64

		for i, d := range dists {
			upto += d
			if upto >= r {
				pick = i
				break
			}
		}

		centers = append(centers, clone(vecs[pick]))
	}

	return centers
}

// Silhouette returns the mean silhouette coefficient of a labelling. It is 0
// when k <= 1 or there is at most one vector. A point whose intra and nearest
// other cluster distances are both zero scores 0.
func Silhouette(vecs [][]float64, labels []int, k int) float64 {
	n := len(vecs)
	if k <= 1 || n <= 1 {
		return 0
	}

	var total float64

	for i := range vecs {
		a := meanDistance(vecs, labels, i, labels[i])

		b := math.Inf(1)
		for c := range k {
			if c == labels[i] {
				continue
			}

			if d, ok := meanDistanceTo(vecs, labels, i, c); ok {
				b = math.Min(b, d)
			}
		}

		if math.IsInf(b, 1) {
			b = 0
		}

		if m := math.Max(a, b); m > 0 {
			total += (b - a) / m
		}
	}

	return total / float64(n)
}

// meanDistance is the mean distance from vecs[i] to the other members of its cluster.
func meanDistance(vecs [][]float64, labels []int, i, cluster int) float64 {
	var sum float64

	count := 0

	for j, v := range vecs {
		if j == i || labels[j] != cluster {
			continue
		}

		sum += distance(vecs[i], v)
		count++
	}

	if count == 0 {
		return 0
	}

	return sum / float64(count)
}

func meanDistanceTo(vecs [][]float64, labels []int, i, cluster int) (float64, bool) {
	var sum float64

	count := 0

	for j, v := range vecs {
		if labels[j] != cluster {
			continue
		}

		sum += distance(vecs[i], v)
		count++
	}

	if count == 0 {
		return 0, false
	}

	return sum / float64(count), true
}

func nearest(v []float64, centers [][]float64) int {
	best, bestDist := 0, math.Inf(1)

	for j, c := range centers {
		if d := distance(v, c); d < bestDist {
			best, bestDist = j, d
		}
	}

	return best
}

func mean(vecs [][]float64, labels []int, cluster int) ([]float64, bool) {
	var centroid []float64

	count := 0

	for i, v := range vecs {
		if labels[i] != cluster {
			continue
		}

		if centroid == nil {
			centroid = make([]float64, len(v))
		}

		for d := range min(len(v), len(centroid)) {
			centroid[d] += v[d]
		}

		count++
	}

	if count == 0 {
		return nil, false
	}

	for d := range centroid {
		centroid[d] /= float64(count)
	}

	return centroid, true
}

func distance(a, b []float64) float64 {
	return math.Sqrt(squaredDistance(a, b))
}

func squaredDistance(a, b []float64) float64 {
	var sum float64

	for i := range min(len(a), len(b)) {
		d := a[i] - b[i]
		sum += d * d
	}

	return sum
}

func clone(v []float64) []float64 {
	out := make([]float64, len(v))
	copy(out, v)

	return out
}
