package progress

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func repoWith(t *testing.T, samples ...Sample) *Repository {
	t.Helper()
	repo, err := OpenRepository(filepath.Join(t.TempDir(), "metrics.jsonl"))
	require.NoError(t, err)
	for _, s := range samples {
		require.NoError(t, repo.Append(s))
	}
	return repo
}

func TestEstimateLines_FromHistory(t *testing.T) {
	repo := repoWith(t,
		Sample{Provider: "aws", Operation: "deploy", NodeCount: 1, TotalOutputLines: 994, DurationSeconds: 310},
		Sample{Provider: "aws", Operation: "deploy", NodeCount: 4, TotalOutputLines: 1903, DurationSeconds: 560},
	)

	est := repo.EstimateLines("aws", "deploy", 8)
	// per_node = (1903-994)/3 = 303; 994 + 7*303 = 3115.
	assert.Equal(t, 3115, est.TotalLines)
	assert.Equal(t, 1903, est.MaxHistorical)
}

func TestEstimateLines_MonotonicInNodeCount(t *testing.T) {
	repo := repoWith(t,
		Sample{Provider: "aws", Operation: "deploy", NodeCount: 2, TotalOutputLines: 1200},
		Sample{Provider: "aws", Operation: "deploy", NodeCount: 6, TotalOutputLines: 2400},
	)

	prev := 0
	for n := 1; n <= 32; n++ {
		est := repo.EstimateLines("aws", "deploy", n)
		assert.GreaterOrEqual(t, est.TotalLines, prev, "n=%d", n)
		prev = est.TotalLines
	}
}

func TestEstimateLines_NoHistoryDefaults(t *testing.T) {
	repo := repoWith(t)

	est := repo.EstimateLines("gcp", "deploy", 1)
	assert.Equal(t, 100, est.TotalLines)
	assert.Equal(t, 0, est.MaxHistorical)

	est = repo.EstimateLines("gcp", "deploy", 5)
	assert.Equal(t, 100+4*50, est.TotalLines)
}

func TestEstimateLines_OtherPairIgnoredButFeedsMax(t *testing.T) {
	repo := repoWith(t,
		Sample{Provider: "hetzner", Operation: "destroy", NodeCount: 4, TotalOutputLines: 5000},
	)

	est := repo.EstimateLines("aws", "deploy", 2)
	// No aws/deploy history: defaults apply, but the global maximum is
	// available as the runaway fallback.
	assert.Equal(t, 150, est.TotalLines)
	assert.Equal(t, 5000, est.MaxHistorical)
}

func TestEstimateLines_SameSizedSamples(t *testing.T) {
	repo := repoWith(t,
		Sample{Provider: "aws", Operation: "deploy", NodeCount: 2, TotalOutputLines: 1000},
		Sample{Provider: "aws", Operation: "deploy", NodeCount: 2, TotalOutputLines: 1200},
	)

	// Base is the smaller same-sized sample; slope falls back to the mean
	// lines/nodes ratio.
	est := repo.EstimateLines("aws", "deploy", 4)
	assert.Equal(t, 1000+2*550, est.TotalLines)
}

func TestEstimateLines_SmallerClusterUsesBase(t *testing.T) {
	repo := repoWith(t,
		Sample{Provider: "aws", Operation: "deploy", NodeCount: 4, TotalOutputLines: 2000},
	)

	// Requests below the base node count return the base line count.
	est := repo.EstimateLines("aws", "deploy", 2)
	assert.Equal(t, 2000, est.TotalLines)
}
