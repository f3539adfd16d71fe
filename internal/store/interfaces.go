// Package store provides the transactional persistence layer for windows,
// atomic facts, and compression stats. Implementations live in the sqlite
// and postgres subpackages; this package defines the contract every other
// component depends on.
package store

import (
	"context"

	"github.com/wardenlabs/atomica/pkg/types"
)

// Store is the single-writer, transactional persistence layer shared by
// every component of the pipeline. All write operations are atomic; batch
// variants wrap N puts in one transaction and either commit all or roll
// back all.
type Store interface {
	// PutWindow upserts a single conversation window keyed by its ID.
	PutWindow(ctx context.Context, w *types.ConversationWindow) error

	// PutWindows upserts N windows in a single transaction.
	PutWindows(ctx context.Context, ws []*types.ConversationWindow) error

	// PutFact upserts a single atomic fact keyed by its ID.
	PutFact(ctx context.Context, f *types.AtomicFact) error

	// PutFacts upserts N facts in a single transaction.
	PutFacts(ctx context.Context, fs []*types.AtomicFact) error

	// PutStat appends a single compression stat row.
	PutStat(ctx context.Context, s *types.CompressionStat) error

	// GetRecentFacts returns up to limit facts ordered by extracted_at
	// descending.
	GetRecentFacts(ctx context.Context, limit int) ([]*types.AtomicFact, error)

	// GetFactsByLevel returns all facts at exactly the given level.
	GetFactsByLevel(ctx context.Context, level int) ([]*types.AtomicFact, error)

	// GetAllFacts returns every stored fact, used by the Retriever.
	GetAllFacts(ctx context.Context) ([]*types.AtomicFact, error)

	// GetFact returns a single fact by ID, or ErrNotFound.
	GetFact(ctx context.Context, id string) (*types.AtomicFact, error)

	// PutClusterMembers persists the membership of a transient FactCluster:
	// clusterID paired with the IDs of every fact that was one of its
	// members. Facts themselves are never mutated to record this; it is a
	// side table the Retriever walks to resolve a fact's consolidated
	// ancestor.
	PutClusterMembers(ctx context.Context, clusterID string, factIDs []string) error

	// GetClusterIDForFact returns the ID of the cluster that consolidated
	// factID into a higher-level fact, or ErrNotFound if it was never a
	// cluster member (e.g. it hasn't been through a consolidation pass, or
	// it is itself the highest level reached so far).
	GetClusterIDForFact(ctx context.Context, factID string) (string, error)

	// GetFactByParentClusterID returns the fact whose ParentClusterID is
	// clusterID, i.e. the fact that cluster was consolidated into, or
	// ErrNotFound if no fact claims that cluster.
	GetFactByParentClusterID(ctx context.Context, clusterID string) (*types.AtomicFact, error)

	// CountByLevel returns the number of facts stored at each level.
	CountByLevel(ctx context.Context) (map[int]int, error)

	// AvgCompressionRatio returns the mean compression_ratio across all
	// stored CompressionStat rows, or 0 if none exist.
	AvgCompressionRatio(ctx context.Context) (float64, error)

	// TotalWindows returns the number of stored conversation windows.
	TotalWindows(ctx context.Context) (int, error)

	// Clear removes all memory rows. Used only in administrative flows.
	Clear(ctx context.Context) error

	// Close releases any resources held by the store.
	Close() error
}
