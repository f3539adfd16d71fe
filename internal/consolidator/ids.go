package consolidator

import (
	"github.com/google/uuid"

	"github.com/wardenlabs/atomica/pkg/types"
)

// clusterID assigns a fresh random ID to a transient cluster; unlike facts
// and windows, clusters are never persisted so there is no need for the ID
// to be reproducible across runs.
func clusterID(_ *types.FactCluster) string {
	return uuid.NewString()
}
