package usecases

import (
	"github.com/Highlander2003/EcoFlow/pkg/datastructure"
	"github.com/Highlander2003/EcoFlow/pkg/util"
)

func (rs *RoutingService) snapOrigDestToNearbyNodes(origLat, origLon, dstLat, dstLon float64) (datastructure.NodeID,
	datastructure.NodeID, error) {
	orig, ok := rs.spatialIndex.NearestNode(origLat, origLon, rs.searchRadius)
	if !ok {
		return 0, 0, util.WrapErrorf(nil, util.ErrNotFound, "no road node within %.2f km of origin %f,%f",
			rs.searchRadius, origLat, origLon)
	}
	dst, ok := rs.spatialIndex.NearestNode(dstLat, dstLon, rs.searchRadius)
	if !ok {
		return 0, 0, util.WrapErrorf(nil, util.ErrNotFound, "no road node within %.2f km of destination %f,%f",
			rs.searchRadius, dstLat, dstLon)
	}
	return orig.ID, dst.ID, nil
}
