package sos

import "github.com/boazAvami/Epi-Com-sub000/internal/models"

// PruneAlreadyNotified removes identities that were already considered for
// this request, plus the requester itself, from a candidate set. It is pure
// and must run before every dispatch so that re-querying at a larger radius
// never re-sends to anyone.
func PruneAlreadyNotified(candidates []uint, req *models.SOSRequest, requesterID uint) []uint {
	notified := make(map[uint]struct{}, len(req.NotifiedUserIDs))
	for _, id := range req.NotifiedUserIDs {
		notified[id] = struct{}{}
	}

	pruned := make([]uint, 0, len(candidates))
	for _, id := range candidates {
		if id == requesterID {
			continue
		}
		if _, ok := notified[id]; ok {
			continue
		}
		pruned = append(pruned, id)
	}
	return pruned
}
