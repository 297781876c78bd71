// Package handler provides HTTP request handlers for WirePool.
package handler

import (
	"net/http"

	"github.com/wirepool/wirepool-go/internal/core/domain"
)

// handleListNodes handles GET /v1/nodes.
//
// Supported query parameters: region, premium=true.
func (h *Handler) handleListNodes(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	filter := &domain.NodeFilter{
		Region:      query.Get("region"),
		PremiumOnly: query.Get("premium") == "true",
	}

	nodes := h.directory.ListAvailable(filter)

	items := make([]NodeResponse, len(nodes))
	for i, n := range nodes {
		items[i] = nodeToResponse(n)
	}

	h.writeJSON(w, r, http.StatusOK, ListNodesResponse{
		Nodes: items,
		Total: len(items),
	})
}

// nodeToResponse converts a domain.ServerNode to a NodeResponse.
func nodeToResponse(n *domain.ServerNode) NodeResponse {
	return NodeResponse{
		ID:          n.ID,
		Name:        n.Name,
		Address:     n.Address,
		PublicKey:   n.PublicKey,
		Region:      n.Region,
		Premium:     n.IsPremium,
		Capacity:    n.MaxCapacity,
		Occupancy:   n.CurrentOccupancy,
		Load:        n.CurrentLoad,
		PingMS:      n.PingMS,
		HealthState: string(n.HealthState),
		Score:       n.Score(),
	}
}
