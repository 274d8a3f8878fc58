package recovery

import (
	"sort"

	"github.com/cuemby/clusteragent/pkg/types"
)

// priorities orders roles by dependency: the directory serves auth, which
// serves the proxy, identity provider and trust UI. Lower recovers first.
var priorities = map[types.Role]int{
	types.RoleLDAP:    1,
	types.RoleOxAuth:  2,
	types.RoleNginx:   3,
	types.RoleOxIdp:   4,
	types.RoleOxTrust: 5,
}

// Priority returns the recovery priority of role. Unknown roles get 0, so
// they are recovered before every known role.
func Priority(role types.Role) int {
	return priorities[role]
}

// SortByPriority returns nodes stable-sorted by ascending priority. Nodes of
// equal priority keep their store order.
func SortByPriority(nodes []*types.Node) []*types.Node {
	sorted := make([]*types.Node, len(nodes))
	copy(sorted, nodes)
	sort.SliceStable(sorted, func(i, j int) bool {
		return Priority(sorted[i].Role) < Priority(sorted[j].Role)
	})
	return sorted
}
