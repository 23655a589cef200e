package workflow

import (
	"context"
	"sort"

	"github.com/pkg/errors"

	"github.com/m25mathews/rainger-poc/internal/scope"
	"github.com/m25mathews/rainger-poc/internal/store"
)

// Commit applies the staged associations of kind to the source records.
func (w *Workflows) Commit(ctx context.Context, kind scope.Kind) (int64, error) {
	defer w.observe("commit")()
	n, err := w.store.CommitAssociations(ctx, string(kind))
	if err != nil {
		return 0, errors.Wrapf(err, "commit %s associations", kind)
	}
	return n, nil
}

// BridgeRow links a location to one of its ancestors, or to itself at
// level 0.
type BridgeRow struct {
	ParentID       string
	ChildID        string
	LevelsRemoved  int
	ParentIsTop    bool
	ParentIsBottom bool
	ChildIsTop     bool
	ChildIsBottom  bool
}

func (r BridgeRow) values() []any {
	return []any{
		r.ParentID, r.ChildID, r.LevelsRemoved,
		r.ParentIsTop, r.ParentIsBottom, r.ChildIsTop, r.ChildIsBottom,
	}
}

// BuildBridge computes the ancestor closure of the location hierarchy. The
// parent of a node is the node whose name equals its main name; a node whose
// main name matches no other node, or more than one, is a root. The result is
// ordered by child id and level.
func BuildBridge(nodes []store.HierarchyNode) ([]BridgeRow, []string) {
	byName := make(map[string][]string, len(nodes))
	for _, n := range nodes {
		if n.Name != "" {
			byName[n.Name] = append(byName[n.Name], n.ID)
		}
	}

	var ambiguous []string
	parent := make(map[string]string, len(nodes))
	children := make(map[string]int, len(nodes))
	for _, n := range nodes {
		if n.MainName == "" || n.MainName == n.Name {
			continue
		}
		ids := byName[n.MainName]
		switch {
		case len(ids) == 1 && ids[0] != n.ID:
			parent[n.ID] = ids[0]
			children[ids[0]]++
		case len(ids) > 1:
			ambiguous = append(ambiguous, n.ID)
		}
	}

	ids := make([]string, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID
	}
	sort.Strings(ids)

	isTop := func(id string) bool { _, ok := parent[id]; return !ok }
	isBottom := func(id string) bool { return children[id] == 0 }

	var rows []BridgeRow
	for _, id := range ids {
		seen := map[string]bool{}
		for cur, level := id, 0; !seen[cur]; level++ {
			seen[cur] = true
			rows = append(rows, BridgeRow{
				ParentID:       cur,
				ChildID:        id,
				LevelsRemoved:  level,
				ParentIsTop:    isTop(cur),
				ParentIsBottom: isBottom(cur),
				ChildIsTop:     isTop(id),
				ChildIsBottom:  isBottom(id),
			})
			next, ok := parent[cur]
			if !ok {
				break
			}
			cur = next
		}
	}
	return rows, ambiguous
}

// Bridge commits the staged sites and rebuilds the location bridge table.
func (w *Workflows) Bridge(ctx context.Context) (int, error) {
	defer w.observe("bridge")()
	staged, err := w.store.StagedSites(ctx)
	if err != nil {
		return 0, err
	}
	w.logger.Info("committing sites", "sites", len(staged))
	if err := w.store.CommitSites(ctx); err != nil {
		return 0, errors.Wrap(err, "commit sites")
	}

	nodes, err := w.store.Hierarchy(ctx)
	if err != nil {
		return 0, err
	}
	rows, ambiguous := BuildBridge(nodes)
	if len(ambiguous) > 0 {
		w.logger.Warn("locations with more than one candidate parent left at the top",
			"count", len(ambiguous), "first", ambiguous[0])
	}

	values := make([][]any, len(rows))
	for i, r := range rows {
		values[i] = r.values()
	}
	if err := w.store.ReplaceBridge(ctx, values); err != nil {
		return 0, errors.Wrap(err, "replace bridge")
	}
	w.logger.Info("bridge rebuilt", "locations", len(nodes), "rows", len(rows))
	return len(rows), nil
}
