package extract

import (
	"errors"

	"design-props-rag/internal/models"
)

// ErrHierarchyTooDeep is returned by FlattenLeavesDepth when the tree exceeds the depth guard.
var ErrHierarchyTooDeep = errors.New("design hierarchy exceeds maximum depth")

// FlattenLeaves returns the object ids of all leaf descendants of root in
// depth-first, left-to-right order. A childless root yields itself.
func FlattenLeaves(root *models.Node) []int64 {
	ids, _ := FlattenLeavesDepth(root, 0)
	return ids
}

// FlattenLeavesDepth is FlattenLeaves with a depth guard. maxDepth <= 0 disables it.
// The root is at depth 1.
func FlattenLeavesDepth(root *models.Node, maxDepth int) ([]int64, error) {
	if root == nil {
		return nil, nil
	}

	type frame struct {
		node  *models.Node
		depth int
	}

	var leaves []int64
	stack := []frame{{node: root, depth: 1}}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if maxDepth > 0 && top.depth > maxDepth {
			return nil, ErrHierarchyTooDeep
		}
		if top.node.IsLeaf() {
			leaves = append(leaves, top.node.ObjectID)
			continue
		}
		// push in reverse so the leftmost child is visited first
		children := top.node.Children
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, frame{node: &children[i], depth: top.depth + 1})
		}
	}
	return leaves, nil
}
