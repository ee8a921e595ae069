package identity

import (
	"time"

	"github.com/scrypster/kinstory/pkg/types"
)

// BuildFamilyTree returns one node per person, in input order, with the
// direct children and parents taken from edges. Both indexes are built in one
// pass over the edges, so for every edge (P, C) C is among P's children
// exactly when P is among C's parents. Edges naming a person that is not in
// people (left behind by a delete) are skipped. Nothing transitive is derived.
func BuildFamilyTree(people []types.Person, edges []types.RelationshipEdge) []types.TreeNode {
	start := time.Now()
	defer func() { familyTreeBuild.Observe(time.Since(start).Seconds()) }()

	known := make(map[int64]struct{}, len(people))
	for _, p := range people {
		known[p.ID] = struct{}{}
	}

	children := make(map[int64][]int64)
	parents := make(map[int64][]int64)
	for _, e := range edges {
		_, okParent := known[e.ParentID]
		_, okChild := known[e.ChildID]
		if !okParent || !okChild {
			continue
		}
		children[e.ParentID] = append(children[e.ParentID], e.ChildID)
		parents[e.ChildID] = append(parents[e.ChildID], e.ParentID)
	}

	nodes := make([]types.TreeNode, 0, len(people))
	for _, p := range people {
		node := types.TreeNode{
			ID:        p.ID,
			Name:      p.Name,
			Nicknames: p.Nicknames,
			Picture:   p.Picture,
			BirthDate: p.BirthDate,
			DeathDate: p.DeathDate,
			Gender:    p.Gender,
			Children:  children[p.ID],
			Parents:   parents[p.ID],
		}
		if node.Children == nil {
			node.Children = []int64{}
		}
		if node.Parents == nil {
			node.Parents = []int64{}
		}
		nodes = append(nodes, node)
	}
	return nodes
}

// FriendsOf returns the other member of every friendship involving person,
// without repeats, in edge order. A self-friendship lists the person itself.
func FriendsOf(person int64, friendships []types.FriendshipEdge) []int64 {
	friends := []int64{}
	seen := make(map[int64]struct{})
	for _, f := range friendships {
		if !f.Involves(person) {
			continue
		}
		other := f.Other(person)
		if _, ok := seen[other]; ok {
			continue
		}
		seen[other] = struct{}{}
		friends = append(friends, other)
	}
	return friends
}
