package model

import (
	"sort"
	"time"
)

// IndexNode is one entry of a document's table of contents.
type IndexNode struct {
	UUID       string       `json:"uuid"`
	Title      string       `json:"title"`
	Path       string       `json:"path"`
	Type       ArticleType  `json:"type"`
	Sort       int64        `json:"sort"`
	CreateTime time.Time    `json:"createTime"`
	Children   []*IndexNode `json:"children"`
}

type DocumentIndex struct {
	Document *Article     `json:"document"`
	Children []*IndexNode `json:"children"`
}

// BuildIndex arranges the nodes of a document into a tree. Nodes whose parent
// is not part of the document hang off the root.
func BuildIndex(nodes []*Article) []*IndexNode {
	byUUID := make(map[string]*IndexNode, len(nodes))
	for _, a := range nodes {
		byUUID[a.UUID] = &IndexNode{
			UUID:       a.UUID,
			Title:      a.Title,
			Path:       a.Path,
			Type:       a.Type,
			Sort:       a.Sort,
			CreateTime: a.CreateTime,
			Children:   []*IndexNode{},
		}
	}

	roots := []*IndexNode{}
	for _, a := range nodes {
		node := byUUID[a.UUID]
		parent, ok := byUUID[a.Parent()]
		if !ok || parent == node {
			roots = append(roots, node)
			continue
		}
		parent.Children = append(parent.Children, node)
	}

	// Cycles never reach the root; surface them there instead of losing them.
	reached := make(map[string]bool, len(byUUID))
	var mark func(ns []*IndexNode)
	mark = func(ns []*IndexNode) {
		for _, n := range ns {
			if reached[n.UUID] {
				continue
			}
			reached[n.UUID] = true
			mark(n.Children)
		}
	}
	mark(roots)
	for _, a := range nodes {
		if reached[a.UUID] {
			continue
		}
		node := byUUID[a.UUID]
		if parent, ok := byUUID[a.Parent()]; ok {
			parent.Children = removeNode(parent.Children, node)
		}
		roots = append(roots, node)
		mark([]*IndexNode{node})
	}

	sortNodes(roots)
	return roots
}

// Subtree returns root and every node below it, parents before children.
func Subtree(root *Article, nodes []*Article) []*Article {
	children := make(map[string][]*Article)
	for _, a := range nodes {
		children[a.Parent()] = append(children[a.Parent()], a)
	}

	out := []*Article{root}
	seen := map[string]bool{root.UUID: true}
	for i := 0; i < len(out); i++ {
		for _, c := range children[out[i].UUID] {
			if seen[c.UUID] {
				continue
			}
			seen[c.UUID] = true
			out = append(out, c)
		}
	}
	return out
}

func sortNodes(ns []*IndexNode) {
	sort.SliceStable(ns, func(i, j int) bool {
		if ns[i].Sort != ns[j].Sort {
			return ns[i].Sort < ns[j].Sort
		}
		return ns[i].CreateTime.Before(ns[j].CreateTime)
	})
	for _, n := range ns {
		sortNodes(n.Children)
	}
}

func removeNode(ns []*IndexNode, target *IndexNode) []*IndexNode {
	for i, n := range ns {
		if n == target {
			return append(ns[:i], ns[i+1:]...)
		}
	}
	return ns
}
