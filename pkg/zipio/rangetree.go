package zipio

import (
	"math/rand"

	"github.com/sirupsen/logrus"
)

// RangeTree is an interval set over non-negative integers, used to reject
// zip archives whose central-directory entries claim overlapping compressed
// data ranges (the "quoted overlap" zip-bomb construction). It is
// implemented as a treap keyed by interval start and annotated with the
// maximum end value in each subtree, giving expected O(log n) insert and
// overlap queries while tolerating insertion in an arbitrary (not
// necessarily offset-sorted) order, which is how central-directory entries
// arrive.
type RangeTree struct {
	root *rtNode
	rng  *rand.Rand
	log  *logrus.Logger
}

type rtNode struct {
	start, end  int64 // half-open interval [start, end)
	maxEnd      int64 // max end value in the subtree rooted here
	priority    int64
	left, right *rtNode
}

// TreeOption configures a RangeTree at construction time.
type TreeOption func(*RangeTree)

// WithTreeLogger attaches a logger used to report detected range overlaps
// (the zip-bomb rejection trigger). Nil-safe: a nil *logrus.Logger (or
// omitting the option) means no logging.
func WithTreeLogger(log *logrus.Logger) TreeOption {
	return func(t *RangeTree) { t.log = log }
}

// NewRangeTree returns an empty RangeTree.
func NewRangeTree(opts ...TreeOption) *RangeTree {
	t := &RangeTree{rng: rand.New(rand.NewSource(1))}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Insert adds the half-open interval [offset, offset+length) to the tree.
func (t *RangeTree) Insert(offset, length int64) {
	n := &rtNode{start: offset, end: offset + length, maxEnd: offset + length, priority: t.rng.Int63()}
	t.root = insertNode(t.root, n)
}

// Overlap reports whether [offset, offset+length) intersects any interval
// already present in the tree.
func (t *RangeTree) Overlap(offset, length int64) bool {
	found := overlaps(t.root, offset, offset+length)
	if found && t.log != nil {
		t.log.WithFields(logrus.Fields{"offset": offset, "length": length}).Warn("zipio: rejecting overlapping range")
	}
	return found
}

func insertNode(root, n *rtNode) *rtNode {
	if root == nil {
		return n
	}
	if n.start < root.start {
		root.left = insertNode(root.left, n)
		if root.left.priority > root.priority {
			root = rotateRight(root)
		}
	} else {
		root.right = insertNode(root.right, n)
		if root.right.priority > root.priority {
			root = rotateLeft(root)
		}
	}
	updateMaxEnd(root)
	return root
}

func rotateRight(root *rtNode) *rtNode {
	l := root.left
	root.left = l.right
	l.right = root
	updateMaxEnd(root)
	updateMaxEnd(l)
	return l
}

func rotateLeft(root *rtNode) *rtNode {
	r := root.right
	root.right = r.left
	r.left = root
	updateMaxEnd(root)
	updateMaxEnd(r)
	return r
}

func updateMaxEnd(n *rtNode) {
	if n == nil {
		return
	}
	m := n.end
	if n.left != nil && n.left.maxEnd > m {
		m = n.left.maxEnd
	}
	if n.right != nil && n.right.maxEnd > m {
		m = n.right.maxEnd
	}
	n.maxEnd = m
}

// overlaps walks the interval tree, pruning subtrees whose maxEnd can't
// possibly reach the query interval's start.
func overlaps(n *rtNode, start, end int64) bool {
	if n == nil {
		return false
	}
	if n.maxEnd <= start {
		return false
	}
	if n.left != nil && overlaps(n.left, start, end) {
		return true
	}
	if n.start < end && n.end > start {
		return true
	}
	if n.start >= end {
		return false
	}
	return overlaps(n.right, start, end)
}
