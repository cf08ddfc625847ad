package model

import (
	"fmt"
	"time"
)

// HeadKind identifies the variant of a Head
type HeadKind string

const (
	HeadKindBranch        HeadKind = "branch"
	HeadKindTag           HeadKind = "tag"
	HeadKindChangeRequest HeadKind = "change-request"
)

// CheckoutStrategy is how a change request is checked out for a build
type CheckoutStrategy string

const (
	// CheckoutMerge builds the change request merged into its target
	CheckoutMerge CheckoutStrategy = "merge"
	// CheckoutHead builds the change request head as-is
	CheckoutHead CheckoutStrategy = "head"
)

// Origin tells where a change request comes from relative to its target repository
type Origin string

const (
	OriginDefault Origin = "default"
	OriginFork    Origin = "fork"
)

// Head is a named line of development: branch, tag or change request
type Head interface {
	Name() string
	Kind() HeadKind
}

// HeadEqual reports whether two heads denote the same line of development
func HeadEqual(a, b Head) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Kind() == b.Kind() && a.Name() == b.Name()
}

// BranchHead is a plain branch
type BranchHead struct {
	name string
}

// NewBranchHead creates a branch head
func NewBranchHead(name string) *BranchHead {
	return &BranchHead{name: name}
}

func (h *BranchHead) Name() string   { return h.name }
func (h *BranchHead) Kind() HeadKind { return HeadKindBranch }

// TagHead is a tag with its creation time
type TagHead struct {
	name      string
	timestamp time.Time
}

// NewTagHead creates a tag head
func NewTagHead(name string, timestamp time.Time) *TagHead {
	return &TagHead{name: name, timestamp: timestamp}
}

func (h *TagHead) Name() string         { return h.name }
func (h *TagHead) Kind() HeadKind       { return HeadKindTag }
func (h *TagHead) Timestamp() time.Time { return h.timestamp }

// ChangeRequestHead is a proposal to merge one branch into a target branch
type ChangeRequestHead struct {
	number   int
	target   *BranchHead
	strategy CheckoutStrategy
	origin   Origin
	author   string
}

// NewChangeRequestHead creates a change request head. An empty strategy means merge.
func NewChangeRequestHead(number int, target string, strategy CheckoutStrategy, origin Origin, author string) *ChangeRequestHead {
	if strategy == "" {
		strategy = CheckoutMerge
	}
	if origin == "" {
		origin = OriginDefault
	}
	return &ChangeRequestHead{
		number:   number,
		target:   NewBranchHead(target),
		strategy: strategy,
		origin:   origin,
		author:   author,
	}
}

func (h *ChangeRequestHead) Name() string                       { return fmt.Sprintf("PR-%d", h.number) }
func (h *ChangeRequestHead) Kind() HeadKind                     { return HeadKindChangeRequest }
func (h *ChangeRequestHead) Number() int                        { return h.number }
func (h *ChangeRequestHead) Target() *BranchHead                { return h.target }
func (h *ChangeRequestHead) CheckoutStrategy() CheckoutStrategy { return h.strategy }
func (h *ChangeRequestHead) Origin() Origin                     { return h.origin }
func (h *ChangeRequestHead) Author() string                     { return h.author }
