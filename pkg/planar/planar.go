package planar

import (
	"context"
	"errors"
	"sync"

	"github.com/chazu/layercam/pkg/toolpath"
)

// ErrDegenerateContour is returned for contours that are empty, have no
// area, or collapse under the requested offset.
var ErrDegenerateContour = errors.New("degenerate contour")

// Side selects where the tool runs relative to a contour.
type Side int

const (
	Outside Side = iota
	Inside
	On
)

func (s Side) String() string {
	switch s {
	case Outside:
		return "outside"
	case Inside:
		return "inside"
	case On:
		return "on"
	default:
		return "unknown"
	}
}

// ParseSide converts a configuration string to a Side.
func ParseSide(s string) (Side, bool) {
	switch s {
	case "outside", "":
		return Outside, true
	case "inside":
		return Inside, true
	case "on":
		return On, true
	}
	return Outside, false
}

// Request asks for toolpaths at one lateral offset. Offset is measured into
// the wall, so larger offsets remove more material.
type Request struct {
	Offset   float64
	Sublayer bool
}

// Planner is the 2D path-planning collaborator.
// Implementations must return an empty output and a nil error when ctx is
// cancelled.
type Planner interface {
	Plan(ctx context.Context, req Request) (toolpath.PathOutput, error)
}

// Serialized guards a Planner that is not safe for concurrent use.
type Serialized struct {
	mu *sync.Mutex
	p  Planner
}

var _ Planner = (*Serialized)(nil)

// Serialize wraps p so that at most one Plan call runs at a time.
func Serialize(p Planner) *Serialized {
	return &Serialized{mu: new(sync.Mutex), p: p}
}

// Share wraps q behind the same lock as s, for planners that share a
// backend.
func (s *Serialized) Share(q Planner) *Serialized {
	return &Serialized{mu: s.mu, p: q}
}

// Plan implements Planner.
func (s *Serialized) Plan(ctx context.Context, req Request) (toolpath.PathOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ctx.Err() != nil {
		return toolpath.PathOutput{}, nil
	}
	return s.p.Plan(ctx, req)
}
