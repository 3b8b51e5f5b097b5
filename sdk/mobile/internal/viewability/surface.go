package viewability

// Surface is the mounted ad view as seen by the tracker.
type Surface interface {
	// Attached reports whether the view is in a window.
	Attached() bool
	// Shown reports whether the view and all its ancestors are visible.
	Shown() bool
	// Bounds is the full laid-out frame in screen coordinates.
	Bounds() Rect
	// VisibleBounds is the on-screen, unclipped portion of Bounds. ok is
	// false when no part of the view is visible.
	VisibleBounds() (r Rect, ok bool)
	// Parent returns the immediate container, or nil at the root.
	Parent() Container
}

// Container is an ancestor of the surface in the view tree.
type Container interface {
	Parent() Container
	Scrollable() bool
	// Bounds is the container frame in screen coordinates.
	Bounds() Rect
	// ScrollOffset is the vertical scroll position of a scrollable container.
	ScrollOffset() float64
}

// Ancestor is a value description of one container.
type Ancestor struct {
	Frame      Rect    `json:"frame"`
	Scrollable bool    `json:"scrollable"`
	ScrollY    float64 `json:"scroll_y"`
}

// Snapshot is a Surface captured at one instant, typically pushed from the
// native view layer after a scroll or layout pass.
type Snapshot struct {
	IsAttached bool       `json:"attached"`
	IsShown    bool       `json:"shown"`
	Frame      Rect       `json:"frame"`
	Visible    *Rect      `json:"visible,omitempty"`
	Ancestors  []Ancestor `json:"ancestors,omitempty"` // nearest first
}

func (s Snapshot) Attached() bool { return s.IsAttached }
func (s Snapshot) Shown() bool    { return s.IsShown }
func (s Snapshot) Bounds() Rect   { return s.Frame }

func (s Snapshot) VisibleBounds() (Rect, bool) {
	if s.Visible == nil || s.Visible.IsEmpty() {
		return Rect{}, false
	}
	return *s.Visible, true
}

func (s Snapshot) Parent() Container {
	if len(s.Ancestors) == 0 {
		return nil
	}
	return ancestorChain{list: s.Ancestors}
}

type ancestorChain struct {
	list []Ancestor
	i    int
}

func (c ancestorChain) Parent() Container {
	if c.i+1 >= len(c.list) {
		return nil
	}
	return ancestorChain{list: c.list, i: c.i + 1}
}

func (c ancestorChain) Scrollable() bool      { return c.list[c.i].Scrollable }
func (c ancestorChain) Bounds() Rect          { return c.list[c.i].Frame }
func (c ancestorChain) ScrollOffset() float64 { return c.list[c.i].ScrollY }
