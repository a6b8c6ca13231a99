package spatial

import "github.com/golang/geo/s2"

// Polygon collects loops until it is committed into an Index.
type Polygon struct {
	loops     []*s2.Loop
	outer     []bool
	committed bool
}

// NewPolygon returns an empty polygon.
func NewPolygon() *Polygon {
	return &Polygon{}
}

// Add moves loop into the polygon. Nil or already moved loops are ignored,
// as is any loop added after the polygon was committed.
func (p *Polygon) Add(loop *Loop) {
	if p.committed || loop == nil || loop.Moved() {
		return
	}
	p.outer = append(p.outer, loop.outer)
	p.loops = append(p.loops, loop.take())
}

// NumLoops returns the number of loops held.
func (p *Polygon) NumLoops() int {
	return len(p.loops)
}

// NumVertices returns the total vertex count over all loops.
func (p *Polygon) NumVertices() int {
	n := 0
	for _, l := range p.loops {
		n += l.NumVertices()
	}
	return n
}

// HasOuter reports whether at least one outer loop was added.
func (p *Polygon) HasOuter() bool {
	for _, o := range p.outer {
		if o {
			return true
		}
	}
	return false
}

// Committed reports whether the polygon has been handed to an Index.
func (p *Polygon) Committed() bool {
	return p.committed
}
