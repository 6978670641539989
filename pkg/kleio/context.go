package kleio

// Context carries the counters of one import run. Every group stamped
// through the same Context gets a distinct, increasing order.
type Context struct {
	line   int
	order  int
	pinned bool
}

// NewContext returns a context with both counters at zero.
func NewContext() *Context {
	return &Context{}
}

// NextLine advances and returns the line counter.
func (c *Context) NextLine() int {
	c.line++
	return c.line
}

// SetLine pins the line the next stamped group gets, typically the physical
// line a parser is reading.
func (c *Context) SetLine(n int) {
	c.line = n
	c.pinned = true
}

// NextOrder advances and returns the order counter.
func (c *Context) NextOrder() int {
	c.order++
	return c.order
}

// Stamp assigns the next order and line to g.
func (c *Context) Stamp(g *Group) {
	g.Order = c.NextOrder()
	if c.pinned {
		g.Line = c.line
		c.pinned = false
		return
	}
	g.Line = c.NextLine()
}
