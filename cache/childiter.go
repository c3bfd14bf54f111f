package cache

// childIterator lets the reviewer, unlocker and discard walk share one
// recursion across row-internal and column-internal pages: a single code
// path parameterized over how children are fetched, rather than one copy
// per page kind.
type childIterator struct {
	page *Page
}

func newChildIterator(page *Page) *childIterator {
	return &childIterator{page: page}
}

// len reports how many child slots this page has.
func (c *childIterator) len() int {
	return len(c.page.Children)
}

// at returns the Ref for child slot i, valid for 0 <= i < len().
func (c *childIterator) at(i int) *Ref {
	return c.page.Children[i]
}

// forEach walks every child slot in order, stopping (and returning the
// visitor's error) as soon as visit returns a non-nil error.
func (c *childIterator) forEach(visit func(i int, ref *Ref) error) error {
	for i, ref := range c.page.Children {
		if err := visit(i, ref); err != nil {
			return err
		}
	}
	return nil
}
