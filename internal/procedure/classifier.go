package procedure

import "context"

// Classifier holds an immutable, ordered procedure list and decides
// which Procedure (if any) applies to a path. Classify is a pure
// function of (path, procedures): the only side effects it can have
// are whatever a configured External test chooses to perform.
type Classifier struct {
	Procedures []Procedure
}

// NewClassifier builds a Classifier over procedures, in order.
func NewClassifier(procedures []Procedure) *Classifier {
	return &Classifier{Procedures: procedures}
}

// Classify returns the first Procedure whose Test matches relative,
// or nil if none do (a pass-through regular file). A Test invocation
// that fails to even run is treated as a non-match and logged, rather
// than aborting classification — External tests may be wired to
// flaky or missing programs, and a broken test should not wedge every
// metadata operation on the filesystem.
func (c *Classifier) Classify(ctx context.Context, pc *Context, relative string) (*Procedure, error) {
	for i := range c.Procedures {
		ok, err := c.Procedures[i].Test.Match(ctx, pc, relative)
		if err != nil {
			pc.logger().Debug("classifier test failed to run; treating as non-match",
				"path", relative,
				"error", err,
			)
			continue
		}
		if ok {
			return &c.Procedures[i], nil
		}
	}
	return nil, nil
}
