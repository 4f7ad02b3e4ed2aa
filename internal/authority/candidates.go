package authority

// Candidates is a forward-only, non-restartable sequence of match
// candidates. Consumers pull with Next and stop as soon as a candidate is
// accepted; the remainder of the sequence is never touched.
type Candidates struct {
	next func() (Candidate, bool, error)
	done bool
	err  error
}

// NewCandidates wraps a pull function into a sequence. The function is not
// called again after it reports exhaustion or an error.
func NewCandidates(next func() (Candidate, bool, error)) *Candidates {
	return &Candidates{next: next}
}

// CandidatesOf builds a sequence over an already-parsed result page.
func CandidatesOf(items ...Candidate) *Candidates {
	pos := 0
	return NewCandidates(func() (Candidate, bool, error) {
		if pos >= len(items) {
			return Candidate{}, false, nil
		}
		item := items[pos]
		pos++
		return item, true, nil
	})
}

// Next returns the next candidate. The second result is false once the
// sequence is exhausted or failed; the error, if any, repeats on further
// calls.
func (c *Candidates) Next() (Candidate, bool, error) {
	if c.done {
		return Candidate{}, false, c.err
	}
	candidate, ok, err := c.next()
	if err != nil || !ok {
		c.done = true
		c.err = err
		return Candidate{}, false, err
	}
	return candidate, true, nil
}
