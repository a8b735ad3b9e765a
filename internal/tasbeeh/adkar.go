package tasbeeh

// Progress maps an adkar item id to the repetitions done so far
type Progress map[string]int

// Increment counts one repetition of an item, capped at repeat.
// It reports the new count and whether a repetition was actually added.
func (p Progress) Increment(id string, repeat int) (int, bool) {
	current := p[id]
	if current >= repeat {
		return current, false
	}
	p[id] = current + 1
	return current + 1, true
}

// Done reports whether an item reached its repeat count
func (p Progress) Done(id string, repeat int) bool {
	return p[id] >= repeat
}

// Reset clears an item's count
func (p Progress) Reset(id string) {
	p[id] = 0
}
