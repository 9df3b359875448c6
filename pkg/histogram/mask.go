package histogram

// Mask is a per-lane activity flag for batched writes
type Mask []bool

// NewMask creates a mask of n lanes all set to value
func NewMask(n int, value bool) Mask {
	m := make(Mask, n)
	if value {
		for i := range m {
			m[i] = true
		}
	}
	return m
}

// Any reports whether at least one lane is active
func (m Mask) Any() bool {
	for _, v := range m {
		if v {
			return true
		}
	}
	return false
}

// Count returns the number of active lanes
func (m Mask) Count() int {
	n := 0
	for _, v := range m {
		if v {
			n++
		}
	}
	return n
}
