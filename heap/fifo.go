package heap

// chunkFifo singly-linked queue of quarantined chunks with a byte-size
// accumulator. Sizes account chunk slab sizes, not user sizes.
type chunkFifo struct {
	first *chunk
	last  *chunk
	size  int64
}

// push a single chunk at the newest end.
func (q *chunkFifo) push(m *chunk) {
	assert(m.next == nil, "fifo.push(): chunk %x already linked", m.addr())
	if q.last != nil {
		assert(q.first != nil, "fifo.push(): last without first")
		assert(q.last.next == nil, "fifo.push(): last has a next")
		q.last.next = m
		q.last = m
	} else {
		assert(q.first == nil, "fifo.push(): first without last")
		q.first, q.last = m, m
	}
	q.size += m.size()
}

// pushlist concatenate other at the newest end and transfer ownership,
// other is left empty.
func (q *chunkFifo) pushlist(other *chunkFifo) {
	if other.first == nil {
		return
	}
	if q.last != nil {
		assert(q.first != nil, "fifo.pushlist(): last without first")
		assert(q.last.next == nil, "fifo.pushlist(): last has a next")
		q.last.next = other.first
		q.last = other.last
	} else {
		assert(q.first == nil, "fifo.pushlist(): first without last")
		q.first, q.last = other.first, other.last
	}
	q.size += other.size
	other.first, other.last, other.size = nil, nil, 0
}

// pop the oldest chunk.
func (q *chunkFifo) pop() *chunk {
	assert(q.first != nil, "fifo.pop(): empty")
	m := q.first
	q.first = m.next
	if q.first == nil {
		q.last = nil
	}
	m.next = nil
	assert(q.size >= m.size(), "fifo.pop(): size accounting broke")
	q.size -= m.size()
	return m
}
