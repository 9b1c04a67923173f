package mqtt

// outbound is one message held for the broker.
type outbound struct {
	topic  string
	qos    byte
	retain bool
	body   []byte
}

// sendQueue is a bounded FIFO holding messages while the broker is
// unreachable. When full, the oldest message is dropped to make room.
// Not safe for concurrent use — the caller synchronizes.
type sendQueue struct {
	msgs    []outbound
	max     int
	dropped int
}

func newSendQueue(max int) *sendQueue {
	return &sendQueue{max: max}
}

func (q *sendQueue) enqueue(m outbound) {
	if len(q.msgs) == q.max {
		q.msgs = q.msgs[1:]
		q.dropped++
	}
	q.msgs = append(q.msgs, m)
}

// flush returns the held messages in arrival order along with the number
// dropped since the last flush, and empties the queue.
func (q *sendQueue) flush() ([]outbound, int) {
	msgs, dropped := q.msgs, q.dropped
	q.msgs = nil
	q.dropped = 0
	return msgs, dropped
}

func (q *sendQueue) size() int {
	return len(q.msgs)
}
