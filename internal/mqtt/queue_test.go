package mqtt

import "testing"

func TestSendQueueEmptyFlush(t *testing.T) {
	q := newSendQueue(10)
	msgs, dropped := q.flush()
	if len(msgs) != 0 || dropped != 0 {
		t.Errorf("empty flush: %d msgs, %d dropped", len(msgs), dropped)
	}
}

func TestSendQueueOrder(t *testing.T) {
	q := newSendQueue(10)
	for i := 0; i < 5; i++ {
		q.enqueue(outbound{topic: "t", body: []byte{byte(i)}})
	}
	if q.size() != 5 {
		t.Fatalf("size: %d", q.size())
	}

	msgs, dropped := q.flush()
	if len(msgs) != 5 || dropped != 0 {
		t.Fatalf("flush: %d msgs, %d dropped", len(msgs), dropped)
	}
	for i, m := range msgs {
		if m.body[0] != byte(i) {
			t.Errorf("msg %d out of order: %d", i, m.body[0])
		}
	}

	if q.size() != 0 {
		t.Errorf("size after flush: %d", q.size())
	}
	msgs, _ = q.flush()
	if len(msgs) != 0 {
		t.Errorf("second flush returned %d msgs", len(msgs))
	}
}

func TestSendQueueOverflowDropsOldest(t *testing.T) {
	q := newSendQueue(5)
	for i := 0; i < 8; i++ {
		q.enqueue(outbound{topic: "t", body: []byte{byte(i)}})
	}

	msgs, dropped := q.flush()
	if len(msgs) != 5 {
		t.Fatalf("expected 5 msgs, got %d", len(msgs))
	}
	if dropped != 3 {
		t.Errorf("expected 3 dropped, got %d", dropped)
	}
	for i, m := range msgs {
		if want := byte(i + 3); m.body[0] != want {
			t.Errorf("msg %d: got %d, want %d", i, m.body[0], want)
		}
	}
}

func TestSendQueueDroppedResetsOnFlush(t *testing.T) {
	q := newSendQueue(2)
	for i := 0; i < 4; i++ {
		q.enqueue(outbound{topic: "t"})
	}
	if _, dropped := q.flush(); dropped != 2 {
		t.Fatalf("first flush dropped: %d", dropped)
	}

	q.enqueue(outbound{topic: "t"})
	if _, dropped := q.flush(); dropped != 0 {
		t.Errorf("dropped count carried across flushes: %d", dropped)
	}
}

func TestSendQueuePreservesFields(t *testing.T) {
	q := newSendQueue(10)
	q.enqueue(outbound{
		topic:  "thermolearn/test",
		qos:    1,
		retain: true,
		body:   []byte(`{"test":true}`),
	})

	msgs, _ := q.flush()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 msg, got %d", len(msgs))
	}
	m := msgs[0]
	if m.topic != "thermolearn/test" || m.qos != 1 || !m.retain {
		t.Errorf("fields lost: %+v", m)
	}
	if string(m.body) != `{"test":true}` {
		t.Errorf("body: %s", m.body)
	}
}
