package kafkapublisher

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/IBM/sarama"

	"github.com/mohammed-shakir/rurair-map/internal/invalidation"
)

type fakeProducer struct {
	sent   []*sarama.ProducerMessage
	err    error
	closed bool
}

func (f *fakeProducer) SendMessage(m *sarama.ProducerMessage) (int32, int64, error) {
	if f.err != nil {
		return 0, 0, f.err
	}
	f.sent = append(f.sent, m)
	return 0, int64(len(f.sent)), nil
}

func (f *fakeProducer) Close() error { f.closed = true; return nil }

func TestRefresh_PublishesKeyedEvent(t *testing.T) {
	fp := &fakeProducer{}
	p := NewWithProducer(fp, "dataset-refresh")
	p.now = func() time.Time { return time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC) }

	if _, err := p.Refresh(invalidation.DatasetPollution, "Contaminación"); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if len(fp.sent) != 1 {
		t.Fatalf("sent=%d want 1", len(fp.sent))
	}
	m := fp.sent[0]
	if m.Topic != "dataset-refresh" {
		t.Fatalf("topic=%q", m.Topic)
	}
	if k, _ := m.Key.Encode(); string(k) != "pollution" {
		t.Fatalf("key=%q", k)
	}
	v, _ := m.Value.Encode()
	var ev invalidation.Event
	if err := json.Unmarshal(v, &ev); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if err := ev.Validate(); err != nil {
		t.Fatalf("published event invalid: %v", err)
	}
	if ev.Category != "Contaminación" || !ev.TS.Equal(p.now()) {
		t.Fatalf("event=%+v", ev)
	}

	if err := p.Close(); err != nil || !fp.closed {
		t.Fatalf("close err=%v closed=%v", err, fp.closed)
	}
}

func TestRefresh_Errors(t *testing.T) {
	fp := &fakeProducer{}
	p := NewWithProducer(fp, "t")
	if _, err := p.Refresh("weather", ""); err == nil {
		t.Fatal("unknown dataset must fail")
	}
	if len(fp.sent) != 0 {
		t.Fatal("invalid event must not be sent")
	}

	fp.err = errors.New("leader not available")
	if _, err := p.Refresh(invalidation.DatasetAll, ""); err == nil {
		t.Fatal("send failure must surface")
	}
}
