package mirror

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v8"

	"webhookrelay/internal/data"
)

func sampleRecord() data.Record {
	return data.Record{
		EventID:    "3f1c2a7e-0000-4000-8000-000000000001",
		Action:     data.ActionDeploy,
		Timestamp:  1700000000,
		StatusCode: 404,
		Envelope:   []byte(`{"source":"aspect-ai","action":"deploy"}`),
		Text:       "not found",
	}
}

func TestPublisher_DeliversToSubscriber(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when starting miniredis", err)
	}
	defer mr.Close()

	ctx := context.Background()
	rdb, err := Connect(mr.Addr())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer rdb.Close()

	sub := rdb.Subscribe(ctx, "relay-events")
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	if err := NewPublisher(rdb, "relay-events").Publish(ctx, sampleRecord()); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case msg := <-sub.Channel():
		got, err := Decode([]byte(msg.Payload))
		if err != nil {
			t.Fatalf("failed to unmarshal msgpack data: %v", err)
		}
		want := sampleRecord()
		if got.EventID != want.EventID || got.StatusCode != want.StatusCode || got.Text != want.Text {
			t.Errorf("expected %+v, got %+v", want, got)
		}
		if string(got.Envelope) != string(want.Envelope) {
			t.Errorf("envelope bytes changed in transit: %s", got.Envelope)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no message received on channel")
	}

	if mr.Exists("relay-events") {
		t.Error("publishing must not create a key")
	}
}

func TestPublisher_ReturnsRedisError(t *testing.T) {
	db, mock := redismock.NewClientMock()
	payload, err := Encode(sampleRecord())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	mock.ExpectPublish("relay-events", payload).SetErr(errors.New("connection reset"))

	err = NewPublisher(db, "relay-events").Publish(context.Background(), sampleRecord())
	if err == nil {
		t.Fatal("expected publish error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestConnect_ParsesURL(t *testing.T) {
	rdb, err := Connect("redis://:pw@127.0.0.1:6390/2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer rdb.Close()

	opt := rdb.Options()
	if opt.Addr != "127.0.0.1:6390" || opt.DB != 2 || opt.Password != "pw" {
		t.Errorf("unexpected options: addr=%s db=%d", opt.Addr, opt.DB)
	}

	if _, err := Connect("redis://127.0.0.1:6390/notadb"); err == nil {
		t.Error("expected error for invalid db number")
	}
}
