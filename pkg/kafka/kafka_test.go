package kafka

import (
	"testing"
)

type sample struct {
	Outcome string `json:"outcome"`
	Count   int    `json:"count"`
}

func TestDecodeJSON(t *testing.T) {
	got, err := DecodeJSON[sample]([]byte(`{"outcome":"accepted","count":3}`))
	if err != nil {
		t.Fatal(err)
	}
	if got.Outcome != "accepted" || got.Count != 3 {
		t.Errorf("decoded %+v", got)
	}
	if _, err := DecodeJSON[sample]([]byte(`{not json`)); err == nil {
		t.Error("expected decode error")
	}
}

func TestEncodeEvents(t *testing.T) {
	msgs, err := encodeEvents([]Event{
		{Key: "s1", Value: sample{Outcome: "capped", Count: 21}},
		{Key: "s2", Value: map[string]int{"n": 1}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 || string(msgs[0].Key) != "s1" {
		t.Fatalf("unexpected messages: %+v", msgs)
	}
	if string(msgs[0].Value) != `{"outcome":"capped","count":21}` {
		t.Errorf("value = %s", msgs[0].Value)
	}
	if _, err := encodeEvents([]Event{{Key: "bad", Value: func() {}}}); err == nil {
		t.Error("expected marshal error for func value")
	}
}
