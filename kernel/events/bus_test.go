package events

import (
	"io"
	"sync"
	"testing"

	"github.com/atriumweb/atrium/kernel/utils"
)

func testBus() *Bus {
	return NewBus(utils.NewLogger(utils.LoggerConfig{Level: utils.FATAL, Component: "test", Output: io.Discard}))
}

func TestBus_DeliversInSubscriptionOrder(t *testing.T) {
	bus := testBus()

	var mu sync.Mutex
	var order []int
	for i := 0; i < 5; i++ {
		n := i
		bus.Subscribe(func(Event) {
			mu.Lock()
			order = append(order, n)
			mu.Unlock()
		})
	}

	bus.Publish(Event{Type: LevelChanged})

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 5 {
		t.Fatalf("expected 5 deliveries, got %d", len(order))
	}
	for i, n := range order {
		if n != i {
			t.Fatalf("out of order delivery: %v", order)
		}
	}
}

func TestBus_PanicIsolation(t *testing.T) {
	bus := testBus()

	bus.Subscribe(func(Event) { panic("handler exploded") })

	delivered := false
	bus.Subscribe(func(Event) { delivered = true })

	bus.Publish(Event{Type: LevelChanged})

	if !delivered {
		t.Error("handler after a panicking one was not invoked")
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := testBus()

	count := 0
	id := bus.Subscribe(func(Event) { count++ })

	bus.Publish(Event{Type: LevelChanged})
	if !bus.Unsubscribe(id) {
		t.Fatal("Unsubscribe returned false for a live subscription")
	}
	bus.Publish(Event{Type: LevelChanged})

	if count != 1 {
		t.Errorf("expected 1 delivery, got %d", count)
	}
	if bus.Unsubscribe(id) {
		t.Error("Unsubscribe returned true for a removed subscription")
	}
	if bus.Unsubscribe("sub_unknown") {
		t.Error("Unsubscribe returned true for an unknown id")
	}
}

func TestBus_TopicFiltering(t *testing.T) {
	bus := testBus()

	counts := map[string]int{}
	var mu sync.Mutex
	record := func(name string) Handler {
		return func(Event) {
			mu.Lock()
			counts[name]++
			mu.Unlock()
		}
	}

	bus.Subscribe(record("exact"), "perf.level_changed")
	bus.Subscribe(record("wildcard"), "*")
	bus.Subscribe(record("prefix"), "perf.*")
	bus.Subscribe(record("all")) // no topics means all events
	bus.Subscribe(record("other"), "voice.activity")

	bus.Publish(Event{Type: LevelChanged})
	bus.Publish(Event{Type: BoostStarted})
	bus.Publish(Event{Type: NetState})

	mu.Lock()
	defer mu.Unlock()
	want := map[string]int{
		"exact":    1, // level_changed only
		"wildcard": 3,
		"prefix":   2, // the two perf.* events
		"all":      3,
		"other":    0,
	}
	for name, n := range want {
		if counts[name] != n {
			t.Errorf("%s: got %d deliveries, want %d", name, counts[name], n)
		}
	}
}

func TestBus_AssignsIDAndTimestamp(t *testing.T) {
	bus := testBus()

	var got Event
	bus.Subscribe(func(evt Event) { got = evt })

	bus.Publish(Event{Type: VoiceActivity, Voice: &VoicePayload{Speaking: true}})

	if got.ID == "" {
		t.Error("published event has no id")
	}
	if got.Timestamp == 0 {
		t.Error("published event has no timestamp")
	}
	if got.Voice == nil || !got.Voice.Speaking {
		t.Error("payload not carried through")
	}
}

func TestTopicMatches(t *testing.T) {
	cases := []struct {
		patterns []string
		topic    string
		want     bool
	}{
		{nil, "perf.level_changed", true},
		{[]string{"*"}, "anything", true},
		{[]string{"perf.level_changed"}, "perf.level_changed", true},
		{[]string{"perf.level_changed"}, "perf.boost_started", false},
		{[]string{"perf.*"}, "perf.boost_started", true},
		{[]string{"perf.*"}, "voice.activity", false},
		{[]string{"perf.*"}, "perf", false},
	}

	for _, tc := range cases {
		topics := make(map[string]struct{}, len(tc.patterns))
		for _, p := range tc.patterns {
			topics[p] = struct{}{}
		}
		if got := topicMatches(topics, tc.topic); got != tc.want {
			t.Errorf("topicMatches(%v, %q) = %v, want %v", tc.patterns, tc.topic, got, tc.want)
		}
	}
}
