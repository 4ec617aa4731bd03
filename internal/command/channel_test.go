/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package command

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func recv(t *testing.T, ch <-chan Command) Command {
	t.Helper()
	select {
	case cmd, ok := <-ch:
		if !ok {
			t.Fatal("channel closed unexpectedly")
		}
		return cmd
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for command")
	}
	return Command{}
}

func assertSilent(t *testing.T, ch <-chan Command) {
	t.Helper()
	select {
	case cmd := <-ch:
		t.Fatalf("expected no command, got seq=%d playlist=%s", cmd.Seq, cmd.PlaylistID)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSubscribeYieldsNothingBeforeFirstPublish(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := hub.Subscribe(ctx, "p1", 0)
	assertSilent(t, ch)

	hub.Publish("p1", "pl1", time.Now().Add(3*time.Second))
	got := recv(t, ch)
	if got.PlaylistID != "pl1" {
		t.Fatalf("expected pl1, got %s", got.PlaylistID)
	}
}

func TestLateSubscriberReplaysOnlyLatest(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	hub.Publish("p1", "pl1", time.Now())
	hub.Publish("p1", "pl2", time.Now())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := hub.Subscribe(ctx, "p1", 0)
	got := recv(t, ch)
	if got.PlaylistID != "pl2" {
		t.Fatalf("expected replay of latest (pl2), got %s", got.PlaylistID)
	}
	assertSilent(t, ch)
}

func TestSubscriberBetweenPublishesSeesBoth(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	hub.Publish("p1", "pl1", time.Now())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := hub.Subscribe(ctx, "p1", 0)
	first := recv(t, ch)
	if first.PlaylistID != "pl1" {
		t.Fatalf("expected replay of pl1, got %s", first.PlaylistID)
	}

	hub.Publish("p1", "pl2", time.Now())
	second := recv(t, ch)
	if second.PlaylistID != "pl2" {
		t.Fatalf("expected live pl2, got %s", second.PlaylistID)
	}
	if second.Seq <= first.Seq {
		t.Fatalf("sequence must increase: %d then %d", first.Seq, second.Seq)
	}
	assertSilent(t, ch)
}

func TestReplayIgnoresLastSeenSeq(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	cmd := hub.Publish("p1", "pl1", time.Now())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Presenting the already-seen sequence still gets the replay; duplicate
	// delivery is tolerated by contract.
	ch := hub.Subscribe(ctx, "p1", cmd.Seq)
	got := recv(t, ch)
	if got.Seq != cmd.Seq {
		t.Fatalf("expected replay of seq %d, got %d", cmd.Seq, got.Seq)
	}
}

func TestPlayersAreIndependent(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	chA := hub.Subscribe(ctx, "a", 0)
	chB := hub.Subscribe(ctx, "b", 0)

	hub.Publish("a", "pl1", time.Now())
	got := recv(t, chA)
	if got.PlayerID != "a" {
		t.Fatalf("expected command for a, got %s", got.PlayerID)
	}
	assertSilent(t, chB)

	if _, ok := hub.Current("b"); ok {
		t.Fatal("player b must have no current command")
	}
}

func TestDetachDoesNotDisturbOthers(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	ctx1, cancel1 := context.WithCancel(context.Background())
	ctx2, cancel2 := context.WithCancel(context.Background())
	defer cancel2()

	ch1 := hub.Subscribe(ctx1, "p1", 0)
	ch2 := hub.Subscribe(ctx2, "p1", 0)

	cancel1()
	// Wait for the detach goroutine to close ch1.
	for range ch1 {
	}

	hub.Publish("p1", "pl1", time.Now())
	got := recv(t, ch2)
	if got.PlaylistID != "pl1" {
		t.Fatalf("surviving subscriber missed command, got %s", got.PlaylistID)
	}

	if _, ok := hub.Current("p1"); !ok {
		t.Fatal("current command must survive subscriber detach")
	}
}

func TestPublishWithNoSubscribersStoresCurrent(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	hub.Publish("ghost", "pl1", time.Now())

	cur, ok := hub.Current("ghost")
	if !ok {
		t.Fatal("expected stored current command")
	}
	if cur.PlaylistID != "pl1" {
		t.Fatalf("expected pl1, got %s", cur.PlaylistID)
	}
}

func TestConcurrentSubscribeAndPublishNeverMissesCommand(t *testing.T) {
	hub := NewHub(zerolog.Nop())

	const rounds = 200
	for i := 0; i < rounds; i++ {
		ctx, cancel := context.WithCancel(context.Background())

		var wg sync.WaitGroup
		var ch <-chan Command
		wg.Add(2)
		go func() {
			defer wg.Done()
			ch = hub.Subscribe(ctx, "race", 0)
		}()
		go func() {
			defer wg.Done()
			hub.Publish("race", "pl", time.Now())
		}()
		wg.Wait()

		// The subscriber must observe the command at least once, via replay
		// or the live stream.
		recv(t, ch)
		cancel()
	}
}

func TestSlowSubscriberKeepsLatest(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := hub.Subscribe(ctx, "p1", 0)

	// Flood well past the buffer without draining.
	var last Command
	for i := 0; i < subscriberBuffer*3; i++ {
		last = hub.Publish("p1", "pl", time.Now())
	}

	var got Command
	for {
		select {
		case cmd := <-ch:
			got = cmd
			continue
		case <-time.After(100 * time.Millisecond):
		}
		break
	}
	if got.Seq != last.Seq {
		t.Fatalf("expected latest seq %d to survive overflow, got %d", last.Seq, got.Seq)
	}
}

func TestInjectDoesNotForward(t *testing.T) {
	hub := NewHub(zerolog.Nop())

	forwarded := 0
	hub.SetForwarder(func(Command) { forwarded++ })

	hub.Inject(Command{PlayerID: "p1", PlaylistID: "pl1", Seq: 7, IssuedAt: time.Now(), StartAt: time.Now()})
	if forwarded != 0 {
		t.Fatal("injected commands must not be re-forwarded")
	}

	cur, ok := hub.Current("p1")
	if !ok || cur.Seq != 7 {
		t.Fatalf("expected injected command stored, got %+v ok=%v", cur, ok)
	}

	// A later local publish must supersede the injected sequence.
	cmd := hub.Publish("p1", "pl2", time.Now())
	if cmd.Seq <= 7 {
		t.Fatalf("local seq must advance past injected seq, got %d", cmd.Seq)
	}
	if forwarded != 1 {
		t.Fatalf("local publish must forward once, got %d", forwarded)
	}
}

func TestMonitorSeesAllPlayers(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mon := hub.Monitor(ctx)
	hub.Publish("a", "pl1", time.Now())
	hub.Publish("b", "pl2", time.Now())

	seen := map[string]bool{}
	seen[recv(t, mon).PlayerID] = true
	seen[recv(t, mon).PlayerID] = true
	if !seen["a"] || !seen["b"] {
		t.Fatalf("monitor missed players: %v", seen)
	}
}
