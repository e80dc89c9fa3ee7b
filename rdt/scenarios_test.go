package rdt

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"
)

// runPair wires a Sender and Receiver across a lossyConn pair and
// waits for both to finish, returning the receiver's output and
// either side's error.
func runPair(t *testing.T, transform transformFunc, input string, tune func(*Sender)) (string, error) {
	t.Helper()
	a, b := newLossyPair(transform)
	defer a.Close()
	defer b.Close()

	sender := NewSender(a, memAddr("b"), DefaultWindowSize, nil)
	sender.Retry = 30 * time.Millisecond
	sender.LinkDelay = 120 * time.Millisecond
	if tune != nil {
		tune(sender)
	}
	receiver := NewReceiver(b, nil, DefaultBufferSize, nil)

	var out bytes.Buffer
	var wg sync.WaitGroup
	var senderErr, receiverErr error
	wg.Add(2)
	go func() {
		defer wg.Done()
		receiverErr = receiver.Run(&out)
	}()
	go func() {
		defer wg.Done()
		senderErr = sender.Run(strings.NewReader(input))
	}()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("sender/receiver pair did not terminate in time")
	}
	if senderErr != nil {
		return out.String(), senderErr
	}
	return out.String(), receiverErr
}

// S1: a lossless channel delivers the lines in order, verbatim.
func TestScenarioCleanPath(t *testing.T) {
	out, err := runPair(t, nil, "alpha\nbeta\ngamma\n", nil)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if out != "alpha\nbeta\ngamma\n" {
		t.Errorf("output = %q, want %q", out, "alpha\nbeta\ngamma\n")
	}
}

// S2: the channel drops the seq=1 data packet exactly once; the
// sender's retransmit timer must recover it.
func TestScenarioDropOnce(t *testing.T) {
	var mu sync.Mutex
	dropped := false
	transform := func(from string, data []byte) [][]byte {
		if from == "a" && flagsOf(data) == 0 {
			mu.Lock()
			defer mu.Unlock()
			if seqOf(data) == 1 && !dropped {
				dropped = true
				return nil
			}
		}
		return [][]byte{data}
	}
	out, err := runPair(t, transform, "a\nb\nc\n", nil)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if out != "a\nb\nc\n" {
		t.Errorf("output = %q, want %q", out, "a\nb\nc\n")
	}
}

// S3: the channel reorders seq=2 ahead of seq=1; the receiver must
// buffer seq=2 and emit in order once seq=1 arrives.
func TestScenarioReorder(t *testing.T) {
	var mu sync.Mutex
	var held []byte
	transform := func(from string, data []byte) [][]byte {
		if from == "a" && flagsOf(data) == 0 {
			mu.Lock()
			defer mu.Unlock()
			switch seqOf(data) {
			case 1:
				if held == nil {
					held = data
					return nil
				}
			case 2:
				if held != nil {
					reordered := [][]byte{data, held}
					held = nil
					return reordered
				}
			}
		}
		return [][]byte{data}
	}
	out, err := runPair(t, transform, "a\nb\nc\n", nil)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if out != "a\nb\nc\n" {
		t.Errorf("output = %q, want %q", out, "a\nb\nc\n")
	}
}

// S4: the channel flips a header byte of seq=0 once; the receiver
// must reject it on checksum and NACK, and the sender must resend.
func TestScenarioCorruption(t *testing.T) {
	var mu sync.Mutex
	corrupted := false
	transform := func(from string, data []byte) [][]byte {
		if from == "a" && flagsOf(data) == 0 && seqOf(data) == 0 {
			mu.Lock()
			defer mu.Unlock()
			if !corrupted {
				corrupted = true
				bad := append([]byte(nil), data...)
				bad[5] ^= 0xFF
				return [][]byte{bad}
			}
		}
		return [][]byte{data}
	}
	out, err := runPair(t, transform, "a\nb\nc\n", nil)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if out != "a\nb\nc\n" {
		t.Errorf("output = %q, want %q", out, "a\nb\nc\n")
	}
}

// S5: a single oversize line is truncated to 80 bytes before framing.
func TestScenarioOversizeLine(t *testing.T) {
	line := strings.Repeat("x", 200) + "\n"
	out, err := runPair(t, nil, line, nil)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	want := strings.Repeat("x", 80)
	if out != want {
		t.Errorf("output = %q (len %d), want 80 x's", out, len(out))
	}
}

// S6: the channel drops 4 of the 5 END duplicates; the receiver must
// still terminate on the one that gets through, and the sender
// completes its burst regardless of drops.
func TestScenarioTeardownRobustness(t *testing.T) {
	var mu sync.Mutex
	endSeen := 0
	transform := func(from string, data []byte) [][]byte {
		if from == "a" && flagsOf(data)&0x04 != 0 {
			mu.Lock()
			defer mu.Unlock()
			endSeen++
			if endSeen <= 4 {
				return nil
			}
		}
		return [][]byte{data}
	}
	out, err := runPair(t, transform, "a\nb\n", nil)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if out != "a\nb\n" {
		t.Errorf("output = %q, want %q", out, "a\nb\n")
	}
}

// MaxRetries bounds how long the sender will keep resending a slot
// whose peer has vanished entirely.
func TestMaxRetriesGivesUp(t *testing.T) {
	transform := func(from string, data []byte) [][]byte {
		if from == "a" {
			return nil // the receiver never sees anything
		}
		return [][]byte{data}
	}
	a, b := newLossyPair(transform)
	defer a.Close()
	defer b.Close()
	_ = b

	sender := NewSender(a, memAddr("b"), DefaultWindowSize, nil)
	sender.Retry = 10 * time.Millisecond
	sender.LinkDelay = 20 * time.Millisecond
	sender.MaxRetries = 3

	done := make(chan error, 1)
	go func() { done <- sender.Run(strings.NewReader("only one line\n")) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("unexpected error: %s", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("sender did not give up and terminate in time")
	}
}
