package objectstore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// flakyStore fails the first `failures` Put calls.
type flakyStore struct {
	*MemoryStore
	mu       sync.Mutex
	failures int
	puts     int
}

func (f *flakyStore) Put(ctx context.Context, data []byte, key, contentType string) error {
	f.mu.Lock()
	f.puts++
	fail := f.puts <= f.failures
	f.mu.Unlock()
	if fail {
		return errors.New("connection reset")
	}
	return f.MemoryStore.Put(ctx, data, key, contentType)
}

func TestUploadSucceedsOnLastAttempt(t *testing.T) {
	store := &flakyStore{MemoryStore: NewMemoryStore("bucket"), failures: 2}
	var delays []time.Duration
	client := NewClient(store, Options{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		OnRetry:     func(_ error, d time.Duration) { delays = append(delays, d) },
	})

	art, err := client.Upload(context.Background(), []byte("png"), "fest2fun/EVENT_1/qrImages/INV0001.png", "image/png")
	if err != nil {
		t.Fatalf("Upload error = %v", err)
	}
	if store.puts != 3 {
		t.Fatalf("attempts = %d, want 3", store.puts)
	}
	if len(delays) != 2 || delays[0] != time.Millisecond || delays[1] != 2*time.Millisecond {
		t.Fatalf("delays = %v, want [1ms 2ms]", delays)
	}
	if art.URI != "s3://bucket/fest2fun/EVENT_1/qrImages/INV0001.png" {
		t.Fatalf("URI = %q", art.URI)
	}
	if ct, _ := store.ContentType(art.Key); ct != "image/png" {
		t.Fatalf("content type = %q", ct)
	}
}

func TestUploadGivesUpAfterMaxAttempts(t *testing.T) {
	store := &flakyStore{MemoryStore: NewMemoryStore("bucket"), failures: 5}
	client := NewClient(store, Options{MaxAttempts: 3, BaseDelay: time.Millisecond})

	_, err := client.Upload(context.Background(), []byte("x"), "k", "text/plain")
	if !errors.Is(err, ErrUploadFailed) {
		t.Fatalf("Upload error = %v, want ErrUploadFailed", err)
	}
	if store.puts != 3 {
		t.Fatalf("attempts = %d, want 3", store.puts)
	}
	if store.Len() != 0 {
		t.Fatalf("stored objects = %d, want 0", store.Len())
	}
}

func TestFetchReadsBackUploadedObject(t *testing.T) {
	client := NewClient(NewMemoryStore("fest2fun-invites"), Options{})
	ctx := context.Background()
	art, err := client.Upload(ctx, []byte("<html></html>"), "fest2fun/EVENT_1/emailHTML/INV0001.html", "text/html")
	if err != nil {
		t.Fatalf("Upload error = %v", err)
	}
	got, err := client.Fetch(ctx, art.URL)
	if err != nil {
		t.Fatalf("Fetch error = %v", err)
	}
	if string(got) != "<html></html>" {
		t.Fatalf("Fetch = %q", got)
	}

	if _, err := client.Fetch(ctx, "https://fest2fun-invites.memory.local/missing.html"); !errors.Is(err, ErrObjectNotFound) {
		t.Fatalf("Fetch(missing) error = %v, want ErrObjectNotFound", err)
	}
}

func TestKeyFromURL(t *testing.T) {
	tests := []struct {
		url, bucket, want string
	}{
		{"https://b.s3.eu-west-1.amazonaws.com/fest2fun/E/qrImages/INV0001.png?X-Amz-Expires=604800", "b", "fest2fun/E/qrImages/INV0001.png"},
		{"http://localhost:9000/b/fest2fun/E/emailHTML/INV0002.html?X-Amz-Signature=abc", "b", "fest2fun/E/emailHTML/INV0002.html"},
		{"s3://b/fest2fun/E/x.png", "b", "fest2fun/E/x.png"},
	}
	for _, tt := range tests {
		got, err := KeyFromURL(tt.url, tt.bucket)
		if err != nil || got != tt.want {
			t.Fatalf("KeyFromURL(%q) = (%q, %v), want %q", tt.url, got, err, tt.want)
		}
	}
	if _, err := KeyFromURL("https://b.host/", "b"); !errors.Is(err, ErrInvalidURL) {
		t.Fatalf("KeyFromURL(no key) error = %v, want ErrInvalidURL", err)
	}
}

func TestMaxRetryIntervalIsCapped(t *testing.T) {
	tests := []struct {
		name     string
		base     time.Duration
		attempts uint
		want     time.Duration
	}{
		{"default budget", 100 * time.Millisecond, 3, 800 * time.Millisecond},
		{"single attempt", 100 * time.Millisecond, 1, 200 * time.Millisecond},
		{"large budget", 100 * time.Millisecond, 200, MaxRetryDelay},
		{"shift past int64", time.Second, 64, MaxRetryDelay},
		{"base above cap", 2 * time.Minute, 5, 2 * time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := maxRetryInterval(tt.base, tt.attempts); got != tt.want {
				t.Fatalf("maxRetryInterval(%v, %d) = %v, want %v", tt.base, tt.attempts, got, tt.want)
			}
		})
	}
}

func TestBackOffGrowsWithLargeAttemptBudget(t *testing.T) {
	c := NewClient(NewMemoryStore("b"), Options{MaxAttempts: 100, BaseDelay: 100 * time.Millisecond})
	b := c.newBackOff()
	prev := time.Duration(0)
	for i := 0; i < 20; i++ {
		next := b.NextBackOff()
		if next <= 0 || next < prev || next > MaxRetryDelay {
			t.Fatalf("delay %d = %v after %v, want growing up to %v", i, next, prev, MaxRetryDelay)
		}
		prev = next
	}
	if prev != MaxRetryDelay {
		t.Fatalf("delay after 20 steps = %v, want the cap %v", prev, MaxRetryDelay)
	}
}
