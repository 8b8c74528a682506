package audio

import (
	"context"
	"testing"
	"time"
)

func TestNewSource(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	out, errc := NewSource(ctx, &Config{
		BlockSize: 256, Channels: 1, SampleRate: 44100,
	})
	n := 0
	for {
		select {
		case in, ok := <-out:
			if !ok {
				select {
				case err := <-errc:
					t.Skip("no input device:", err)
				default:
				}
				if n < 10 {
					t.Fatal("Expected at least 10 reads from source, got", n)
				}
				return
			}
			if len(in) != 256 {
				t.Fatal("unexpected block size", len(in))
			}
			n++
		case <-ctx.Done():
			if n < 10 {
				t.Fatal("Expected at least 10 reads from source, got", n)
			}
			return
		}
	}
}
