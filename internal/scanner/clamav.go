package scanner

import (
	"context"
	"fmt"
	"io"

	clamd "github.com/dutchcoders/go-clamd"
)

// Verdict is the scanner's answer for one content stream.
type Verdict string

const (
	VerdictClean    Verdict = "clean"
	VerdictInfected Verdict = "infected"
	VerdictError    Verdict = "error"
)

// Result carries the verdict and, for infections, the signature name.
type Result struct {
	Verdict     Verdict
	Description string
}

// Scanner is the narrow interface the scan pipeline consumes.
type Scanner interface {
	Scan(ctx context.Context, r io.Reader) (Result, error)
}

// ClamAV scans content streams against a clamd endpoint.
type ClamAV struct {
	client *clamd.Clamd
}

// NewClamAV builds a client for the given clamd address (e.g. tcp://host:3310).
func NewClamAV(address string) *ClamAV {
	return &ClamAV{client: clamd.NewClamd(address)}
}

// Ping verifies the daemon is reachable.
func (s *ClamAV) Ping() error {
	return s.client.Ping()
}

// Scan streams the content to clamd and folds the responses into one verdict.
// Cancellation of the context aborts the stream; any response other than an
// explicit OK or FOUND is treated as an error, never as cleanliness.
func (s *ClamAV) Scan(ctx context.Context, r io.Reader) (Result, error) {
	abort := make(chan bool, 1)
	done := make(chan struct{})
	defer close(done)

	go func() {
		select {
		case <-ctx.Done():
			abort <- true
		case <-done:
		}
	}()

	responses, err := s.client.ScanStream(r, abort)
	if err != nil {
		return Result{Verdict: VerdictError}, fmt.Errorf("clamd scan stream: %w", err)
	}

	result := Result{Verdict: VerdictClean}
	for res := range responses {
		if ctx.Err() != nil {
			return Result{Verdict: VerdictError}, ctx.Err()
		}
		switch res.Status {
		case clamd.RES_OK:
		case clamd.RES_FOUND:
			return Result{Verdict: VerdictInfected, Description: res.Description}, nil
		default:
			return Result{Verdict: VerdictError, Description: res.Description},
				fmt.Errorf("clamd returned %s: %s", res.Status, res.Description)
		}
	}
	return result, nil
}
