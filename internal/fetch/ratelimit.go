package fetch

import (
	"context"
	"io"

	"golang.org/x/time/rate"
)

// newLimiter returns a limiter for bytesPerSecond, or nil for unlimited.
// The burst covers one copy buffer so reads are never split below it.
func newLimiter(bytesPerSecond int64) *rate.Limiter {
	if bytesPerSecond <= 0 {
		return nil
	}
	burst := int(bytesPerSecond)
	if burst < copyBufferSize {
		burst = copyBufferSize
	}
	return rate.NewLimiter(rate.Limit(bytesPerSecond), burst)
}

// throttledReader waits on a shared limiter for every chunk it returns, so
// all transfers together stay under the configured rate.
type throttledReader struct {
	ctx     context.Context
	r       io.Reader
	limiter *rate.Limiter
}

func throttle(ctx context.Context, r io.Reader, limiter *rate.Limiter) io.Reader {
	if limiter == nil {
		return r
	}
	return &throttledReader{ctx: ctx, r: r, limiter: limiter}
}

func (t *throttledReader) Read(p []byte) (int, error) {
	if burst := t.limiter.Burst(); len(p) > burst {
		p = p[:burst]
	}
	n, err := t.r.Read(p)
	if n > 0 {
		if waitErr := t.limiter.WaitN(t.ctx, n); waitErr != nil {
			return n, waitErr
		}
	}
	return n, err
}
