package fetch

import (
	"context"
	"errors"
	"time"

	"github.com/John-Robertt/domainrouter-go/internal/logging"
)

// RetryPolicy bounds FetchWithRetry.
type RetryPolicy struct {
	Attempts int           // default 3
	Wait     time.Duration // pause between attempts, default 5s
	Options  Options
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.Attempts <= 0 {
		p.Attempts = 3
	}
	if p.Wait < 0 {
		p.Wait = 0
	} else if p.Wait == 0 {
		p.Wait = 5 * time.Second
	}
	return p
}

// FetchWithRetry calls FetchTextWithOptions until it succeeds, the error is
// not retryable, the attempts run out or ctx is done. The last error is
// returned.
func FetchWithRetry(ctx context.Context, kind Kind, rawURL string, p RetryPolicy) (string, error) {
	p = p.withDefaults()
	logger := logging.Get("fetch")

	var lastErr error
	for attempt := 1; attempt <= p.Attempts; attempt++ {
		text, err := FetchTextWithOptions(ctx, kind, rawURL, p.Options)
		if err == nil {
			logger.Debug().Str("url", rawURL).Int("attempt", attempt).Int("bytes", len(text)).Msg("fetched")
			return text, nil
		}
		lastErr = err

		var fe *FetchError
		if errors.As(err, &fe) && !fe.Retryable() {
			return "", err
		}
		if attempt == p.Attempts {
			break
		}
		logger.Warn().Err(err).Str("url", rawURL).Int("attempt", attempt).Dur("wait", p.Wait).Msg("fetch failed, retrying")

		timer := time.NewTimer(p.Wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", errors.Join(lastErr, ctx.Err())
		case <-timer.C:
		}
	}
	return "", lastErr
}
