// Package retry provides backoff and retry logic for transient failures,
// mainly the text-to-image requests made while producing frames.
//
// Basic usage:
//
//	cfg := retry.FromSettings(appCfg.Retry, appCfg.RateLimit, logger.GetLogger())
//	img, err := retry.DoWithResult(ctx, func(ctx context.Context) ([]byte, error) {
//		return client.Generate(ctx, req)
//	}, cfg)
//
// Errors from ytshorts/pkg/errors are classified by type: network, rate
// limit and server errors are retried, while auth, not found, parsing,
// encoder and filesystem errors fail immediately. Context cancellation is
// never retried and interrupts any pending backoff wait.
package retry
