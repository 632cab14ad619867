// Package retry provides the retry engine of the HTTP client.
//
// Key Features:
//
// 1. Retry policy:
//   - Per-request override (UseGlobalSettings, EnableRetry, DisableRetry)
//   - Retryable status codes and methods
//   - Optional retry of operation timeouts
//
// 2. Backoff:
//   - Exponential backoff: BaseInterval * BackoffFactor^attempt
//   - Random jitter below 100ms
//   - Retry-After hints, as seconds or HTTP dates
//   - Cumulative wait budget per request
//
// 3. Executor:
//   - Exactly one transport call per attempt
//   - Sleeps on an injectable quartz clock
//   - Context cancellation between attempts
//   - Retry statistics and event notification
//
// Basic usage example:
//
//	cfg := retry.DefaultConfig()
//	cfg.Enabled = true
//
//	executor := retry.NewExecutor(cfg,
//		retry.WithEventHandler(retry.NewLogEventHandler(logger)),
//	)
//
//	result, err := executor.Execute(ctx, "GET", types.UseGlobalSettings,
//		func(ctx context.Context) *types.AttemptOutcome {
//			return transport.Execute(ctx, opts)
//		})
//
// The executor never turns an exhausted budget into an error: the outcome of
// the last attempt is returned as is.
package retry
