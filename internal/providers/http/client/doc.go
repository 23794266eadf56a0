// Package client provides the outbound HTTP client used for auxiliary
// downloads such as content blocker filter lists.
//
// Built on go-resty/resty with a go-retryablehttp transport:
//   - Automatic retries with exponential backoff
//   - Connection pooling and keep-alive
//   - Context-based cancellation
//   - Rate limiting per client instance
//
// Example Usage:
//
//	c := client.NewClient(client.DefaultOptions())
//	body, err := c.Get(ctx, "https://easylist.to/easylist/easylist.txt")
package client
