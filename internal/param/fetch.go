package param

import "context"

// Fetcher resolves secrets and lists by parameter path.
type Fetcher interface {
	Fetch(context.Context, string) (string, error)
	FetchAll(context.Context, string) ([]string, error)
}
