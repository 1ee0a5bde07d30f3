package model

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"golang.org/x/sync/errgroup"
)

// Fetcher reads model.json and weight shards from <base>/<name>/.
type Fetcher struct {
	BaseURL string
	Client  *http.Client
}

func NewFetcher(baseURL string, client *http.Client) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &Fetcher{BaseURL: baseURL, Client: client}
}

// Descriptor fetches and parses <base>/<name>/model.json.
func (f *Fetcher) Descriptor(ctx context.Context, name string) (*Descriptor, error) {
	data, err := f.get(ctx, name, "model.json")
	if err != nil {
		return nil, err
	}
	return ParseDescriptor(data)
}

// Shards fetches all shard files in parallel. The result is indexed like
// paths; the first failure cancels the rest.
func (f *Fetcher) Shards(ctx context.Context, name string, paths []string) ([][]byte, error) {
	bufs := make([][]byte, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	for i, p := range paths {
		g.Go(func() error {
			data, err := f.get(ctx, name, p)
			if err != nil {
				return err
			}
			bufs[i] = data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return bufs, nil
}

func (f *Fetcher) get(ctx context.Context, name, file string) ([]byte, error) {
	u, err := url.JoinPath(f.BaseURL, name, file)
	if err != nil {
		return nil, fmt.Errorf("bad model URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", u, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("GET %s: %s", u, resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", u, err)
	}
	return data, nil
}
