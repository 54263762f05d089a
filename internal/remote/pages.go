package remote

import (
	"context"
	"iter"
)

// Pages returns a lazy sequence over the result pages of q. Each iteration
// issues a fresh search, so the sequence is restartable. A search failure is
// yielded once and ends the sequence; breaking out of the loop stops further
// searches.
func Pages(ctx context.Context, s Store, q Query) iter.Seq2[Page, error] {
	return func(yield func(Page, error) bool) {
		var token string

		for {
			page, err := s.Search(ctx, q, token)
			if err != nil {
				yield(Page{}, err)
				return
			}

			if !yield(page, nil) {
				return
			}

			if page.NextPageToken == "" {
				return
			}

			token = page.NextPageToken
		}
	}
}

// All drains every page of q. On any failure it returns nil and the error;
// partial results are never returned.
func All(ctx context.Context, s Store, q Query) ([]Object, error) {
	var out []Object

	for page, err := range Pages(ctx, s, q) {
		if err != nil {
			return nil, err
		}

		out = append(out, page.Objects...)
	}

	return out, nil
}

// First returns the first page of q.
func First(ctx context.Context, s Store, q Query) (Page, error) {
	for page, err := range Pages(ctx, s, q) {
		return page, err
	}

	return Page{}, nil
}
