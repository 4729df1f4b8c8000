package fetcher

import (
	"context"
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
)

// JSONStream is the output of DecodeJSONArray. Both channels are closed when
// processing completes.
type JSONStream[T any] struct {
	Items <-chan T
	Errs  <-chan error
}

// DecodeJSONArray decodes a JSON array of the form [{...},{...}] element by
// element, without buffering the whole document. Empty input yields no items.
func DecodeJSONArray[T any](ctx context.Context, r io.Reader) JSONStream[T] {
	outCh := make(chan T, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(errCh)
		defer close(outCh)

		decoder := json.NewDecoder(r)

		tok, err := decoder.Token()
		if err != nil {
			if err == io.EOF {
				return
			}
			errCh <- eris.Wrap(err, "json: read opening token")
			return
		}

		delim, ok := tok.(json.Delim)
		if !ok || delim != '[' {
			errCh <- eris.Errorf("json: expected '[', got %v", tok)
			return
		}

		for i := 0; decoder.More(); i++ {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "json: context cancelled")
				return
			}

			var item T
			if err := decoder.Decode(&item); err != nil {
				errCh <- eris.Wrapf(err, "json: decode element %d", i)
				return
			}

			select {
			case outCh <- item:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "json: context cancelled")
				return
			}
		}

		if _, err := decoder.Token(); err != nil {
			errCh <- eris.Wrap(err, "json: read closing token")
		}
	}()

	return JSONStream[T]{Items: outCh, Errs: errCh}
}
