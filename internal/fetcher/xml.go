package fetcher

import (
	"context"
	"encoding/xml"
	"io"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/htmlindex"
)

// XMLStream is the output of DecodeXMLElements. Both channels are closed when
// processing completes.
type XMLStream[T any] struct {
	Items <-chan T
	Errs  <-chan error
}

// DecodeXMLElements decodes every element with the given local name, at any
// depth, into T. Documents declaring a non-UTF-8 charset are transcoded.
func DecodeXMLElements[T any](ctx context.Context, r io.Reader, elementName string) XMLStream[T] {
	outCh := make(chan T, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(errCh)
		defer close(outCh)

		decoder := xml.NewDecoder(r)
		decoder.CharsetReader = charsetReader

		for i := 0; ; {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "xml: context cancelled")
				return
			}

			tok, err := decoder.Token()
			if err == io.EOF {
				return
			}
			if err != nil {
				errCh <- eris.Wrap(err, "xml: read token")
				return
			}

			se, ok := tok.(xml.StartElement)
			if !ok || se.Name.Local != elementName {
				continue
			}

			var item T
			if err := decoder.DecodeElement(&item, &se); err != nil {
				errCh <- eris.Wrapf(err, "xml: decode %s element %d", elementName, i)
				return
			}
			i++

			select {
			case outCh <- item:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "xml: context cancelled")
				return
			}
		}
	}()

	return XMLStream[T]{Items: outCh, Errs: errCh}
}

func charsetReader(charset string, input io.Reader) (io.Reader, error) {
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, eris.Wrapf(err, "xml: unsupported charset %q", charset)
	}
	return enc.NewDecoder().Reader(input), nil
}
