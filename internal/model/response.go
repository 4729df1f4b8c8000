package model

import "net/http"

// FallbackErrorMessage is reported when a failure carries no description.
const FallbackErrorMessage = "Try again later"

// Response is the result of a single lookup invocation.
//
// Data holds a []Record for the substring and filter modes, a Match for the
// nearest-neighbor mode, a []Match for radius searches, or nil when the
// nearest-neighbor mode ran against an empty dataset.
type Response struct {
	StatusCode   int    `json:"statusCode" yaml:"statusCode"`
	Data         any    `json:"data,omitempty" yaml:"data,omitempty"`
	ErrorMessage string `json:"errorMessage,omitempty" yaml:"errorMessage,omitempty"`
}

// OK builds a 200 response carrying data.
func OK(data any) Response {
	return Response{StatusCode: http.StatusOK, Data: data}
}

// Failure builds a 400 response with an empty record set.
func Failure(message string) Response {
	if message == "" {
		message = FallbackErrorMessage
	}
	return Response{
		StatusCode:   http.StatusBadRequest,
		Data:         []Record{},
		ErrorMessage: message,
	}
}

// Matches flattens the response payload into distance-annotated rows for
// tabular sinks. Records from non-geo modes carry a zero distance.
func (r Response) Matches() []Match {
	switch d := r.Data.(type) {
	case []Record:
		out := make([]Match, len(d))
		for i, rec := range d {
			out[i] = Match{Record: rec}
		}
		return out
	case []Match:
		return d
	case Match:
		return []Match{d}
	case *Match:
		if d == nil {
			return nil
		}
		return []Match{*d}
	default:
		return nil
	}
}
