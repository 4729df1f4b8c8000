package query

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/zipcode-cli/internal/model"
)

// QueryExecutionError wraps a failure raised while executing a mode, such as a
// malformed numeric parameter or record field.
type QueryExecutionError struct {
	Mode Mode
	Err  error
}

func (e *QueryExecutionError) Error() string {
	return fmt.Sprintf("query: %s mode: %v", e.Mode, e.Err)
}

func (e *QueryExecutionError) Unwrap() error {
	return e.Err
}

// ErrorResponse converts any failure into the 400 response shape. The message is
// the error's trace when it has one, else the generic fallback text.
func ErrorResponse(err error) model.Response {
	if err == nil || strings.TrimSpace(err.Error()) == "" {
		return model.Failure("")
	}
	return model.Failure(eris.ToString(err, true))
}
