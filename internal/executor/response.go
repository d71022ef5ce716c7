package executor

import (
	"encoding/json"

	"github.com/graphql-go/graphql/gqlerrors"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Response is the result of one request. Data is present only once
// execution started; errors from parsing or validation leave it out.
type Response struct {
	Data   any
	Errors []gqlerrors.FormattedError

	executed bool
	canceled bool
}

// Executed reports whether the operation reached execution.
func (r *Response) Executed() bool { return r.executed }

// Canceled reports whether the caller went away before execution finished.
func (r *Response) Canceled() bool { return r.canceled }

// Err returns ErrCanceled for canceled responses and nil otherwise.
func (r *Response) Err() error {
	if r.canceled {
		return ErrCanceled
	}
	return nil
}

// MarshalJSON writes "data" (possibly null) when execution ran, followed by
// "errors" when there are any.
func (r *Response) MarshalJSON() ([]byte, error) {
	out := orderedmap.New[string, any]()
	if r.executed {
		out.Set("data", r.Data)
	}
	if len(r.Errors) > 0 {
		out.Set("errors", r.Errors)
	}
	return json.Marshal(out)
}
