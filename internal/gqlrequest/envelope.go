// Package gqlrequest decodes GraphQL-over-HTTP payloads and derives the
// operation metadata used for execution and logging.
package gqlrequest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
)

// ErrMalformed marks a payload that cannot be read as a GraphQL request.
// Handlers answer it with HTTP 400 and no GraphQL envelope.
var ErrMalformed = errors.New("malformed GraphQL request")

// Request is the GraphQL request envelope.
type Request struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName,omitempty"`
	Variables     map[string]any `json:"variables,omitempty"`

	// FileCount is the number of multipart file parts attached to Variables.
	FileCount int `json:"-"`
}

// Limits bounds what Decode accepts.
type Limits struct {
	// MaxFiles caps multipart file parts; zero disables uploads.
	MaxFiles int
	// MaxBodyBytes caps the request body; zero means unlimited.
	MaxBodyBytes int64
}

const (
	mediaTypeJSON      = "application/json"
	mediaTypeGraphQL   = "application/graphql"
	mediaTypeMultipart = "multipart/form-data"
)

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformed, fmt.Sprintf(format, args...))
}

// Decode reads a POST body as a GraphQL request. JSON is the default;
// application/graphql carries a bare document and multipart/form-data
// follows the GraphQL multipart request convention.
func Decode(w http.ResponseWriter, r *http.Request, limits Limits) (Request, error) {
	if r == nil || r.Body == nil {
		return Request{}, malformed("request has no body")
	}
	if limits.MaxBodyBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, limits.MaxBodyBytes)
	}

	mediaType := MediaType(r.Header.Get("Content-Type"))
	var (
		req Request
		err error
	)
	switch mediaType {
	case mediaTypeMultipart:
		req, err = decodeMultipart(r, limits.MaxFiles)
	case mediaTypeGraphQL:
		req, err = decodeDocument(r.Body)
	default:
		req, err = decodeJSON(r.Body)
	}
	if err != nil {
		return Request{}, err
	}
	if strings.TrimSpace(req.Query) == "" {
		return Request{}, malformed("missing query")
	}
	return req, nil
}

// MediaType returns the lower-cased media type of a Content-Type header.
func MediaType(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil || mediaType == "" {
		mediaType = strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0])
	}
	return strings.ToLower(mediaType)
}

func readBody(body io.Reader) ([]byte, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, malformed("body exceeds %d bytes", maxErr.Limit)
		}
		return nil, malformed("read body: %v", err)
	}
	return data, nil
}

func decodeDocument(body io.Reader) (Request, error) {
	data, err := readBody(body)
	if err != nil {
		return Request{}, err
	}
	return Request{Query: string(data)}, nil
}

func decodeJSON(body io.Reader) (Request, error) {
	data, err := readBody(body)
	if err != nil {
		return Request{}, err
	}
	return parseOperations(data)
}

// parseOperations decodes one JSON request object. Batched arrays are not
// supported.
func parseOperations(data []byte) (Request, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return Request{}, malformed("empty body")
	}
	if trimmed[0] == '[' {
		return Request{}, malformed("batched requests are not supported")
	}

	var payload struct {
		Query         *string         `json:"query"`
		OperationName *string         `json:"operationName"`
		Variables     json.RawMessage `json:"variables"`
	}
	if err := json.Unmarshal(trimmed, &payload); err != nil {
		return Request{}, malformed("invalid JSON: %v", err)
	}

	var req Request
	if payload.Query != nil {
		req.Query = *payload.Query
	}
	if payload.OperationName != nil {
		req.OperationName = *payload.OperationName
	}
	if vars := bytes.TrimSpace(payload.Variables); len(vars) > 0 && !bytes.Equal(vars, []byte("null")) {
		if err := json.Unmarshal(vars, &req.Variables); err != nil {
			return Request{}, malformed("variables must be an object")
		}
	}
	return req, nil
}
