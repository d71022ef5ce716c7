package gqlrequest

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"users-graphql/internal/scalars"
)

// decodeMultipart implements the GraphQL multipart request convention: an
// "operations" field, a "map" field naming where each file goes, then one
// part per file.
func decodeMultipart(r *http.Request, maxFiles int) (Request, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return Request{}, malformed("invalid multipart body: %v", err)
	}

	var (
		req      Request
		haveOps  bool
		fileMap  map[string][]string
		attached int
	)
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Request{}, malformed("invalid multipart body: %v", err)
		}

		name := part.FormName()
		switch {
		case name == "operations":
			data, err := readBody(part)
			if err != nil {
				return Request{}, err
			}
			if req, err = parseOperations(data); err != nil {
				return Request{}, err
			}
			haveOps = true
		case name == "map":
			if !haveOps {
				return Request{}, malformed(`"map" must follow "operations"`)
			}
			data, err := readBody(part)
			if err != nil {
				return Request{}, err
			}
			if err := json.Unmarshal(data, &fileMap); err != nil {
				return Request{}, malformed("invalid map: %v", err)
			}
			if len(fileMap) > maxFiles {
				return Request{}, malformed("too many files: %d (max %d)", len(fileMap), maxFiles)
			}
		default:
			if fileMap == nil {
				return Request{}, malformed("file part %q before map", name)
			}
			paths, ok := fileMap[name]
			if !ok {
				return Request{}, malformed("file part %q is not in map", name)
			}
			content, err := readBody(part)
			if err != nil {
				return Request{}, err
			}
			file := &scalars.File{
				Filename:    part.FileName(),
				ContentType: part.Header.Get("Content-Type"),
				Size:        int64(len(content)),
				Content:     content,
			}
			for _, path := range paths {
				if err := attachFile(&req, path, file); err != nil {
					return Request{}, err
				}
			}
			attached++
		}
		_ = part.Close()
	}

	if !haveOps {
		return Request{}, malformed(`missing "operations" field`)
	}
	if fileMap == nil {
		return Request{}, malformed(`missing "map" field`)
	}
	if attached != len(fileMap) {
		return Request{}, malformed("map names %d files, got %d", len(fileMap), attached)
	}
	req.FileCount = attached
	return req, nil
}

// attachFile places file at an object path such as "variables.file" or
// "variables.files.1".
func attachFile(req *Request, path string, file *scalars.File) error {
	segments := strings.Split(path, ".")
	if len(segments) < 2 || segments[0] != "variables" {
		return malformed("invalid map path %q", path)
	}
	if req.Variables == nil {
		req.Variables = map[string]any{}
	}

	var parent any = req.Variables
	for i, seg := range segments[1:] {
		last := i == len(segments)-2
		switch node := parent.(type) {
		case map[string]any:
			if last {
				node[seg] = file
				return nil
			}
			next, ok := node[seg]
			if !ok {
				return malformed("map path %q does not exist", path)
			}
			parent = next
		case []any:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(node) {
				return malformed("map path %q does not exist", path)
			}
			if last {
				node[idx] = file
				return nil
			}
			parent = node[idx]
		default:
			return malformed("map path %q does not exist", path)
		}
	}
	return nil
}
