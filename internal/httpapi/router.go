package httpapi

import (
	"fmt"
	"net/http"
)

// Host library names.
const (
	EngineStd = "std"
	EngineGin = "gin"
)

// NewRouter mounts h on the named host library.
func NewRouter(engine string, h *Handlers) (http.Handler, error) {
	switch engine {
	case "", EngineStd:
		return newStdRouter(h), nil
	case EngineGin:
		return newGinRouter(h), nil
	default:
		return nil, fmt.Errorf("unknown HTTP engine %q", engine)
	}
}
