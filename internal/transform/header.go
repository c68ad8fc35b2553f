package transform

import (
	"errors"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
)

const (
	keyRenameHeader  = "RenameHeader"
	keyRequestHeader = "RequestHeader"
	keySet           = "Set"
	keyAppend        = "Append"
)

var (
	errRenameHeaderEmpty  = errors.New("a non-empty RenameHeader value is required")
	errSetEmpty           = errors.New("a non-empty Set value is required")
	errSetMissing         = errors.New("set option is required")
	errRequestHeaderEmpty = errors.New("a non-empty RequestHeader value is required")
	errValueMissing       = errors.New("either Set or Append is required")
)

// HeaderRename renames a request header on its way to the destination.
//
//	{RenameHeader: X-Api-Key, Set: X-Billing-Key}
//
// forwards the caller's X-Api-Key as X-Billing-Key. The documented header
// parameter X-Billing-Key is renamed to X-Api-Key, since that is what callers
// of the proxy send.
type HeaderRename struct{}

func (HeaderRename) Validate(params map[string]string) (bool, []error) {
	from, ok := params[keyRenameHeader]
	if !ok {
		return false, nil
	}

	var errs []error
	if from == "" {
		errs = append(errs, errRenameHeaderEmpty)
	}
	to, ok := params[keySet]
	switch {
	case !ok:
		errs = append(errs, errSetMissing)
	case to == "":
		errs = append(errs, errSetEmpty)
	}
	return true, errs
}

func (h HeaderRename) Build(params map[string]string) (RequestTransform, bool, error) {
	handled, errs := h.Validate(params)
	if !handled {
		return nil, false, nil
	}
	if len(errs) > 0 {
		return nil, true, errors.Join(errs...)
	}

	from := http.CanonicalHeaderKey(params[keyRenameHeader])
	to := http.CanonicalHeaderKey(params[keySet])
	return func(req *http.Request) {
		values, ok := req.Header[from]
		if !ok {
			return
		}
		req.Header.Del(from)
		for _, v := range values {
			req.Header.Add(to, v)
		}
	}, true, nil
}

func (HeaderRename) TransformOperation(op *openapi3.Operation, params map[string]string) bool {
	from, ok := params[keyRenameHeader]
	if !ok {
		return false
	}
	to, ok := params[keySet]
	if !ok {
		return true
	}

	for i, ref := range op.Parameters {
		if ref == nil || ref.Value == nil {
			continue
		}
		if ref.Value.In != openapi3.ParameterInHeader || ref.Value.Name != to {
			continue
		}
		// Copy so a parameter shared through components stays untouched.
		renamed := *ref.Value
		renamed.Name = from
		op.Parameters[i] = &openapi3.ParameterRef{Value: &renamed}
	}
	return true
}

// RequestHeader sets or appends a fixed header on forwarded requests.
//
//	{RequestHeader: X-Forwarded-Gateway, Set: aggregator}
//
// It has no documentation counterpart: callers never send the header.
type RequestHeader struct{}

func (RequestHeader) Validate(params map[string]string) (bool, []error) {
	name, ok := params[keyRequestHeader]
	if !ok {
		return false, nil
	}

	var errs []error
	if name == "" {
		errs = append(errs, errRequestHeaderEmpty)
	}
	_, hasSet := params[keySet]
	_, hasAppend := params[keyAppend]
	if !hasSet && !hasAppend {
		errs = append(errs, errValueMissing)
	}
	return true, errs
}

func (h RequestHeader) Build(params map[string]string) (RequestTransform, bool, error) {
	handled, errs := h.Validate(params)
	if !handled {
		return nil, false, nil
	}
	if len(errs) > 0 {
		return nil, true, errors.Join(errs...)
	}

	name := params[keyRequestHeader]
	if value, ok := params[keySet]; ok {
		return func(req *http.Request) { req.Header.Set(name, value) }, true, nil
	}
	value := params[keyAppend]
	return func(req *http.Request) { req.Header.Add(name, value) }, true, nil
}
