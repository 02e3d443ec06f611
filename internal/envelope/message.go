// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package envelope

import (
	"net/http"
	"sort"
	"strings"
)

// Kind selects the root element of an envelope.
type Kind string

const (
	KindRequest  Kind = "flexrep-request"
	KindResponse Kind = "flexrep-response"
)

// Field is one header name with all of its values in original order.
type Field struct {
	Name   string
	Values []string
}

// Header is an ordered header list. Names keep their case.
type Header []Field

// Values returns the values of the first field whose name matches
// case-insensitively, or nil.
func (h Header) Values(name string) []string {
	for _, f := range h {
		if strings.EqualFold(f.Name, name) {
			return f.Values
		}
	}
	return nil
}

// Get returns the first value of the named field, or "".
func (h Header) Get(name string) string {
	if v := h.Values(name); len(v) > 0 {
		return v[0]
	}
	return ""
}

// Add appends value to the field with exactly this name, creating the
// field at the end of the list if needed.
func (h *Header) Add(name, value string) {
	for i := range *h {
		if (*h)[i].Name == name {
			(*h)[i].Values = append((*h)[i].Values, value)
			return
		}
	}
	*h = append(*h, Field{Name: name, Values: []string{value}})
}

// CopyTo adds every field to dst without canonicalising the names, so the
// receiving side sees the names exactly as they were recorded.
func (h Header) CopyTo(dst http.Header) {
	for _, f := range h {
		dst[f.Name] = append(dst[f.Name], f.Values...)
	}
}

// HTTP returns the header list as a new http.Header.
func (h Header) HTTP() http.Header {
	out := make(http.Header, len(h))
	h.CopyTo(out)
	return out
}

// HeaderFromHTTP converts an http.Header. Go header maps carry no field
// order, so fields are sorted by name; value order is kept.
func HeaderFromHTTP(src http.Header) Header {
	names := make([]string, 0, len(src))
	for name := range src {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make(Header, 0, len(names))
	for _, name := range names {
		values := make([]string, len(src[name]))
		copy(values, src[name])
		out = append(out, Field{Name: name, Values: values})
	}
	return out
}

// Message is one HTTP request or response as carried by an envelope.
type Message struct {
	Kind Kind
	// Status is only meaningful for responses. Zero means "not recorded".
	Status int
	Header Header
	Body   []byte
}
