package bbb

import (
	"net/url"
	"strconv"
	"strings"
)

// Query is an ordered parameter list. Parameters are serialized in insertion
// order so the string that is signed is byte-for-byte the string that is sent.
type Query struct {
	params []param
}

type param struct {
	key   string
	value string
}

// NewQuery returns an empty query.
func NewQuery() *Query {
	return &Query{}
}

// Set appends a parameter, or replaces the value of an existing key in place.
func (q *Query) Set(key, value string) *Query {
	for i := range q.params {
		if q.params[i].key == key {
			q.params[i].value = value
			return q
		}
	}
	q.params = append(q.params, param{key: key, value: value})
	return q
}

// SetInt is Set for integer values.
func (q *Query) SetInt(key string, value int) *Query {
	return q.Set(key, strconv.Itoa(value))
}

// SetBool is Set for boolean values.
func (q *Query) SetBool(key string, value bool) *Query {
	return q.Set(key, strconv.FormatBool(value))
}

// Get returns the value stored for key.
func (q *Query) Get(key string) (string, bool) {
	for _, p := range q.params {
		if p.key == key {
			return p.value, true
		}
	}
	return "", false
}

// Len reports the number of parameters.
func (q *Query) Len() int {
	return len(q.params)
}

// Encode serializes the parameters as key=value pairs joined by '&', with
// form encoding applied to both keys and values.
func (q *Query) Encode() string {
	if q == nil || len(q.params) == 0 {
		return ""
	}
	var b strings.Builder
	for i, p := range q.params {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(p.key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(p.value))
	}
	return b.String()
}
