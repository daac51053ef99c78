// Copyright 2021 The s3x Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package metadata

import (
	"container/list"
	"net/http"
	"reflect"
	"sync"
)

// Response header names carrying correlation identifiers.
const (
	RequestIDHeader = "x-amz-request-id"
	HostIDHeader    = "x-amz-id-2"
)

// DefaultCapacity is the capacity of a cache created by NewCache(0).
const DefaultCapacity = 50

// ResponseMetadata holds the diagnostic identifiers the service returns
// with a response. They are useful when reporting a problem to the
// service operator, never as business data.
type ResponseMetadata struct {
	// RequestID is the service request id (x-amz-request-id).
	RequestID string
	// HostID is the extended request id (x-amz-id-2).
	HostID string
}

// FromHeader extracts response metadata from response headers.
func FromHeader(h http.Header) ResponseMetadata {
	return ResponseMetadata{
		RequestID: h.Get(RequestIDHeader),
		HostID:    h.Get(HostIDHeader),
	}
}

// A Cache maps the caller's original call objects to the metadata of
// the response that completed the call. It holds a fixed number of
// entries. When full, adding a new key evicts the oldest inserted one.
//
// A Cache is safe for concurrent use by multiple goroutines, so one
// cache can be shared by every call a client makes.
type Cache struct {
	lock     sync.Mutex
	capacity int
	order    *list.List
	entries  map[interface{}]*list.Element
}

type entry struct {
	key interface{}
	md  ResponseMetadata
}

// NewCache returns an empty cache holding at most capacity entries. If
// capacity is zero, DefaultCapacity is used.
func NewCache(capacity int) *Cache {
	if capacity < 0 {
		panic("s3x/metadata: negative capacity")
	}
	if capacity == 0 {
		capacity = DefaultCapacity
	}
	return &Cache{
		capacity: capacity,
		order:    list.New(),
		entries:  make(map[interface{}]*list.Element, capacity),
	}
}

// Add records md as the metadata for key. Replacing the metadata of a
// key already present does not change its age. Keys which are nil or
// not comparable are ignored.
func (c *Cache) Add(key interface{}, md ResponseMetadata) {
	if !cacheable(key) {
		return
	}
	c.lock.Lock()
	defer c.lock.Unlock()
	if el, ok := c.entries[key]; ok {
		el.Value.(*entry).md = md
		return
	}
	if c.order.Len() >= c.capacity {
		oldest := c.order.Front()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*entry).key)
	}
	c.entries[key] = c.order.PushBack(&entry{key: key, md: md})
}

// Get returns the metadata recorded for key, and whether there was any.
func (c *Cache) Get(key interface{}) (ResponseMetadata, bool) {
	if !cacheable(key) {
		return ResponseMetadata{}, false
	}
	c.lock.Lock()
	defer c.lock.Unlock()
	if el, ok := c.entries[key]; ok {
		return el.Value.(*entry).md, true
	}
	return ResponseMetadata{}, false
}

// Len returns the number of entries in the cache.
func (c *Cache) Len() int {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.order.Len()
}

// Capacity returns the maximum number of entries in the cache.
func (c *Cache) Capacity() int {
	return c.capacity
}

func cacheable(key interface{}) bool {
	return key != nil && reflect.TypeOf(key).Comparable()
}
