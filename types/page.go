/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package types

import (
	"fmt"
	"strings"
)

const DefaultLimit = 10

// Order is a single ordering term. Field names a sortable field, not a raw
// SQL column; repositories resolve it against their own whitelist.
type Order struct {
	Field     string
	Direction Direction
	Nulls     NullsOrder
}

// OrderAsc orders by field ascending with nulls last.
func OrderAsc(field string) Order { return Order{Field: field, Direction: Asc} }

// OrderDesc orders by field descending with nulls last.
func OrderDesc(field string) Order { return Order{Field: field, Direction: Desc} }

func (o Order) WithNullsFirst() Order {
	o.Nulls = NullsFirst
	return o
}

func (o Order) WithNullsLast() Order {
	o.Nulls = NullsLast
	return o
}

func (o Order) String() string {
	return fmt.Sprintf("%s %s %s", o.Field, o.Direction, o.Nulls)
}

// ParseOrder parses "field", "field:asc" or "field:desc".
func ParseOrder(s string) (Order, error) {
	field, dir, _ := strings.Cut(strings.TrimSpace(s), ":")
	if field == "" {
		return Order{}, fmt.Errorf("empty sort field in %q", s)
	}
	d, ok := ParseDirection(dir)
	if !ok {
		return Order{}, fmt.Errorf("invalid sort direction %q in %q", dir, s)
	}
	return Order{Field: field, Direction: d}, nil
}

// PageRequest describes a zero-based offset/limit window and its ordering.
type PageRequest struct {
	offset int
	limit  int
	orders []Order
}

func (p *PageRequest) GetLimit() int {
	if p.limit < 1 {
		p.limit = DefaultLimit
	}
	return p.limit
}

func (p *PageRequest) GetOffset() int {
	if p.offset < 0 {
		p.offset = 0
	}
	return p.offset
}

func (p *PageRequest) GetOrders() []Order {
	return p.orders
}

// NewPageRequest constructs a PageRequest from an offset, a limit and orders.
func NewPageRequest(offset int, limit int, orders ...Order) *PageRequest {
	return &PageRequest{offset: offset, limit: limit, orders: orders}
}

// NewPageRequestOfPage converts a one-based page number into an offset.
func NewPageRequestOfPage(page int, pageSize int, orders ...Order) *PageRequest {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultLimit
	}
	return NewPageRequest((page-1)*pageSize, pageSize, orders...)
}

// Pagination holds paged result items along with pagination metadata.
type Pagination[T any] struct {
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
	Total  int `json:"total"`
	Items  []T `json:"items"`
}

// NewDefaultPagination constructs an empty pagination container.
func NewDefaultPagination[T any](offset int, limit int) *Pagination[T] {
	return &Pagination[T]{Offset: offset, Limit: limit, Items: make([]T, 0)}
}

// HasNext reports whether rows remain after this page.
func (p *Pagination[T]) HasNext() bool {
	return p.Offset+len(p.Items) < p.Total
}
