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


package database

import (
	"reflect"
	"sort"
	"sync"
)

type registeredModel struct {
	instance interface{}
	priority int
}

var models struct {
	sync.RWMutex
	entries []registeredModel
	seen    map[reflect.Type]struct{}
}

// RegisterModel adds a bun model, given as a typed nil pointer such as
// (*Member)(nil), to table bootstrap. Lower priorities are created first so
// referenced tables exist before the tables pointing at them. A type
// registered twice keeps its first priority.
func RegisterModel(instance interface{}, priority int) {
	models.Lock()
	defer models.Unlock()
	if models.seen == nil {
		models.seen = make(map[reflect.Type]struct{})
	}
	typ := reflect.TypeOf(instance)
	if _, ok := models.seen[typ]; ok {
		return
	}
	models.seen[typ] = struct{}{}
	models.entries = append(models.entries, registeredModel{instance: instance, priority: priority})
}

// RegisteredModels returns the registered models by ascending priority.
func RegisteredModels() []interface{} {
	models.RLock()
	entries := make([]registeredModel, len(models.entries))
	copy(entries, models.entries)
	models.RUnlock()

	sort.SliceStable(entries, func(i, j int) bool { return entries[i].priority < entries[j].priority })
	out := make([]interface{}, len(entries))
	for i, e := range entries {
		out[i] = e.instance
	}
	return out
}
