/*
 * Copyright 2025 The steamwatch Authors.
 *
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

package scheduler

import "time"

type unitKind int

const (
	unitKindIndividual unitKind = iota
	unitKindFriendList
)

// friendListUnitKey is the due-queue key of the single shared friend-list
// unit. Individual units use their rule ID as key.
const friendListUnitKey = "friends"

// unit is one schedulable fetch. A unit sits in the due-queue while idle and
// is removed from it for the whole duration of an in-flight fetch, so no two
// fetches for the same unit can overlap.
type unit struct {
	kind      unitKind
	key       string
	steamID   string
	nextDueAt time.Time
	fetching  bool
	failures  int
	index     int
}

// dueQueue is a min-heap over nextDueAt.
type dueQueue []*unit

func (q dueQueue) Len() int { return len(q) }

func (q dueQueue) Less(i, j int) bool {
	return q[i].nextDueAt.Before(q[j].nextDueAt)
}

func (q dueQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *dueQueue) Push(x any) {
	u := x.(*unit)
	u.index = len(*q)
	*q = append(*q, u)
}

func (q *dueQueue) Pop() any {
	old := *q
	n := len(old)
	u := old[n-1]
	old[n-1] = nil
	u.index = -1
	*q = old[:n-1]

	return u
}
