// Copyright 2018 Tamás Demeter-Haludka
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package event is the in-process hook bus behind resource lifecycle events.
package event

import "sync"

// ErrorStrategy tells the dispatcher what to do when a subscriber errors.
type ErrorStrategy int

const (
	// ErrorStrategyIgnore drops subscriber errors. Dispatch returns nil.
	ErrorStrategyIgnore ErrorStrategy = iota
	// ErrorStrategyStop stops delivery at the first error.
	ErrorStrategyStop
	// ErrorStrategyAggregate delivers to every subscriber and collects the errors.
	ErrorStrategyAggregate
)

// Event is a dispatchable value. Both methods must be idempotent.
type Event interface {
	// Name returns the machine name of the event.
	Name() string
	// ErrorStrategy tells the dispatcher how to treat subscriber errors.
	ErrorStrategy() ErrorStrategy
}

// Subscriber receives events it subscribed to.
type Subscriber interface {
	Handle(e Event) error
}

// SubscriberFunc adapts a function into a Subscriber.
type SubscriberFunc func(e Event) error

func (f SubscriberFunc) Handle(e Event) error {
	return f(e)
}

// Action is a subscriber that ignores the event value and cannot fail.
type Action func()

func (a Action) Handle(e Event) error {
	a()
	return nil
}

// Dispatcher fans events out to their subscribers.
//
// Subscriptions usually happen during boot, but dispatching is done from
// request handlers, so the subscriber list is guarded.
type Dispatcher struct {
	mtx         sync.RWMutex
	subscribers map[string][]Subscriber
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		subscribers: make(map[string][]Subscriber),
	}
}

// Subscribe registers s for the named event.
func (d *Dispatcher) Subscribe(name string, s Subscriber) error {
	d.mtx.Lock()
	d.subscribers[name] = append(d.subscribers[name], s)
	d.mtx.Unlock()

	return nil
}

// Dispatch delivers e to its subscribers in subscription order.
//
// The returned slice is nil unless the event's strategy surfaces errors.
func (d *Dispatcher) Dispatch(e Event) []error {
	d.mtx.RLock()
	subscribers := d.subscribers[e.Name()]
	d.mtx.RUnlock()

	var errs []error

	for _, s := range subscribers {
		err := s.Handle(e)
		if err == nil {
			continue
		}

		switch e.ErrorStrategy() {
		case ErrorStrategyStop:
			return []error{err}
		case ErrorStrategyAggregate:
			errs = append(errs, err)
		}
	}

	return errs
}
