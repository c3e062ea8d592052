/* Copyright 2018-2019 Comcast Cable Communications Management, LLC
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 * http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package core provides the deferred-value machine: Futures that
// settle exactly once, the Resolvers that settle them, and the
// reactions that run later.
//
// The primary type is Future, which represents an outcome -- a value
// or an error -- that isn't known yet but will be determined at most
// once.  New() returns a Future along with its Resolver, which is the
// exclusive capability to settle that Future.  Whoever holds the
// Resolver decides the outcome; everybody else can only react.
//
// Consumers react with Then, Catch, and Finally, each of which
// returns a new Future settled by the reaction's result.  A reaction
// never runs on the stack that settled the Future.  Instead it is
// packaged as a Job and handed to the Future's Scheduler, and the
// host runs those Jobs from its own loop (see package run, which
// provides the standard Scheduler and its Drain).
//
// Fulfilling a Future with something that implements Settleable --
// another Future, say -- does not settle it with that object.
// Instead the Future adopts the Settleable's eventual outcome,
// however many layers deep the deferral goes.  A Future fulfilled
// directly with itself rejects with a CyclicAdoption error rather
// than waiting for itself forever.
//
// This package performs no I/O and owns no goroutines.  Producers
// (timers, I/O completions, whatever) call Resolver methods as they
// please, from any goroutine; each Future serializes its own state,
// and the host's drain loop provides the ordering guarantees.
//
// To use this package: make a Scheduler (package run's Queue), New()
// some Futures, hand the Resolvers to producers, attach reactions,
// and drain.
package core
