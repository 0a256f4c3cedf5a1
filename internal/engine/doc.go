// Cubegate - REST Gateway for Qlik Sense Hypercube Data
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubegate

/*
Package engine is a JSON-RPC 2.0 client for the Qlik associative engine.

A Session owns one websocket connection and performs strictly sequential
request/response exchanges: a request is written, then messages are read
until the matching response arrives. Engine push notifications (messages
with neither a result nor an error) are skipped.

Remote entities are addressed by handles. The handle chain is modelled as
typed tokens so a document handle cannot be used where an object handle is
expected:

	Global --OpenDoc--> *Doc --GetObject--> *Object
	                         --CreateSessionObject--> *Object
	                         --GetField--> *Field
	                         --GetBookmark--> *GenericBookmark

Engine error payloads surface as *EngineError. Callers branch on
EngineError.Kind (KindAlreadyOpen, KindTooLarge, KindNotFound) instead of
inspecting the message text.

Connector adds a circuit breaker and a session rate limiter in front of
Session.Connect and is the entry point used by the rest of the gateway.
*/
package engine
