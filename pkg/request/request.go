// Package request provides PendingRequest, a mutable fluent builder of outbound HTTP requests.
//
// The builder accumulates the URL, query and body parameters addressed by dot-delimited paths
// (see the pathmap package), headers and hooks. The Execute method takes an immutable HTTPRequest
// snapshot of the state and sends it using the Sender interface.
// The client.Client is a default implementation of the Sender interface based on the standard net/http package.
//
// A Wrapper can customize the builder when it is attached, see PendingRequest.WithWrapper.
// Wrappers can be registered by name in a Registry, see PendingRequest.WithNamedWrapper.
//
// A single AfterSending callback is invoked after the request is completed.
//
// RunGroup, WaitGroup, ParallelRequests are helpers for concurrent requests.
// Each concurrent request must use its own PendingRequest, builders are not safe for concurrent use.
package request
