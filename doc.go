/*
Package webx provides an embeddable HTTP/1.0 and HTTP/1.1 server engine.

webx owns the wire protocol, connection lifecycle, exchange
orchestration, routing, content negotiation and response-writing
pipeline for applications that register resources and handlers:

	* Routes are matched against a pattern language of static segments,
	  single-segment ":name" parameters and one terminal "*name"
	  catch-all.
	* Handlers are resolved per-route by method, request Content-Type
	  and Accept, with RFC 7231 quality-value and specificity rules.
	* Before- and after-actions run around the handler in a chain that
	  may short-circuit with an early response.
	* An ordered exception chain converts any error raised along the
	  way into a response, terminating in a base handler that never
	  fails.

webx deliberately does not implement HTTP/2 framing, TLS termination,
request pipelining, WebSockets/SSE, cookies or sessions.
*/
package webx
