// Package agentgw implements the action-group request/response contract
// shared by both tool handlers: the JSON envelope with a string-encoded
// inner payload, dispatch on the function name, and the boundary that maps
// every failure to the uniform error envelope. Handlers built on it never
// raise past their boundary; the agent runtime always gets a JSON response.
package agentgw
