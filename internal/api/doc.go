// Package api serves the chainpkg commands over HTTP.
//
// Every command is available as POST /api/<verb> taking a JSON body of the
// command's arguments plus an "options" object ({"network", "verbose"}).
// Read-only commands also answer GET with query parameters. Responses are
// {"success": bool, "data": ...} or {"success": false, "error": "...",
// "kind": "..."}; missing required fields and validation failures are 400,
// everything else that fails is 500.
//
// Each request opens its own App so that a per-request network override
// never leaks into concurrent requests.
package api
