package interpreter

// registerHTTPServerBuiltins wires httpServe/httpServerStop. Kept in a
// build-tag-free file since both the real (builtins_http_server.go) and
// js-stub (builtins_http_server_js.go) implementations share this name.
func registerHTTPServerBuiltins() {
	builtins["httpServe"] = &Builtin{Name: "httpServe", Fn: builtinHTTPServe}
	builtins["httpServerStop"] = &Builtin{Name: "httpServerStop", Fn: builtinHTTPServerStop}
}
