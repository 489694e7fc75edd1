// Package tools provides the built-in capabilities an assistant and its
// sub-agents can be granted: file access, search, shell execution, a todo
// list and web access.
//
// Register them all at once:
//
//	reg := kaya.NewRegistry()
//	shells, err := tools.RegisterAll(reg, tools.Options{Search: tools.SearXNG(url, nil)})
//
// Relative paths are resolved against the working directory carried in the
// call's context (see [kaya.WithContextWorkDir]).
package tools
