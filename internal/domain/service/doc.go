// Package service provides the tool registry used by the chat assistant.
//
// Providers register a service definition with a set of tools; the assistant
// discovers them by intent and executes them by "service.tool" ID. The
// terminal provider is the main consumer: it exposes shell sessions as tools.
//
// Example Usage:
//
//	registry := service.NewRegistry()
//	registry.Register(terminalProvider)
//	services := registry.Discover("run shell command", 5)
//	result, err := registry.Execute(ctx, "terminal.execute", params, appCtx)
package service
