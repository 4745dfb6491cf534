// Package app wires the runtime together for the command-line runner: it
// registers modules, loads and compiles handler files, feeds JSON-lines
// requests to the scheduler and writes JSON-lines responses in completion
// order. It is decoupled from any specific entrypoint like a CLI or server.
package app
