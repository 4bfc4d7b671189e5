// Package shell implements the nodeshell command interpreter.
//
// A Shell wraps a logged-in content.Session in a session.PathAwareSession and
// dispatches tokenized command lines to builtins such as cd, ls, set, save and
// find. Relative paths in arguments resolve against the working location.
//
// Every command runs inside a tracing span and emits events on a synchronous
// Emitter:
//
//	command.pre        before dispatch, payload may be rewritten (aliases)
//	command.post       after success (auto-save, audit, history, hooks)
//	command.error      after failure (audit, history, hooks)
//	cwd.changed        the working location moved
//	workspace.changed  the shell logged into another workspace
//
// Run drives an interactive loop over an io.Reader. Command errors are printed
// and the loop continues; pending changes are reported, never saved, on exit.
package shell
