// Package client provides the `logux` command-line tool.
//
// Every command opens the configured backend under --data-dir, runs one
// operation against the namespace selected with --namespace, prints the
// result as JSON lines and closes the backend again.
//
// Configuration is resolved from built-in defaults, then --config, then
// LOGUX_* environment variables, then flags. `logux config --env` lists the
// supported variables.
//
// Usage
//
//	logux add --type user/rename --data '{"name":"Ann"}' --reason user:1
//	logux list --order added --limit 10
//	logux get "1700000000000 server 0"
//	logux change-meta "1700000000000 server 0" --reasons user:1,user:2
//	logux remove-reason user:1 --max-added 100
//	logux clean --keep 'action_type.startsWith("user/")'
//	logux synced set --received 10 --sent 4
//	logux last-added
//	logux namespaces
//
// The memory backend does not outlive the process, so it is only useful for
// single commands and tests.
package client
