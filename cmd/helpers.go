package cmd

import "fmt"

// printConfigNotFound prints a helpful message when configuration failed
// to resolve a usable bookkeeping store.
func printConfigNotFound() {
	fmt.Println(`oracleplane could not resolve its configuration. Set DATABASE__URL,
or create an oracleplane.toml next to go.mod:

[rules]
disable_all_drops = true
exclude_object_types = ["SYNONYM", "JOB"]`)
}
