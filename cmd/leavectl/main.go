/*
leavectl - Command-line client for the leave engine

PURPOSE:
  Runs the leave workflow and approval queue on the caller's machine
  against the server's ledger API. When the server cannot be reached,
  every command keeps working from a local copy and says so.

HOW IT WORKS:
  client.Remote (HTTP ledger + directory)
        │ transport failure
        ▼
  mirror.Local (memory store persisted to file or redis slots)

  Every successful remote read refreshes the local copy. Local writes made
  while offline are never pushed; `leavectl refresh` replaces the local copy
  with the server's data.

IDENTITY:
  --email / --employee-id / --user-id / --role identify the acting user.
  They default to HRMS_ACTOR_EMAIL, HRMS_ACTOR_EMPLOYEE_ID, HRMS_ACTOR_USER_ID
  and HRMS_ACTOR_ROLE.

EXAMPLES:
  leavectl --email alice@example.com submit --type annual --from 2025-07-01 --to 2025-07-03 --reason "Summer"
  leavectl --employee-id emp-hana --role hr list --status all --q bob
  leavectl --employee-id emp-hana --role hr approve 3f2c...
  leavectl --email alice@example.com balance --year 2025

SEE ALSO:
  - mirror/fallback.go: The remote-or-local combinator
  - client/remote.go: HTTP ledger client
*/
package main

import (
	"context"
	"fmt"
	"os"
)

func main() {
	if err := execute(context.Background(), os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
