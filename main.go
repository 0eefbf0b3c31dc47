// =============================================================================
// Journal Access Sync - Main Entry Point
// =============================================================================
//
// USAGE:
//   journal-sync process       - Validate new sheets and merge the ones that pass
//   journal-sync validate      - Validate new sheets without merging
//   journal-sync ledger list   - List merged sheets
//   journal-sync issn check    - Verify ISSN check digits
//   journal-sync version       - Display the application version
//
// ARCHITECTURE:
//   - cmd/           : CLI command definitions (Cobra)
//   - internal/      : Validation, reconciliation, sources and stores
//   - pkg/           : Shared errors and file/report utilities
//   - configs/       : Institution-specific YAML configurations
//
// =============================================================================

package main

import (
	"github.com/ginjaninja78/journal-access-sync/cmd"
)

func main() {
	cmd.Execute()
}
