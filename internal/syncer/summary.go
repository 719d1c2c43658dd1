package syncer

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/assetsync/assetsync/internal/planner"
)

// maxListedNames is the largest plan whose asset names are spelled out.
const maxListedNames = 10

var printer = message.NewPrinter(language.English)

// checkSummary describes a plan after Check.
func checkSummary(plan *planner.Plan) string {
	if plan.Empty() {
		return "no updates"
	}
	if n := plan.Len(); n <= maxListedNames {
		return printer.Sprintf("%d update(s) available: %s", n, strings.Join(plan.Names(), ", "))
	}
	return printer.Sprintf("%d updates available (%d outdated, %d to refresh)",
		plan.Len(), len(plan.Outdated), len(plan.ForceRefresh))
}

// applySummary announces the downloads Apply is about to start.
func applySummary(plan *planner.Plan) string {
	if n := plan.Len(); n <= maxListedNames {
		return printer.Sprintf("updating %d asset(s): %s", n, strings.Join(plan.Names(), ", "))
	}
	return printer.Sprintf("updating %d assets", plan.Len())
}
