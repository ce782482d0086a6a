package gemini

import (
	"fmt"
	"strings"
)

// buildPrompt assembles the analysis instruction for one scan. Arrow
// handling comes first because it shapes the result list; the context
// block and permit heuristics follow.
func buildPrompt(sc ScanContext) string {
	var b strings.Builder

	b.WriteString(`You are a parking sign interpreter. Analyze the photographed parking sign pole and produce a legality verdict for the driver described below.

DIRECTION DETECTION:
- Signs may carry arrows. An arrow pointing left scopes that sign's rules to the left side of the pole, an arrow pointing right to the right side.
- Produce one result per detected direction. If any sign carries an arrow, emit separate "left" and/or "right" results as appropriate.
- If no arrows are visible anywhere, emit exactly one result with direction "general".
- Never invent a direction that no sign refers to.

`)

	b.WriteString("CURRENT CONTEXT:\n")
	fmt.Fprintf(&b, "- Local time: %s\n", sc.Now.Format("15:04"))
	fmt.Fprintf(&b, "- Day of week: %s\n", sc.Now.Weekday())
	fmt.Fprintf(&b, "- Date: %s\n", sc.Now.Format("2006-01-02"))
	if sc.Location != nil {
		// Four decimals is street-level; stored precision is kept
		// deliberately coarse.
		fmt.Fprintf(&b, "- Location: %.4f, %.4f\n", sc.Location.Latitude, sc.Location.Longitude)
	}

	b.WriteString("\nDRIVER PERMITS:\n")
	writePermit(&b, "Disability permit", sc.Profile.HasDisabilityPermit)
	if sc.Profile.HasResidentPermit {
		area := sc.Profile.ResidentArea
		if area == "" {
			area = "unspecified area"
		}
		fmt.Fprintf(&b, "- Resident permit: yes (%s)\n", area)
	} else {
		b.WriteString("- Resident permit: no\n")
	}
	writePermit(&b, "Loading-zone permit", sc.Profile.HasLoadingPermit)
	writePermit(&b, "Business permit", sc.Profile.HasBusinessPermit)
	writePermit(&b, "Bus/authorized-vehicle permit", sc.Profile.HasAuthorizedPermit)
	writePermit(&b, "Taxi permit", sc.Profile.HasTaxiPermit)

	b.WriteString(`
RULES OF THUMB:
- A disability permit typically doubles any posted time limit and may allow parking in spaces reserved for disabled drivers.
- A resident permit only applies when its area label matches the zone named on the sign; a "PERMIT ZONE B" sign is satisfied by a resident permit for Zone B and by no other.
- A loading-zone permit applies only to marked loading zones and only during the posted loading windows.
- A business permit covers business-vehicle bays but grants nothing on general restrictions.
- When the sign is unreadable or contradictory, use status UNKNOWN with canParkNow false and say what is unclear in the explanation.

OUTPUT:
Respond with a single JSON object conforming exactly to the supplied response schema. Summaries and explanations are for a driver, not a lawyer: short, plain sentences. List every rule you detected on the pole in reading order in "rules". Set "permitApplied" only when one of the driver's permits changed the verdict. If the photo is unusable, still return one "general" result with status UNKNOWN and fill the diagnostic block.`)

	return b.String()
}

func writePermit(b *strings.Builder, label string, has bool) {
	v := "no"
	if has {
		v = "yes"
	}
	fmt.Fprintf(b, "- %s: %s\n", label, v)
}
