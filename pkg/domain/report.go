package domain

import "fmt"

// Verdict is the binary outcome of an investigation.
type Verdict string

const (
	VerdictBenign    Verdict = "benign"
	VerdictMalicious Verdict = "malicious"
)

// FinalReport is the structured verdict record derived from the free-text
// final report, never produced independently of it.
type FinalReport struct {
	Verdict Verdict `json:"verdict" jsonschema:"enum=benign,enum=malicious" jsonschema_description:"Final verdict indicating whether the analyzed code is malicious or not"`

	// Behavior summarizes what the code actually does.
	Behavior string `json:"behavior" jsonschema_description:"Brief explanation of the code's behavior and its purpose"`

	// AttackerGoal is set only for malicious verdicts.
	AttackerGoal string `json:"attacker_goal,omitempty" jsonschema_description:"If the code is malicious, the attacker's ultimate goal"`

	// AttackStrategy narrates how the malicious activity is carried out from
	// beginning to completion. Set only for malicious verdicts.
	AttackStrategy string `json:"attack_strategy,omitempty" jsonschema_description:"If the code is malicious, how the malicious activity is carried out step by step"`

	// Notes carries anything else worth mentioning.
	Notes string `json:"notes,omitempty" jsonschema_description:"Any additional information worth mentioning"`
}

// Validate checks that the record honors the closed verdict set.
func (r *FinalReport) Validate() error {
	switch r.Verdict {
	case VerdictBenign, VerdictMalicious:
		return nil
	}
	return fmt.Errorf("%w: verdict %q", ErrSchemaMismatch, r.Verdict)
}
