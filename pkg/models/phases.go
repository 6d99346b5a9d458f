package models

// DefaultPhase is used when no phase was chosen
const DefaultPhase = "default"

// Phases lists the penetration-testing phases in workflow order
var Phases = []string{
	DefaultPhase,
	"1_Recon_Enumeration",
	"2_Vulnerability_Identification",
	"3_Exploitation_Preparation",
	"4_Exploitation",
	"5_Initial_Foothold",
	"6_Privilege_Escalation",
	"7_Flag_Capture",
}

var phaseDescriptions = map[string]string{
	DefaultPhase:                     "Open-ended questions not tied to a specific phase.",
	"1_Recon_Enumeration":            "Reconnaissance and enumeration. Actively and passively gather information about the target's systems, network and people.",
	"2_Vulnerability_Identification": "Vulnerability identification. Find known and unknown weaknesses in the target based on the collected information.",
	"3_Exploitation_Preparation":     "Exploitation preparation. Prepare and configure the tools and payloads needed for the identified vulnerabilities.",
	"4_Exploitation":                 "Exploitation. Run the prepared exploits and attempt to compromise the system.",
	"5_Initial_Foothold":             "Initial foothold. Use a vulnerability to gain first access to the target system.",
	"6_Privilege_Escalation":         "Privilege escalation. Move from the initial access to an account with higher privileges.",
	"7_Flag_Capture":                 "Flag capture. Locate and retrieve the final objective.",
}

// PhaseDescription returns the description of a phase, or "" for unknown phases
func PhaseDescription(phase string) string {
	return phaseDescriptions[phase]
}

// IsKnownPhase reports whether phase is one of Phases
func IsKnownPhase(phase string) bool {
	_, ok := phaseDescriptions[phase]
	return ok
}
