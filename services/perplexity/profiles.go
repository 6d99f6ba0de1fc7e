// Copyright (C) 2026 Openplexity Contributors (maintainers@openplexity.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package perplexity

import (
	"fmt"
	"sort"
)

// =============================================================================
// Search Profiles
// =============================================================================

// Profile names a query-expansion preset. Profiles append a fixed
// instruction suffix to the query before it is sent; they never
// change any other request parameter.
type Profile string

// Available profiles. ProfileSimple is the identity profile and
// leaves the query unchanged.
const (
	ProfileSimple          Profile = "simple"
	ProfileResearch        Profile = "research"
	ProfileCodeAnalysis    Profile = "code_analysis"
	ProfileTroubleshooting Profile = "troubleshooting"
	ProfileDocumentation   Profile = "documentation"
	ProfileArchitecture    Profile = "architecture"
	ProfileSecurity        Profile = "security"
	ProfilePerformance     Profile = "performance"
	ProfileTutorial        Profile = "tutorial"
	ProfileComparison      Profile = "comparison"
	ProfileTrending        Profile = "trending"
	ProfileBestPractices   Profile = "best_practices"
	ProfileIntegration     Profile = "integration"
	ProfileDebugging       Profile = "debugging"
	ProfileOptimization    Profile = "optimization"
)

// profileInstructions maps each profile to its expansion suffix.
// ProfileSimple is intentionally absent: it expands to nothing.
var profileInstructions = map[Profile]string{
	ProfileResearch:        "do a detailed research on this and provide me with most recent information about this be very detailed about it also make sure u are reffering to multiple sources like this",
	ProfileCodeAnalysis:    "analyze this code in detail, explain the logic, identify potential issues, suggest improvements, and provide best practices for this type of implementation",
	ProfileTroubleshooting: "help me troubleshoot this issue step by step, identify common causes, provide solutions, and include preventative measures for similar problems",
	ProfileDocumentation:   "provide comprehensive documentation for this, including setup instructions, usage examples, configuration options, and maintenance guidelines",
	ProfileArchitecture:    "analyze the architectural implications, discuss design patterns, scalability considerations, and provide architectural recommendations",
	ProfileSecurity:        "evaluate security implications, identify vulnerabilities, suggest security measures, and provide security best practices for this context",
	ProfilePerformance:     "analyze performance characteristics, identify bottlenecks, suggest optimizations, and provide performance benchmarks and monitoring strategies",
	ProfileTutorial:        "create a step-by-step tutorial with clear explanations, code examples, common pitfalls, and practice exercises",
	ProfileComparison:      "provide detailed comparisons between alternatives, including pros and cons, use cases, and recommendations for different scenarios",
	ProfileTrending:        "focus on the latest trends, recent developments, emerging technologies, and current best practices in this area",
	ProfileBestPractices:   "provide industry best practices, coding standards, guidelines, and recommendations for professional implementation",
	ProfileIntegration:     "explain how to integrate this with existing systems, compatibility considerations, API requirements, and integration patterns",
	ProfileDebugging:       "provide systematic debugging approach, common debugging techniques, tools, and methods to identify and fix issues",
	ProfileOptimization:    "suggest specific optimizations, performance tuning strategies, resource usage improvements, and measurable enhancement techniques",
}

// ValidProfile reports whether name is a recognized profile.
func ValidProfile(name string) bool {
	if Profile(name) == ProfileSimple {
		return true
	}
	_, ok := profileInstructions[Profile(name)]
	return ok
}

// ExpandQuery applies a profile's instruction suffix to a query.
//
// The expanded form is "<query>. <instruction>". ProfileSimple and
// the empty profile return the query unchanged. An unrecognized
// profile is a KindValidation error, raised before any network
// traffic so a typo fails fast instead of burning an exchange.
func ExpandQuery(query string, profile Profile) (string, error) {
	if profile == "" || profile == ProfileSimple {
		return query, nil
	}
	instruction, ok := profileInstructions[profile]
	if !ok {
		return "", NewError(KindValidation, "unknown profile %q (valid: %v)", profile, ProfileNames())
	}
	return fmt.Sprintf("%s. %s", query, instruction), nil
}

// ProfileInstruction returns the expansion suffix for a profile, or
// the empty string for ProfileSimple and unknown profiles.
func ProfileInstruction(profile Profile) string {
	return profileInstructions[profile]
}

// ProfileNames returns all profile names in sorted order, including
// ProfileSimple.
func ProfileNames() []string {
	names := make([]string, 0, len(profileInstructions)+1)
	names = append(names, string(ProfileSimple))
	for p := range profileInstructions {
		names = append(names, string(p))
	}
	sort.Strings(names)
	return names
}
