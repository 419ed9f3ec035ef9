// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package contentsync

import (
	"fmt"
	"strings"

	"golang.org/x/mod/semver"
)

// ClassifyUpdate decides how a client holding installedBuild should treat the
// latest published version. A fresh install passes installedBuild 0.
//
// Rules, in order:
//   - nothing published, or latest build <= installed: UpdateNone
//   - appVersion below latest.MinAppVersion: UpdateIncompatible
//   - latest.ForceUpdate: UpdateForced
//   - otherwise: UpdateOptional
//
// The incompatible check runs before the forced check because a forced
// update the app cannot apply is still not applicable.
func ClassifyUpdate(installedBuild int64, latest *DatabaseVersion, appVersion string) UpdateCheckResult {
	if latest == nil {
		return UpdateCheckResult{Status: UpdateNone, Reason: "no published dataset version"}
	}
	if latest.BuildNumber <= installedBuild {
		return UpdateCheckResult{
			Status: UpdateNone,
			Reason: fmt.Sprintf("installed build %d is current (latest %d)", installedBuild, latest.BuildNumber),
		}
	}
	if !SatisfiesMinVersion(appVersion, latest.MinAppVersion) {
		return UpdateCheckResult{
			Status:    UpdateIncompatible,
			Reason:    fmt.Sprintf("dataset %s requires app %s, running %s", latest.Version, latest.MinAppVersion, appVersion),
			Candidate: latest,
		}
	}
	if latest.ForceUpdate {
		return UpdateCheckResult{
			Status:    UpdateForced,
			Reason:    fmt.Sprintf("mandatory dataset update %s (build %d)", latest.Version, latest.BuildNumber),
			Candidate: latest,
		}
	}
	return UpdateCheckResult{
		Status:    UpdateOptional,
		Reason:    fmt.Sprintf("dataset update %s (build %d) available", latest.Version, latest.BuildNumber),
		Candidate: latest,
	}
}

// SatisfiesMinVersion reports whether appVersion >= minVersion in semver order.
// An empty minVersion is always satisfied. Invalid versions sort below valid
// ones, so an unparseable app version never satisfies a valid minimum and an
// unparseable minimum never blocks a valid app version.
func SatisfiesMinVersion(appVersion, minVersion string) bool {
	if strings.TrimSpace(minVersion) == "" {
		return true
	}
	return semver.Compare(canonicalSemver(appVersion), canonicalSemver(minVersion)) >= 0
}

// ValidVersion reports whether v is a semantic version, with or without the "v" prefix
func ValidVersion(v string) bool {
	return semver.IsValid(canonicalSemver(v))
}

func canonicalSemver(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return v
	}
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	return v
}
