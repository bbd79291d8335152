/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package version carries build information.
package version

import (
	"fmt"
	"runtime"
)

// Version is set at build time via ldflags:
//
//	-X github.com/friendsincode/elevatord/internal/version.Version=X.Y.Z
var Version = "0.1.0"

// Commit is the VCS revision, set at build time.
var Commit = "unknown"

// Info describes the running binary.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	GoVersion string `json:"go_version"`
}

// Current returns the build information of this binary.
func Current() Info {
	return Info{Version: Version, Commit: Commit, GoVersion: runtime.Version()}
}

func (i Info) String() string {
	return fmt.Sprintf("elevatord %s (%s, %s)", i.Version, i.Commit, i.GoVersion)
}
