// Copyright 2018-2026 Gaia Hub Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package sysinfo publishes the build information of the running daemon
// as a constant metric, so deployed versions show up in scrapes.
package sysinfo

import (
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
)

// BuildInfo identifies the running build. Fields are set through compile
// time variables in the main package.
type BuildInfo struct {
	Version   string
	GitCommit string
	BuildDate string
	GoVersion string
}

// RegisterBuildInfo registers a constant '1' gauge labeled with the build
// information on reg.
func RegisterBuildInfo(reg prometheus.Registerer, info BuildInfo) error {
	if info.GoVersion == "" {
		info.GoVersion = runtime.Version()
	}
	m := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "hub",
		Name:      "build_info",
		Help:      "A metric with a constant '1' value labeled by the build information of the running hub.",
		ConstLabels: prometheus.Labels{
			"version":    info.Version,
			"git_commit": info.GitCommit,
			"build_date": info.BuildDate,
			"go_version": info.GoVersion,
		},
	}, func() float64 { return 1 })
	return reg.Register(m)
}
