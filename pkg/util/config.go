// Copyright 2023-2024 daviszhen
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package util

type InputOptions struct {
	Path string `tag:"path"`
}

type ServerOptions struct {
	Address string `tag:"address"`
}

type StatsOptions struct {
	Parallelism int    `tag:"parallelism"`
	OutPath     string `tag:"outPath"`
}

type DebugOptions struct {
	ShowFooter  bool `tag:"showFooter"`
	ShowKept    bool `tag:"showKept"`
	PrintDetail bool `tag:"printDetail"`
}

type Config struct {
	Input  InputOptions  `tag:"input"`
	Server ServerOptions `tag:"server"`
	Stats  StatsOptions  `tag:"stats"`
	Debug  DebugOptions  `tag:"debug"`
}
