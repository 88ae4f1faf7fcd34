// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
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

package orchestrator

import (
	"sort"
	"strconv"
	"strings"

	"google.golang.org/protobuf/types/known/structpb"

	"sentryproc/pkg/decision"
)

// DecisionHeaderName and TagsHeaderName are the two annotation headers added
// on the allow path.
const (
	DecisionHeaderName   = "Bulwark-Decision"
	TagsHeaderName       = "Bulwark-Tags"
	ProcessorHeaderName  = "x-external-processor"
	ProcessorHeaderValue = "Bulwark"
)

// FormatDecisionHeader renders d as an RFC 8941 Structured Field Value
// dictionary of three decimals, each with up to three fractional digits:
// "accept=0.700, restrict=0.100, unknown=0.200".
func FormatDecisionHeader(d decision.Decision) string {
	return "accept=" + formatDecimal(d.Accept()) +
		", restrict=" + formatDecimal(d.Restrict()) +
		", unknown=" + formatDecimal(d.Unknown())
}

func formatDecimal(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

// FormatTagsHeader renders tags as an RFC 8941 Structured Field Value list
// of tokens, alphabetically sorted and de-duplicated. Returns "" for an
// empty set, in which case the caller must omit the header entirely.
func FormatTagsHeader(tags []string) string {
	if len(tags) == 0 {
		return ""
	}
	seen := make(map[string]struct{}, len(tags))
	unique := make([]string, 0, len(tags))
	for _, t := range tags {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		unique = append(unique, t)
	}
	sort.Strings(unique)
	return strings.Join(unique, ", ")
}

// DecisionMetadata renders the combined decision and tags as a
// google.protobuf.Struct, for callers that surface the decision through
// Envoy's dynamic_metadata instead of (or in addition to) the request
// annotation headers, e.g. for access-log correlation further down the mesh.
func DecisionMetadata(d decision.Decision, tags []string) *structpb.Struct {
	tagValues := make([]interface{}, len(tags))
	for i, t := range tags {
		tagValues[i] = t
	}
	s, err := structpb.NewStruct(map[string]interface{}{
		"accept":   d.Accept(),
		"restrict": d.Restrict(),
		"unknown":  d.Unknown(),
		"tags":     tagValues,
	})
	if err != nil {
		// Every value above is a plain float64/[]interface{} of strings,
		// all of which structpb always accepts; this cannot fail.
		panic(err)
	}
	return s
}

// UnionTags merges tag sets from every plugin that ran, de-duplicating.
// Order is not significant: FormatTagsHeader sorts its input regardless.
func UnionTags(sets ...[]string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, set := range sets {
		for _, t := range set {
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}
	return out
}
