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

package sandbox

import "fmt"

// validateTag enforces the tag grammar: non-empty ASCII, no commas, no
// control characters.
func validateTag(tag string) error {
	if tag == "" {
		return fmt.Errorf("sandbox: empty tag")
	}
	for _, r := range tag {
		if r > 127 {
			return fmt.Errorf("sandbox: tag %q is not ASCII", tag)
		}
		if r == ',' {
			return fmt.Errorf("sandbox: tag %q contains a comma", tag)
		}
		if r < 0x20 || r == 0x7f {
			return fmt.Errorf("sandbox: tag %q contains a control character", tag)
		}
	}
	return nil
}
