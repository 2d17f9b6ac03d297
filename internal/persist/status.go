/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package persist

// Verdict is the interpretation of a backend status code.
type Verdict struct {
	OK       bool
	Category string
}

var failureCategories = map[int]string{
	201: "Created",
	404: "Not found",
	500: "Internal server error",
	501: "Not implemented",
	503: "Service unavailable",
}

// Interpret maps a status code to a verdict. Only the five listed codes fail;
// everything else, 0 (no code) included, is OK.
func Interpret(code int) Verdict {
	if cat, ok := failureCategories[code]; ok {
		return Verdict{Category: cat}
	}
	return Verdict{OK: true}
}
