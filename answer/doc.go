// Copyright 2025 Poiesic Systems
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


// Package answer turns ranked retrieval results into a streamed, grounded
// answer. The Assembler renders ranked entities into a token-bounded,
// attributed context block; the Orchestrator feeds it to the generator and
// streams the reply chunk by chunk, leading with the source list and
// closing with the cited attribution.
package answer
