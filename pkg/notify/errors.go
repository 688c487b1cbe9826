/*
 * Copyright 2025 The steamwatch Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package notify

import "fmt"

var (
	errDelivererRequired    = fmt.Errorf("notification deliverer is required")
	errCardRendererRequired = fmt.Errorf("card renderer collaborator is required")
	errNoAvatar             = fmt.Errorf("no avatar available for image rendering")
	errMemeStatus           = fmt.Errorf("meme API returned non-success status")
	errMemeResponse         = fmt.Errorf("meme API response missing image_id")
	errNoChoices            = fmt.Errorf("model returned no choices")
)
