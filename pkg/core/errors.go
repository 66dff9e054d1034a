/*
 * Copyright 2025 Carver Automation Corporation.
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

package core

import "errors"

var (
	// ErrNotFound means the referenced device, command, geofence, or alert
	// does not exist. Non-retryable.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyRegistered means the device already completed registration.
	ErrAlreadyRegistered = errors.New("device already registered")

	// ErrInvalidTransition means the requested command state change is not
	// legal from the current state. Callers racing a drain or a cancel should
	// treat this as benign.
	ErrInvalidTransition = errors.New("invalid command state transition")

	// ErrForbidden means the caller is authenticated but does not own the
	// referenced resource.
	ErrForbidden = errors.New("forbidden")

	// ErrValidation means the request was rejected before any persistence.
	ErrValidation = errors.New("validation error")
)
