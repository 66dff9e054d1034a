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

package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/carverauto/fleettrace/pkg/core/auth"
	"github.com/carverauto/fleettrace/pkg/models"
)

// pathID parses the {id} path variable as a UUID.
func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, "Invalid ID", http.StatusBadRequest)
		return uuid.Nil, false
	}

	return id, true
}

// operatorID derives a stable UUID for the authenticated operator. Local
// usernames are not UUIDs, so non-UUID identities map through a namespace.
func operatorID(r *http.Request) *uuid.UUID {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		return nil
	}

	if id, err := uuid.Parse(user.ID); err == nil {
		return &id
	}

	id := uuid.NewSHA1(uuid.NameSpaceOID, []byte(user.ID))

	return &id
}

func (s *APIServer) listDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := s.core.ListDevices(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	if devices == nil {
		devices = []*models.Device{}
	}

	s.encodeJSONResponse(w, devices)
}

func (s *APIServer) getDevice(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	device, err := s.core.GetDevice(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	s.encodeJSONResponse(w, device)
}

func (s *APIServer) createDevice(w http.ResponseWriter, r *http.Request) {
	var device models.Device
	if !s.decodeJSONRequest(w, r, &device) {
		return
	}

	created, err := s.core.CreateDevice(r.Context(), &device)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusCreated)
	s.encodeJSONResponse(w, created)
}

func (s *APIServer) updateDevice(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req models.DeviceUpdateRequest
	if !s.decodeJSONRequest(w, r, &req) {
		return
	}

	updated, err := s.core.UpdateDevice(r.Context(), id, &req)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	s.encodeJSONResponse(w, updated)
}

func (s *APIServer) deleteDevice(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := s.core.DeleteDevice(r.Context(), id); err != nil {
		s.writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *APIServer) listCurrentLocations(w http.ResponseWriter, r *http.Request) {
	locations, err := s.core.CurrentLocations(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	if locations == nil {
		locations = []*models.CurrentLocation{}
	}

	s.encodeJSONResponse(w, locations)
}

func (s *APIServer) deviceLocation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	location, err := s.core.DeviceLocation(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	s.encodeJSONResponse(w, location)
}

func (s *APIServer) listLocationHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var since time.Time
	if v := r.URL.Query().Get("since"); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, "Invalid since timestamp", http.StatusBadRequest)
			return
		}

		since = parsed
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	samples, err := s.core.ListLocationHistory(r.Context(), id, since, limit)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	if samples == nil {
		samples = []*models.LocationSample{}
	}

	s.encodeJSONResponse(w, samples)
}

func (s *APIServer) createCommand(w http.ResponseWriter, r *http.Request) {
	var req models.CommandCreateRequest
	if !s.decodeJSONRequest(w, r, &req) {
		return
	}

	cmd, err := s.core.CreateCommand(r.Context(), &req, operatorID(r))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusCreated)
	s.encodeJSONResponse(w, cmd)
}

func (s *APIServer) getCommand(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	cmd, err := s.core.GetCommand(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	s.encodeJSONResponse(w, cmd)
}

func (s *APIServer) cancelCommand(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	cmd, err := s.core.CancelCommand(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	s.encodeJSONResponse(w, cmd)
}

func (s *APIServer) listCommands(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var status *models.CommandStatus

	if v := r.URL.Query().Get("status"); v != "" {
		st := models.CommandStatus(v)
		status = &st
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	cmds, err := s.core.ListCommands(r.Context(), id, status, limit)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	if cmds == nil {
		cmds = []*models.RemoteCommand{}
	}

	s.encodeJSONResponse(w, cmds)
}

type lockRequest struct {
	Reason string `json:"reason"`
}

func (s *APIServer) lockDevice(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req lockRequest
	// Body is optional; a missing reason is allowed.
	_ = s.decodeOptionalJSON(r, &req)

	cmd, err := s.core.LockDevice(r.Context(), id, req.Reason, operatorID(r))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	s.encodeJSONResponse(w, cmd)
}

func (s *APIServer) unlockDevice(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	cmd, err := s.core.UnlockDevice(r.Context(), id, operatorID(r))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	s.encodeJSONResponse(w, cmd)
}

func (s *APIServer) wipeDevice(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	cmd, err := s.core.WipeDevice(r.Context(), id, operatorID(r))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	s.encodeJSONResponse(w, cmd)
}

func (s *APIServer) listGeofences(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"

	zones, err := s.core.ListGeofences(r.Context(), activeOnly)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	if zones == nil {
		zones = []*models.Geofence{}
	}

	s.encodeJSONResponse(w, zones)
}

func (s *APIServer) createGeofence(w http.ResponseWriter, r *http.Request) {
	var zone models.Geofence
	if !s.decodeJSONRequest(w, r, &zone) {
		return
	}

	zone.CreatedBy = operatorID(r)

	created, err := s.core.CreateGeofence(r.Context(), &zone)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusCreated)
	s.encodeJSONResponse(w, created)
}

func (s *APIServer) getGeofence(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	zone, err := s.core.GetGeofence(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	s.encodeJSONResponse(w, zone)
}

func (s *APIServer) updateGeofence(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var zone models.Geofence
	if !s.decodeJSONRequest(w, r, &zone) {
		return
	}

	zone.ID = id

	updated, err := s.core.UpdateGeofence(r.Context(), &zone)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	s.encodeJSONResponse(w, updated)
}

func (s *APIServer) deleteGeofence(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := s.core.DeleteGeofence(r.Context(), id); err != nil {
		s.writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *APIServer) checkGeofencePoint(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req models.GeofenceCheckRequest
	if !s.decodeJSONRequest(w, r, &req) {
		return
	}

	if req.Latitude < -90 || req.Latitude > 90 || req.Longitude < -180 || req.Longitude > 180 {
		writeError(w, "latitude/longitude out of range", http.StatusBadRequest)
		return
	}

	resp, err := s.core.CheckGeofencePoint(r.Context(), id, req.Latitude, req.Longitude)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	s.encodeJSONResponse(w, resp)
}

func (s *APIServer) listAlerts(w http.ResponseWriter, r *http.Request) {
	var deviceID *uuid.UUID

	if v := r.URL.Query().Get("device_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			writeError(w, "Invalid device_id", http.StatusBadRequest)
			return
		}

		deviceID = &id
	}

	unresolvedOnly := r.URL.Query().Get("unresolved") == "true"
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	alerts, err := s.core.ListAlerts(r.Context(), deviceID, unresolvedOnly, limit)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	if alerts == nil {
		alerts = []*models.Alert{}
	}

	s.encodeJSONResponse(w, alerts)
}

func (s *APIServer) getAlert(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	alert, err := s.core.GetAlert(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	s.encodeJSONResponse(w, alert)
}

func (s *APIServer) acknowledgeAlert(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	userID := operatorID(r)
	if userID == nil {
		writeError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	if err := s.core.AcknowledgeAlert(r.Context(), id, *userID); err != nil {
		s.writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type resolveRequest struct {
	Notes string `json:"notes"`
}

func (s *APIServer) resolveAlert(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req resolveRequest
	_ = s.decodeOptionalJSON(r, &req)

	if err := s.core.ResolveAlert(r.Context(), id, req.Notes); err != nil {
		s.writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
