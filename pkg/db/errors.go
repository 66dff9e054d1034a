package db

import "errors"

var (

	// Core database errors.

	ErrDatabaseError = errors.New("database error")

	// Operation errors.

	ErrFailedToScan   = errors.New("failed to scan")
	ErrFailedToQuery  = errors.New("failed to query")
	ErrFailedToInsert = errors.New("failed to insert")
	ErrFailedToInit   = errors.New("failed to initialize schema")
	ErrFailedOpenDB   = errors.New("failed to open database")

	// Row lookups.

	ErrDeviceNotFound   = errors.New("device not found")
	ErrCommandNotFound  = errors.New("command not found")
	ErrGeofenceNotFound = errors.New("geofence not found")
	ErrAlertNotFound    = errors.New("alert not found")
)
