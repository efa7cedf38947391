package utils

import "errors"

var (
	ErrorRecordNotFound     = errors.New("record not found")
	ErrorOrganizationIdMiss = errors.New("organization id is required")
	ErrorServiceNotReady    = errors.New("service not ready")
)
