// Package repository maps record store rows to portal models.  Mappers are
// tolerant of schema drift: missing or mistyped columns fall back to safe
// defaults instead of failing the request.
//
// The sentinel values below let higher layers such as handlers distinguish
// failure scenarios with errors.Is.
package repository

import "errors"

// ErrBulletinTableNotFound is returned when neither bulletin table could be
// read.  Handlers surface it so operators notice schema drift.
var ErrBulletinTableNotFound = errors.New("bulletin table not found")

// ErrNoticeNotFound is returned when a notice id exists in neither bulletin
// table.
var ErrNoticeNotFound = errors.New("notice not found")

// ErrAgencyNotFound is returned by lookups by id.
var ErrAgencyNotFound = errors.New("agency not found")

// ErrConflict is returned when a create would duplicate a unique key, such
// as a second agency with the same email.  Handlers should translate this
// into an HTTP 409 response.
var ErrConflict = errors.New("conflict")
