package memory

import "errors"

// ErrProtectedFact is returned when a mutation would lower a protected
// fact's confidence or retire it.
var ErrProtectedFact = errors.New("fact is protected")

// ErrAuditInProgress is returned when a timeline audit is requested for a
// profile that already has one running.
var ErrAuditInProgress = errors.New("timeline audit already in progress")
