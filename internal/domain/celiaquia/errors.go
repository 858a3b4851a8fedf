package celiaquia

import "celiaquia/internal/errs"

var (
	ErrValidation           = errs.Sentinel(errs.KindValidation, "validation failed")
	ErrTransitionNotAllowed = errs.Sentinel(errs.KindTransitionNotAllowed, "transition not allowed")
	ErrPermissionDenied     = errs.Sentinel(errs.KindPermissionDenied, "permission denied")
	ErrNotFound             = errs.Sentinel(errs.KindNotFound, "not found")
	ErrConflict             = errs.Sentinel(errs.KindConflict, "concurrent modification")
	ErrCupoFull             = errs.Sentinel(errs.KindCupoFull, "cupo exhausted")
	ErrExternalUnavailable  = errs.Sentinel(errs.KindExternalUnavailable, "external registry unavailable")

	ErrInvalidEstado   = errs.Sentinel(errs.KindValidation, "invalid estado")
	ErrInvalidRevision = errs.Sentinel(errs.KindValidation, "invalid revision")
	ErrInvalidRole     = errs.Sentinel(errs.KindValidation, "invalid role")
	ErrInvalidKind     = errs.Sentinel(errs.KindValidation, "invalid comment kind")
	ErrActorRequired   = errs.Sentinel(errs.KindValidation, "actor is required")
)
