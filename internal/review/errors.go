package review

import "errors"

var (
	ErrSceneNotFound    = errors.New("scene not found")
	ErrMarkerNotFound   = errors.New("marker not found")
	ErrInvalidMarker    = errors.New("invalid marker")
	ErrInvalidSplit     = errors.New("split point must lie strictly inside the marker")
	ErrSceneNotReady    = errors.New("scene has unprocessed markers")
	ErrShotBoundary     = errors.New("shot boundary markers have no review status")
	ErrTagNotConfigured = errors.New("review tag is not configured")
)
