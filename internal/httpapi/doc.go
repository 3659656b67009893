// Package httpapi exposes a goAuthz engine as a JSON HTTP service.
//
// Routes live under /api/v1 and are mounted on a chi router. Protected
// routes go through middleware.Guard, so rejections share the
// {"code": ..., "message": ...} error body used everywhere else.
package httpapi
