// Package errors provides structured, coded error handling for the
// carbontrace services.
package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Activity errors
	CodeActivityFetch       Code = "ACTIVITY_FETCH_FAILED"
	CodeActivityEmptyUserID Code = "ACTIVITY_EMPTY_USER_ID"
	CodeActivityEmptyID     Code = "ACTIVITY_EMPTY_ID"
	CodeActivityNegativeCO2 Code = "ACTIVITY_NEGATIVE_CO2"
	CodeActivityZeroTime    Code = "ACTIVITY_ZERO_TIMESTAMP"

	// Goal errors
	CodeGoalTargetNotPositive Code = "GOAL_TARGET_NOT_POSITIVE"

	// Achievement errors
	CodeAchievementUnknownDef    Code = "ACHIEVEMENT_UNKNOWN_DEFINITION"
	CodeAchievementUnknownMetric Code = "ACHIEVEMENT_UNKNOWN_METRIC"

	// Report errors
	CodeReportWindowInvalid Code = "REPORT_WINDOW_INVALID"

	// Storage errors
	CodeNotFound         Code = "NOT_FOUND"
	CodePersistenceWrite Code = "PERSISTENCE_WRITE_FAILED"
)

// HTTPStatus maps domain codes to HTTP status codes for the API surface.
func (c Code) HTTPStatus() int {
	switch c {
	// Bad request - validation failures, bad input
	case CodeActivityEmptyUserID,
		CodeActivityEmptyID,
		CodeActivityNegativeCO2,
		CodeActivityZeroTime,
		CodeGoalTargetNotPositive,
		CodeReportWindowInvalid:
		return http.StatusBadRequest

	// Not found - resource doesn't exist
	case CodeNotFound,
		CodeAchievementUnknownDef,
		CodeAchievementUnknownMetric:
		return http.StatusNotFound

	// Upstream dependency failures
	case CodeActivityFetch,
		CodePersistenceWrite:
		return http.StatusServiceUnavailable

	default:
		return http.StatusInternalServerError
	}
}
