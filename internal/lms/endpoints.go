package lms

import "github.com/koustreak/rostersync/internal/errs"

// Resource names accepted by Endpoint.
const (
	ResourceEnrollments = "enrollments"
	ResourceSessions    = "sessions"
	ResourceCourses     = "courses"
	ResourceUsers       = "users"
	ResourceListUsers   = "list_users"
)

// Endpoint returns the API path, relative to BaseURL, for a resource.
// id is the session id for enrollments and the user id for users; it is
// ignored elsewhere.
func (c *Client) Endpoint(resource, id string) (string, error) {
	course := c.cfg.CourseID

	switch resource {
	case ResourceEnrollments:
		return "courses/" + course + "/sessions/" + id + "/enrollments", nil
	case ResourceSessions:
		return "courses/" + course + "/sessions", nil
	case ResourceCourses:
		return "courses/" + course, nil
	case ResourceUsers:
		return "users/" + id, nil
	case ResourceListUsers:
		return "users", nil
	default:
		return "", errs.Newf(errs.ErrKindInvalidInput, "unknown lms resource %q", resource)
	}
}
