package lms

import "time"

// Config holds the LMS REST API location and credentials.
type Config struct {
	// BaseURL is the API root, e.g. "https://lms.example.com/api".
	BaseURL string `yaml:"base_url" env:"REST_API_URL" validate:"required,url"`

	Username   string `yaml:"username" env:"LMS_USERNAME" validate:"required"`
	Password   string `yaml:"password" env:"LMS_PASSWORD" validate:"required"`
	PrivateKey string `yaml:"private_key" env:"LMS_PRIVATE_KEY" validate:"required"`

	// CourseID scopes the course, session and enrollment endpoints.
	CourseID string `yaml:"course_id" env:"COURSE_ID"`

	// DepartmentFilter is passed verbatim as the _filter query parameter
	// when listing users, e.g. "departmentId eq guid'...'".
	DepartmentFilter string `yaml:"department_filter" env:"ROSTERSYNC_LMS_DEPARTMENT_FILTER"`

	// PageSize is sent as _limit. Zero leaves paging to the server.
	PageSize int `yaml:"page_size" env:"ROSTERSYNC_LMS_PAGE_SIZE" validate:"gte=0"`

	// Timeout bounds each HTTP request.
	Timeout time.Duration `yaml:"timeout" env:"ROSTERSYNC_LMS_TIMEOUT"`

	// MaxRetries is how many times a request is retried after a network
	// error, 429 or 5xx response.
	MaxRetries uint64 `yaml:"max_retries" env:"ROSTERSYNC_LMS_MAX_RETRIES"`
}

// DefaultConfig returns request defaults; credentials still have to be set.
func DefaultConfig() *Config {
	return &Config{
		PageSize:   500,
		Timeout:    30 * time.Second,
		MaxRetries: 3,
	}
}
