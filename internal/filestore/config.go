package filestore

// Provider identifies the file storage backend.
type Provider string

const (
	ProviderMinIO Provider = "minio"
)

// Config holds all settings needed to reach the bucket the roster export
// lives in. Any S3-compatible endpoint works.
type Config struct {
	// Provider is the storage backend (e.g. ProviderMinIO).
	Provider Provider `yaml:"provider" env:"ROSTERSYNC_STORAGE_PROVIDER" validate:"omitempty,oneof=minio"`

	// Endpoint is the host[:port] of the storage server.
	// Example: "s3.amazonaws.com" or "localhost:9000" for local MinIO.
	Endpoint string `yaml:"endpoint" env:"ROSTERSYNC_STORAGE_ENDPOINT" validate:"required"`

	// AccessKey and SecretKey are static credentials. When AccessKey is empty
	// the driver falls back to the AWS environment and instance metadata.
	AccessKey string `yaml:"access_key" env:"AWS_ACCESS_KEY_ID"`
	SecretKey string `yaml:"secret_key" env:"AWS_SECRET_ACCESS_KEY"`

	// UseSSL controls whether TLS is used for the connection.
	UseSSL bool `yaml:"use_ssl" env:"ROSTERSYNC_STORAGE_USE_SSL"`

	// Region is used by region-aware backends (e.g. AWS S3).
	// Leave empty for MinIO.
	Region string `yaml:"region" env:"AWS_REGION"`

	// Bucket and Key locate the roster CSV.
	Bucket string `yaml:"bucket" env:"S3_BUCKET_NAME" validate:"required"`
	Key    string `yaml:"key" env:"S3_DEPARTMENT_MEMBERS_PATH" validate:"required"`
}

// DefaultConfig returns settings for AWS S3 over TLS.
func DefaultConfig() *Config {
	return &Config{
		Provider: ProviderMinIO,
		Endpoint: "s3.amazonaws.com",
		UseSSL:   true,
	}
}
