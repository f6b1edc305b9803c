package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/dmitrijs2005/docvault/internal/flagx"
	"github.com/joho/godotenv"
)

// EnvPrefix prefixes every environment variable the server reads.
const EnvPrefix = "DOCVAULT_"

const defaultEnvFile = ".env"

// loadDotEnv loads the file named by -env/-envfile into the process
// environment. Without the flag a ./.env file is used when present.
// Variables already set in the environment win over the file.
func loadDotEnv() error {
	path := flagx.EnvFileFlags()
	if path == "" {
		if _, err := os.Stat(defaultEnvFile); errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		path = defaultEnvFile
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// parseEnv overlays DOCVAULT_* variables.
func parseEnv(c *Config) error {
	strs := map[string]*string{
		"HTTP_ADDR":        &c.HTTPAddr,
		"DATABASE_DSN":     &c.DatabaseDSN,
		"SECRET_KEY":       &c.SecretKey,
		"ENCRYPTION_KEY":   &c.EncryptionKey,
		"ENCRYPTION_SALT":  &c.EncryptionSalt,
		"BLOB_BACKEND":     &c.BlobBackend,
		"BLOB_DIR":         &c.BlobDir,
		"SCRATCH_DIR":      &c.ScratchDir,
		"S3_ROOT_USER":     &c.S3RootUser,
		"S3_ROOT_PASSWORD": &c.S3RootPassword,
		"S3_BUCKET":        &c.S3Bucket,
		"S3_REGION":        &c.S3Region,
		"S3_BASE_ENDPOINT": &c.S3BaseEndpoint,
		"REDIS_ADDR":       &c.RedisAddr,
		"ADMIN_USERNAME":   &c.AdminUsername,
		"ADMIN_PASSWORD":   &c.AdminPassword,
		"LOG_LEVEL":        &c.LogLevel,
		"LOG_FILE":         &c.LogFile,
	}
	for name, dst := range strs {
		if v, ok := os.LookupEnv(EnvPrefix + name); ok && v != "" {
			*dst = v
		}
	}

	durations := map[string]*time.Duration{
		"ACCESS_TOKEN_VALIDITY": &c.AccessTokenValidityDuration,
		"ARTIFACT_MAX_AGE":      &c.ArtifactMaxAge,
		"SWEEP_INTERVAL":        &c.SweepInterval,
		"ORPHAN_GRACE_PERIOD":   &c.OrphanGracePeriod,
		"LOG_RETENTION":         &c.LogRetention,
	}
	for name, dst := range durations {
		v, ok := os.LookupEnv(EnvPrefix + name)
		if !ok || v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
		}
		*dst = d
	}

	if v, ok := os.LookupEnv(EnvPrefix + "MAX_UPLOAD_SIZE"); ok && v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%sMAX_UPLOAD_SIZE: %w", EnvPrefix, err)
		}
		c.MaxUploadSize = n
	}

	if v, ok := os.LookupEnv(EnvPrefix + "SECURE_COOKIES"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sSECURE_COOKIES: %w", EnvPrefix, err)
		}
		c.SecureCookies = b
	}
	return nil
}
