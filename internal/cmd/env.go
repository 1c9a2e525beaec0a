package cmd

import (
	"errors"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
)

// Environment variables recognised by git-snapshot.
const (
	envBucket   = "GIT_S3_BUCKET"
	envPrefix   = "GIT_S3_PREFIX"
	envRoot     = "GIT_ROOT"
	envBackend  = "GIT_SNAPSHOT_BACKEND"
	envLogLevel = "GIT_SNAPSHOT_LOG_LEVEL"
)

// Env resolves configuration values from the process environment, falling
// back to values read from a dotenv file. It never modifies the process
// environment.
type Env struct {
	lookup func(string) (string, bool)
	dotenv map[string]string
}

// NewEnv creates an Env backed by lookup and the given dotenv values.
func NewEnv(lookup func(string) (string, bool), dotenv map[string]string) *Env {
	if dotenv == nil {
		dotenv = map[string]string{}
	}
	return &Env{lookup: lookup, dotenv: dotenv}
}

// LoadEnv creates an Env backed by the process environment and the dotenv
// file at path. A missing file is not an error.
func LoadEnv(path string) (*Env, error) {
	values, err := godotenv.Read(path)
	if errors.Is(err, fs.ErrNotExist) {
		return NewEnv(os.LookupEnv, nil), nil
	}
	if err != nil {
		return NewEnv(os.LookupEnv, nil), err
	}
	return NewEnv(os.LookupEnv, values), nil
}

// Lookup returns the value of key, preferring the process environment.
func (e *Env) Lookup(key string) (string, bool) {
	if v, ok := e.lookup(key); ok {
		return v, true
	}
	v, ok := e.dotenv[key]
	return v, ok
}

// Get returns the value of key, or def if it is unset.
func (e *Env) Get(key, def string) string {
	if v, ok := e.Lookup(key); ok {
		return v
	}
	return def
}

// FromFile returns the value of key only when it comes from the dotenv file,
// that is, when the process environment does not already define it.
func (e *Env) FromFile(key string) (string, bool) {
	if _, ok := e.lookup(key); ok {
		return "", false
	}
	v, ok := e.dotenv[key]
	return v, ok
}
