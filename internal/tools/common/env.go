package common

import "github.com/allresumeservices/client-intake/internal/config"

// LoadEnvFile loads an optional env file; variables already exported win.
func LoadEnvFile(path string) error {
	return config.LoadEnvFile(path)
}
