package config

import (
	"fmt"
	"os"
	"strings"

	"supplytrace/pkg/domain"
)

// Server captures process-level configuration so main stays lean.
type Server struct {
	Addr string
	// Admin is the registry administrator: the single privileged identity
	// allowed to verify participants and flag counterfeits. It is fixed at
	// startup and never discovered at runtime.
	Admin domain.Address
	// DatabaseURL selects the Postgres-backed ledger when set; empty keeps
	// everything in memory.
	DatabaseURL string
	// KafkaBrokers/KafkaTopic enable event publishing when both are set.
	KafkaBrokers []string
	KafkaTopic   string
}

// FromEnv builds a Server config from environment variables.
func FromEnv() (Server, error) {
	addr := os.Getenv("SUPPLYTRACE_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	adminRaw := os.Getenv("SUPPLYTRACE_ADMIN_ADDRESS")
	if adminRaw == "" {
		return Server{}, fmt.Errorf("SUPPLYTRACE_ADMIN_ADDRESS is required")
	}
	admin, err := domain.ParseAddress(adminRaw)
	if err != nil {
		return Server{}, fmt.Errorf("SUPPLYTRACE_ADMIN_ADDRESS: %w", err)
	}

	var brokers []string
	if raw := os.Getenv("SUPPLYTRACE_KAFKA_BROKERS"); raw != "" {
		for _, b := range strings.Split(raw, ",") {
			if b = strings.TrimSpace(b); b != "" {
				brokers = append(brokers, b)
			}
		}
	}

	return Server{
		Addr:         addr,
		Admin:        admin,
		DatabaseURL:  os.Getenv("SUPPLYTRACE_DATABASE_URL"),
		KafkaBrokers: brokers,
		KafkaTopic:   os.Getenv("SUPPLYTRACE_KAFKA_TOPIC"),
	}, nil
}
