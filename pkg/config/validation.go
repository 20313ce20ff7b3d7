package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/marmos91/ftpbridge/pkg/adapter/ftp"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate validates the configuration using struct tags and custom rules.
//
// This function uses go-playground/validator for declarative validation
// via struct tags, with additional custom validation for complex rules
// that cannot be expressed in tags.
//
// Returns an error describing validation failures.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	if err := validateCustomRules(cfg); err != nil {
		return err
	}

	return nil
}

// validateCustomRules performs custom validation beyond struct tags.
func validateCustomRules(cfg *Config) error {
	if !cfg.Adapters.FTP.Enabled && !cfg.Adapters.FTPS.Enabled {
		return fmt.Errorf("adapters: at least one of ftp or ftps must be enabled")
	}

	if err := validateRemoteURI(cfg.Remote.URI); err != nil {
		return fmt.Errorf("remote.uri: %w", err)
	}

	if cfg.Adapters.FTP.Enabled {
		if err := validateListener("adapters.ftp", cfg.Adapters.FTP); err != nil {
			return err
		}
	}

	if cfg.Adapters.FTPS.Enabled {
		ftps := cfg.Adapters.FTPS
		if err := validateListener("adapters.ftps", ftps.FTPConfig); err != nil {
			return err
		}
		ks := ftps.KeyStore
		switch {
		case ks.File == "":
			return fmt.Errorf("adapters.ftps.key_store.file is required when ftps is enabled")
		case ks.Type == "":
			return fmt.Errorf("adapters.ftps.key_store.type is required when ftps is enabled")
		case ks.Password == "":
			return fmt.Errorf("adapters.ftps.key_store.password is required when ftps is enabled")
		case strings.EqualFold(ks.Type, "PEM") && ks.CertFile == "":
			return fmt.Errorf("adapters.ftps.key_store.cert_file is required for PEM key stores")
		}

		if cfg.Adapters.FTP.Enabled && cfg.Adapters.FTP.Port == ftps.Port {
			return fmt.Errorf("adapters: ftp and ftps cannot share port %d", ftps.Port)
		}
	}

	if cfg.Metrics.Enabled && cfg.Metrics.Port == 0 {
		return fmt.Errorf("metrics.port is required when metrics are enabled")
	}

	return nil
}

// validateListener checks the settings an enabled listener cannot run without.
func validateListener(name string, cfg FTPConfig) error {
	if cfg.Port == 0 {
		return fmt.Errorf("%s.port is required when the listener is enabled", name)
	}
	if cfg.PassivePorts == "" {
		return fmt.Errorf("%s.passive_ports is required when the listener is enabled", name)
	}
	lo, hi, err := ftp.ParsePassivePorts(cfg.PassivePorts)
	if err != nil {
		return fmt.Errorf("%s.passive_ports: %w", name, err)
	}
	if cfg.Port >= lo && cfg.Port <= hi {
		return fmt.Errorf("%s: control port %d lies inside the passive range %s", name, cfg.Port, cfg.PassivePorts)
	}
	return nil
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		if len(validationErrs) > 0 {
			e := validationErrs[0]
			return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
				e.Namespace(), e.Tag(), e.Value())
		}
	}
	return err
}
