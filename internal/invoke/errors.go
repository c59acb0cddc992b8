package invoke

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/willibrandon/rdsprobe/internal/db"
	"github.com/willibrandon/rdsprobe/internal/db/models"
	"github.com/willibrandon/rdsprobe/internal/secrets"
)

// Classify maps an invocation error to an outcome and response status.
// Errors outside the taxonomy are treated as query errors: they can only come
// from an operation.
func Classify(err error) (models.Outcome, int) {
	var (
		cfgErr  *db.ConfigurationError
		connErr *db.ConnectionError
		qErr    *db.QueryError
	)
	switch {
	case err == nil:
		return models.OutcomeSuccess, http.StatusOK
	case errors.As(err, &cfgErr):
		return models.OutcomeConfigurationError, http.StatusInternalServerError
	case errors.As(err, &connErr):
		return models.OutcomeConnectionError, http.StatusBadGateway
	case errors.As(err, &qErr):
		return models.OutcomeQueryError, http.StatusInternalServerError
	default:
		return models.OutcomeQueryError, http.StatusInternalServerError
	}
}

// ErrorBody is the short response body for a failed invocation.
func ErrorBody(err error) string {
	outcome, _ := Classify(err)
	switch outcome {
	case models.OutcomeConfigurationError:
		return "configuration error: " + err.Error()
	case models.OutcomeConnectionError:
		return "connection error: " + err.Error()
	default:
		return "query error: " + err.Error()
	}
}

// FormatError formats an invocation error with actionable guidance for the CLI.
func FormatError(err error) string {
	errMsg := err.Error()

	if errors.Is(err, secrets.ErrEmptySecret) || strings.Contains(errMsg, "has no value") {
		return fmt.Sprintf(
			"Secret has no value.\n\n"+
				"Troubleshooting steps:\n"+
				"  1. Verify the secret id (RDS_SECRET_NAME or secret_id) and region\n"+
				"  2. Check the secret has a current SecretString version\n"+
				"\nOriginal error: %s", errMsg)
	}

	var missing *secrets.MissingFieldsError
	if errors.As(err, &missing) {
		return fmt.Sprintf(
			"Secret is missing connection fields: %s.\n\n"+
				"The secret must be a JSON object with host, port, username, password and dbname.\n"+
				"\nOriginal error: %s", strings.Join(missing.Fields, ", "), errMsg)
	}

	if strings.Contains(errMsg, "AccessDenied") {
		return fmt.Sprintf(
			"Access denied reading the secret.\n\n"+
				"Troubleshooting steps:\n"+
				"  1. Grant secretsmanager:GetSecretValue on the secret to this role\n"+
				"  2. If the secret uses a customer managed key, grant kms:Decrypt\n"+
				"\nOriginal error: %s", errMsg)
	}

	if strings.Contains(errMsg, "connection refused") {
		return fmt.Sprintf(
			"Connection refused: PostgreSQL is not accepting connections.\n\n"+
				"Troubleshooting steps:\n"+
				"  1. Verify the cluster or proxy endpoint is available\n"+
				"  2. Check the security group allows inbound traffic on the database port\n"+
				"  3. Verify this function runs in a subnet that can reach the endpoint\n"+
				"\nOriginal error: %s", errMsg)
	}

	if strings.Contains(errMsg, "PAM authentication failed") || strings.Contains(errMsg, "password authentication failed") {
		return fmt.Sprintf(
			"Authentication failed.\n\n"+
				"Troubleshooting steps:\n"+
				"  1. In password mode, verify the secret's password is current (rotation)\n"+
				"  2. In iam mode, verify the user was granted rds_iam and the role has rds-db:connect\n"+
				"  3. For proxied iam, verify IAM authentication is required on the proxy\n"+
				"\nOriginal error: %s", errMsg)
	}

	if strings.Contains(errMsg, "no such host") || strings.Contains(errMsg, "unknown host") {
		return fmt.Sprintf(
			"Host not found: Cannot resolve hostname.\n\n"+
				"Troubleshooting steps:\n"+
				"  1. Verify the host in the secret or the proxy endpoint\n"+
				"  2. Private endpoints only resolve inside the VPC\n"+
				"\nOriginal error: %s", errMsg)
	}

	if strings.Contains(errMsg, "timeout") || strings.Contains(errMsg, "deadline exceeded") {
		return fmt.Sprintf(
			"Connection timeout: Database did not respond in time.\n\n"+
				"Troubleshooting steps:\n"+
				"  1. Check network connectivity to the endpoint\n"+
				"  2. Check for security group or NACL rules dropping the connection\n"+
				"\nOriginal error: %s", errMsg)
	}

	if strings.Contains(errMsg, "SSL") || strings.Contains(errMsg, "TLS") || strings.Contains(errMsg, "tls") {
		return fmt.Sprintf(
			"SSL/TLS error: Secure connection failed.\n\n"+
				"Troubleshooting steps:\n"+
				"  1. Proxied connections always require TLS\n"+
				"  2. For verify-ca/verify-full, make sure the RDS CA bundle is trusted\n"+
				"\nOriginal error: %s", errMsg)
	}

	if strings.Contains(errMsg, "database") && strings.Contains(errMsg, "does not exist") {
		return fmt.Sprintf(
			"Database does not exist.\n\n"+
				"Troubleshooting steps:\n"+
				"  1. Verify dbname in the secret\n"+
				"\nOriginal error: %s", errMsg)
	}

	return ErrorBody(err)
}
