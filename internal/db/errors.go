package db

import "fmt"

// ConfigurationError reports an unusable secret or option set: the secret is
// missing or empty, its payload is malformed, or a required field is absent.
// No connection is attempted after one of these.
type ConfigurationError struct {
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return e.Reason
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// ConnectionError reports a failure to obtain a working connection: token
// issuance, dial, TLS negotiation or authentication.
type ConnectionError struct {
	Target string
	Err    error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connect to %s: %v", e.Target, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// QueryError reports a statement that failed on an open connection.
type QueryError struct {
	Operation string
	Err       error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("%s: %v", e.Operation, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }
