package errors

import (
	"fmt"
	"testing"
	"time"
)

func TestErrorTypes(t *testing.T) {
	tests := []struct {
		name         string
		err          *Error
		expectedType ErrorType
	}{
		{"Connection Error", NewConnectionError("example.com", 443, fmt.Errorf("connection refused")), ErrorTypeConnection},
		{"TLS Error", NewTLSError("example.com", 443, fmt.Errorf("handshake failed")), ErrorTypeTLS},
		{"HTTP Syntax Error", NewHTTPSyntaxError("request line", "malformed request line"), ErrorTypeHTTPSyntax},
		{"HTTP Disconnect", NewHTTPDisconnect("headers", fmt.Errorf("EOF")), ErrorTypeHTTPDisconnect},
		{"TCP Disconnect", NewTCPDisconnect("1.2.3.4:80", fmt.Errorf("EOF")), ErrorTypeTCPDisconnect},
		{"Client Handshake Error", NewClientHandshakeError("example.com", fmt.Errorf("no cipher match")), ErrorTypeClientHandshake},
		{"Invalid Server Cert", NewInvalidServerCertError("example.com", fmt.Errorf("expired")), ErrorTypeInvalidServerCert},
		{"Kill Error", NewKillError("addon vetoed connection"), ErrorTypeKill},
		{"Server Error", NewServerError("listen", "address in use", fmt.Errorf("bind failed")), ErrorTypeServer},
		{"Validation Error", NewValidationError("host cannot be empty"), ErrorTypeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Type != tt.expectedType {
				t.Errorf("expected type %v, got %v", tt.expectedType, tt.err.Type)
			}
			if tt.err.Error() == "" {
				t.Error("error message should not be empty")
			}
			if tt.err.Timestamp.IsZero() {
				t.Error("timestamp should be set")
			}
		})
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := fmt.Errorf("underlying error")
	err := NewConnectionError("example.com", 443, cause)

	if err.Unwrap() != cause {
		t.Errorf("expected unwrapped error to be %v, got %v", cause, err.Unwrap())
	}
}

func TestErrorIs(t *testing.T) {
	err1 := NewTCPDisconnect("1.2.3.4:80", fmt.Errorf("EOF"))
	err2 := &Error{Type: ErrorTypeTCPDisconnect}

	if !err1.Is(err2) {
		t.Error("errors with same type should match")
	}

	err3 := &Error{Type: ErrorTypeConnection}
	if err1.Is(err3) {
		t.Error("errors with different types should not match")
	}
}

func TestIsKill(t *testing.T) {
	if !IsKill(NewKillError("addon vetoed")) {
		t.Error("should identify kill error")
	}
	if IsKill(NewConnectionError("example.com", 80, fmt.Errorf("refused"))) {
		t.Error("should not identify connection error as kill")
	}
	if IsKill(fmt.Errorf("plain error")) {
		t.Error("should not identify a plain error as kill")
	}
}

func TestAs(t *testing.T) {
	err := NewHTTPSyntaxError("request line", "bad method token")
	var target *Error
	if !As(err, &target) {
		t.Fatal("expected As to match *Error")
	}
	if target.Type != ErrorTypeHTTPSyntax {
		t.Errorf("expected %v, got %v", ErrorTypeHTTPSyntax, target.Type)
	}
}

func TestGetErrorType(t *testing.T) {
	err := NewValidationError("test")
	if got := GetErrorType(err); got != ErrorTypeValidation {
		t.Errorf("expected %v, got %v", ErrorTypeValidation, got)
	}

	regularErr := fmt.Errorf("regular error")
	if got := GetErrorType(regularErr); got != "" {
		t.Errorf("expected empty type for regular error, got %v", got)
	}
}

func TestIsTimeoutError(t *testing.T) {
	timeoutErr := NewTimeoutError("connection", 5*time.Second)
	if !IsTimeoutError(timeoutErr) {
		t.Error("should identify timeout error")
	}

	connErr := NewConnectionError("example.com", 80, fmt.Errorf("refused"))
	if IsTimeoutError(connErr) {
		t.Error("should not identify connection error as timeout")
	}
}
