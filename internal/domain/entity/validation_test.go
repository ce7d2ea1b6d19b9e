package entity

import (
	"errors"
	"testing"
)

func TestValidateURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{
			name:    "valid https URL",
			url:     "https://example.com/feed",
			wantErr: false,
		},
		{
			name:    "valid http URL",
			url:     "http://example.com/feed",
			wantErr: false,
		},
		{
			name:    "valid URL with port",
			url:     "https://example.com:8080/feed",
			wantErr: false,
		},
		{
			name:    "valid URL with query",
			url:     "https://example.com/feed?param=value",
			wantErr: false,
		},
		{
			name:    "empty URL",
			url:     "",
			wantErr: true,
		},
		{
			name:    "invalid scheme - ftp",
			url:     "ftp://example.com/feed",
			wantErr: true,
		},
		{
			name:    "invalid scheme - file",
			url:     "file:///etc/passwd",
			wantErr: true,
		},
		{
			name:    "invalid scheme - javascript",
			url:     "javascript:alert(1)",
			wantErr: true,
		},
		{
			name:    "no host",
			url:     "https://",
			wantErr: true,
		},
		{
			name:    "malformed URL",
			url:     "ht!tp://example.com",
			wantErr: true,
		},
		{
			name:    "no scheme",
			url:     "example.com",
			wantErr: true,
		},
		{
			name:    "URL exceeding maximum length",
			url:     "https://example.com/" + string(make([]byte, 2050)),
			wantErr: true,
		},
		{
			name:    "loopback URL is a format guard pass-through",
			url:     "http://127.0.0.1/feed",
			wantErr: false,
		},
		{
			name:    "valid URL with path and fragment",
			url:     "https://example.com/path/to/page#section",
			wantErr: false,
		},
		{
			name:    "valid URL with special characters in query",
			url:     "https://example.com/feed?q=test&sort=asc",
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateURL() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateURL_ErrorTypes(t *testing.T) {
	t.Run("empty URL returns ValidationError", func(t *testing.T) {
		err := ValidateURL("")
		if err == nil {
			t.Fatal("expected error, got nil")
		}

		var validationErr *ValidationError
		if !errors.As(err, &validationErr) {
			t.Errorf("expected ValidationError, got %T", err)
		}
	})

	t.Run("URL too long returns ValidationError", func(t *testing.T) {
		longURL := "https://example.com/" + string(make([]byte, 2050))
		err := ValidateURL(longURL)
		if err == nil {
			t.Fatal("expected error, got nil")
		}

		var validationErr *ValidationError
		if !errors.As(err, &validationErr) {
			t.Errorf("expected ValidationError, got %T", err)
		}
	})

	t.Run("invalid scheme returns ValidationError", func(t *testing.T) {
		err := ValidateURL("ftp://example.com")
		if err == nil {
			t.Fatal("expected error, got nil")
		}

		var validationErr *ValidationError
		if !errors.As(err, &validationErr) {
			t.Errorf("expected ValidationError, got %T", err)
		}
	})

	t.Run("missing host returns ValidationError", func(t *testing.T) {
		err := ValidateURL("https://")
		if err == nil {
			t.Fatal("expected error, got nil")
		}

		var validationErr *ValidationError
		if !errors.As(err, &validationErr) {
			t.Errorf("expected ValidationError, got %T", err)
		}
	})
}
