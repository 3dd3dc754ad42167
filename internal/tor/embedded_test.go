package tor

import (
	"errors"
	"testing"
	"time"
)

// TestNewEmbeddedTor tests the EmbeddedTor constructor.
func TestNewEmbeddedTor(t *testing.T) {
	t.Parallel()

	t.Run("creates with default timeout", func(t *testing.T) {
		t.Parallel()

		embedded := NewEmbeddedTor()
		if embedded.startupTimeout != DefaultStartupTimeout {
			t.Errorf("expected default timeout %v, got %v", DefaultStartupTimeout, embedded.startupTimeout)
		}
	})

	t.Run("applies WithStartupTimeout", func(t *testing.T) {
		t.Parallel()

		embedded := NewEmbeddedTor(WithStartupTimeout(5 * time.Minute))
		if embedded.startupTimeout != 5*time.Minute {
			t.Errorf("expected timeout 5m, got %v", embedded.startupTimeout)
		}
	})
}

// TestEmbeddedTorMethods tests EmbeddedTor methods without starting Tor.
func TestEmbeddedTorMethods(t *testing.T) {
	t.Parallel()

	t.Run("addresses are empty before start", func(t *testing.T) {
		t.Parallel()

		embedded := NewEmbeddedTor()
		if embedded.SocksAddr() != "" || embedded.ControlAddr() != "" {
			t.Error("expected empty addresses before start")
		}
		if embedded.IsRunning() {
			t.Error("expected IsRunning to be false before start")
		}
	})

	t.Run("Stop is safe to call on unstarted instance", func(t *testing.T) {
		t.Parallel()

		embedded := NewEmbeddedTor()
		if err := embedded.Stop(); err != nil {
			t.Errorf("expected no error stopping unstarted instance, got %v", err)
		}
		if err := embedded.Stop(); err != nil {
			t.Errorf("expected second Stop to succeed, got %v", err)
		}
	})

	t.Run("NewClient fails when not running", func(t *testing.T) {
		t.Parallel()

		embedded := NewEmbeddedTor()
		if _, err := embedded.NewClient(); !errors.Is(err, ErrEmbeddedNotRunning) {
			t.Errorf("expected ErrEmbeddedNotRunning, got %v", err)
		}
	})
}
