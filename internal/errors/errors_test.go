package errors

import (
	"errors"
	"fmt"
	"io"
	"testing"
	"time"
)

// -----------------------------------------------------------------------------
// Severity Tests
// -----------------------------------------------------------------------------

func TestSeverity_String(t *testing.T) {
	tests := []struct {
		severity Severity
		want     string
	}{
		{SeverityDebug, "debug"},
		{SeverityInfo, "info"},
		{SeverityWarning, "warning"},
		{SeverityError, "error"},
		{SeverityCritical, "critical"},
		{Severity(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.severity.String(); got != tt.want {
				t.Errorf("Severity.String() = %q, want %q", got, tt.want)
			}
		})
	}
}

// -----------------------------------------------------------------------------
// TowerError Tests
// -----------------------------------------------------------------------------

func TestNewTowerError(t *testing.T) {
	cause := ErrNotConnected
	err := NewTowerError("ring failed", cause)

	if err.message != "ring failed" {
		t.Errorf("message = %q, want %q", err.message, "ring failed")
	}
	if err.cause != cause {
		t.Errorf("cause = %v, want %v", err.cause, cause)
	}
	if err.Severity() != SeverityError {
		t.Errorf("Severity() = %v, want %v", err.Severity(), SeverityError)
	}
	if !err.IsRetryable() {
		t.Error("IsRetryable() = false, want true")
	}
}

func TestTowerError_WithMethods(t *testing.T) {
	err := NewTowerError("test", nil).
		WithTowerID(123456789).
		WithEvent("s_bell_rung").
		WithSeverity(SeverityCritical).
		WithRetryable(false)

	if err.TowerID != 123456789 {
		t.Errorf("TowerID = %d, want %d", err.TowerID, 123456789)
	}
	if err.Event != "s_bell_rung" {
		t.Errorf("Event = %q, want %q", err.Event, "s_bell_rung")
	}
	if err.Severity() != SeverityCritical {
		t.Errorf("Severity() = %v, want %v", err.Severity(), SeverityCritical)
	}
	if err.IsRetryable() {
		t.Error("IsRetryable() = true, want false")
	}
}

func TestTowerError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *TowerError
		want string
	}{
		{
			name: "message only",
			err:  NewTowerError("dial failed", nil),
			want: "tower error: dial failed",
		},
		{
			name: "with tower id",
			err:  NewTowerError("read failed", io.ErrUnexpectedEOF).WithTowerID(123456789),
			want: "tower error [tower=123456789]: read failed: unexpected EOF",
		},
		{
			name: "with tower and event",
			err:  NewTowerError("bad payload", ErrProtocol).WithTowerID(42).WithEvent("s_call"),
			want: "tower error [tower=42, event=s_call]: bad payload: socket.io protocol error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTowerError_Is(t *testing.T) {
	err := NewTowerError("test", ErrNotConnected)

	if !Is(err, &TowerError{}) {
		t.Error("Is(TowerError{}) = false, want true")
	}
	if !Is(err, ErrNotConnected) {
		t.Error("Is(ErrNotConnected) = false, want true")
	}
	if Is(err, ErrProtocol) {
		t.Error("Is(ErrProtocol) = true, want false")
	}
	if Is(err, &MethodError{}) {
		t.Error("Is(MethodError{}) = true, want false")
	}
}

// -----------------------------------------------------------------------------
// MethodError Tests
// -----------------------------------------------------------------------------

func TestNewMethodError(t *testing.T) {
	err := NewMethodError("unexpected character", ErrInvalidPlaceNotation)

	if err.Position != -1 {
		t.Errorf("Position = %d, want -1", err.Position)
	}
	if err.IsRetryable() {
		t.Error("IsRetryable() = true, want false")
	}
	if !Is(err, ErrInvalidPlaceNotation) {
		t.Error("Is(ErrInvalidPlaceNotation) = false, want true")
	}
}

func TestMethodError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *MethodError
		want string
	}{
		{
			name: "message only",
			err:  NewMethodError("empty notation", nil),
			want: "method error: empty notation",
		},
		{
			name: "with notation and position",
			err:  NewMethodError("unexpected character", ErrInvalidPlaceNotation).WithNotation("x1y").WithPosition(2),
			want: "method error [notation=x1y, pos=2]: unexpected character: invalid place notation",
		},
		{
			name: "position zero is reported",
			err:  NewMethodError("unexpected character", nil).WithPosition(0),
			want: "method error [pos=0]: unexpected character",
		},
		{
			name: "with stage",
			err:  NewMethodError("too few bells", ErrInvalidStage).WithStage(1),
			want: "method error [stage=1]: too few bells: invalid stage",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

// -----------------------------------------------------------------------------
// Semantic Error Tests
// -----------------------------------------------------------------------------

func TestValidationError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *ValidationError
		want string
	}{
		{
			name: "message only",
			err:  NewValidationError("invalid input"),
			want: "validation error: invalid input",
		},
		{
			name: "with field and value",
			err:  NewValidationError("must be at least 3").WithField("method.stage").WithValue(2),
			want: "validation error [field=method.stage, value=2]: must be at least 3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestValidationError_Is(t *testing.T) {
	err := NewValidationError("test")

	if !Is(err, &ValidationError{}) {
		t.Error("Is(ValidationError{}) = false, want true")
	}
	if !Is(err, ErrInvalidInput) {
		t.Error("Is(ErrInvalidInput) = false, want true")
	}
}

func TestTimeoutError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *TimeoutError
		want string
	}{
		{
			name: "basic",
			err:  NewTimeoutError("dialing tower", 10*time.Second),
			want: "timeout error: dialing tower (timeout: 10s)",
		},
		{
			name: "with cause",
			err:  NewTimeoutError("connecting", time.Minute).WithCause(fmt.Errorf("network unreachable")),
			want: "timeout error: connecting (timeout: 1m0s): network unreachable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTimeoutError_Is(t *testing.T) {
	err := NewTimeoutError("test", time.Second)

	if !Is(err, &TimeoutError{}) {
		t.Error("Is(TimeoutError{}) = false, want true")
	}
	if !Is(err, ErrTimeout) {
		t.Error("Is(ErrTimeout) = false, want true")
	}
}

// -----------------------------------------------------------------------------
// Classification Helper Tests
// -----------------------------------------------------------------------------

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error", nil, false},
		{"timeout error", NewTimeoutError("test", time.Second), true},
		{"tower error", NewTowerError("test", nil), true},
		{"tower error set not retryable", NewTowerError("test", nil).WithRetryable(false), false},
		{"method error", NewMethodError("test", nil), false},
		{"wrapped timeout sentinel", fmt.Errorf("dial: %w", ErrTimeout), true},
		{"wrapped closed sentinel", fmt.Errorf("read: %w", ErrTowerClosed), true},
		{"standard error", errors.New("standard error"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetSeverity(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Severity
	}{
		{"nil error", nil, SeverityDebug},
		{"tower error default", NewTowerError("test", nil), SeverityError},
		{"tower error critical", NewTowerError("test", nil).WithSeverity(SeverityCritical), SeverityCritical},
		{"validation error", NewValidationError("bad"), SeverityWarning},
		{"wrapped timeout error", Wrap(NewTimeoutError("joining tower", time.Second), "ring"), SeverityWarning},
		{"standard error", errors.New("standard"), SeverityError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetSeverity(tt.err); got != tt.want {
				t.Errorf("GetSeverity() = %v, want %v", got, tt.want)
			}
		})
	}
}

// -----------------------------------------------------------------------------
// Wrap/Wrapf Tests
// -----------------------------------------------------------------------------

func TestWrap(t *testing.T) {
	if got := Wrap(nil, "context"); got != nil {
		t.Errorf("Wrap(nil) = %v, want nil", got)
	}

	got := Wrap(NewTowerError("join failed", nil), "ring")
	if want := "ring: tower error: join failed"; got.Error() != want {
		t.Errorf("Wrap().Error() = %q, want %q", got.Error(), want)
	}
}

func TestWrapf(t *testing.T) {
	err := Wrapf(errors.New("base error"), "tower %d", 7)
	if want := "tower 7: base error"; err.Error() != want {
		t.Errorf("Wrapf().Error() = %q, want %q", err.Error(), want)
	}
	if got := Wrapf(nil, "test"); got != nil {
		t.Errorf("Wrapf(nil) = %v, want nil", got)
	}
}

func TestErrorChain(t *testing.T) {
	towerErr := NewTowerError("lost socket", ErrTowerClosed).WithTowerID(99)
	wrapped := Wrap(towerErr, "ringing stopped")

	if !Is(wrapped, ErrTowerClosed) {
		t.Error("Should find ErrTowerClosed in chain")
	}

	var extracted *TowerError
	if !As(wrapped, &extracted) {
		t.Fatal("Should extract TowerError from chain")
	}
	if extracted.TowerID != 99 {
		t.Errorf("TowerID = %d, want %d", extracted.TowerID, 99)
	}
}

func TestSentinelErrors(t *testing.T) {
	sentinels := []error{
		ErrNotConnected,
		ErrServerIPNotFound,
		ErrProtocol,
		ErrTowerClosed,
		ErrInvalidPlaceNotation,
		ErrInvalidStage,
		ErrStageMismatch,
		ErrTimeout,
		ErrInvalidInput,
	}

	for i, err1 := range sentinels {
		for j, err2 := range sentinels {
			if i != j && Is(err1, err2) {
				t.Errorf("Sentinel error %v should not match %v", err1, err2)
			}
		}
	}
}
