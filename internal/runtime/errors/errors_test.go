package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestSentinelErrors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantMsg string
	}{
		{"ErrServiceRequired", ErrServiceRequired, "flowbind: service is required"},
		{"ErrHandlerRequired", ErrHandlerRequired, "flowbind: handler function is required"},
		{"ErrHandlerNameRequired", ErrHandlerNameRequired, "flowbind: handler name is required"},
		{"ErrChannelRequired", ErrChannelRequired, "flowbind: channel name is required"},
		{"ErrInvalidDemand", ErrInvalidDemand, "flowbind: requested demand must be positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Fatalf("expected %q, got %q", tt.wantMsg, got)
			}
		})
	}
}

func TestTypedErrorsMatchSentinels(t *testing.T) {
	cause := errors.New("boom")
	tests := []struct {
		name     string
		err      error
		sentinel error
	}{
		{"duplicate", &DuplicateChannelBindingError{Channel: "input", First: "a", Second: "b"}, ErrDuplicateChannelBinding},
		{"ambiguous", &AmbiguousChannelBindingError{Handler: "h", Reason: "r"}, ErrAmbiguousChannelBinding},
		{"no converter", &NoConverterFoundError{ContentType: "text/csv", Type: "int", Direction: DirectionReceive}, ErrNoConverterFound},
		{"invocation", &HandlerInvocationFailedError{Handler: "h", Channel: "c", Kind: KindHandler, Err: cause}, ErrHandlerInvocationFailed},
		{"channel", &ChannelNotFoundError{Channel: "c"}, ErrChannelNotFound},
		{"config", &ConfigValidationError{Field: "Port", Reason: "lte"}, ErrConfigInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("startup: %w", tt.err)
			if !errors.Is(wrapped, tt.sentinel) {
				t.Fatalf("expected %v to match %v", wrapped, tt.sentinel)
			}
			if !strings.HasPrefix(tt.err.Error(), "flowbind: ") {
				t.Fatalf("expected flowbind prefix, got %q", tt.err.Error())
			}
		})
	}
}

func TestDuplicateChannelBindingMessageNamesEverything(t *testing.T) {
	err := &DuplicateChannelBindingError{Channel: "input", First: "receive", Second: "receiveAgain"}
	msg := err.Error()
	for _, want := range []string{"duplicate", `"input"`, `"receive"`, `"receiveAgain"`} {
		if !strings.Contains(msg, want) {
			t.Fatalf("expected %q in %q", want, msg)
		}
	}
}

func TestHandlerInvocationFailedUnwrapsAndClassifies(t *testing.T) {
	cause := errors.New("db down")
	err := fmt.Errorf("dispatch: %w", &HandlerInvocationFailedError{Handler: "h", Channel: "input", Kind: KindConversion, Err: cause})

	if !errors.Is(err, cause) {
		t.Fatal("expected cause to be reachable through Unwrap")
	}
	kind, ok := KindOf(err)
	if !ok || kind != KindConversion {
		t.Fatalf("expected conversion kind, got %q (%v)", kind, ok)
	}
	if _, ok := KindOf(cause); ok {
		t.Fatal("expected plain error to have no kind")
	}
}

func TestChannelNotFoundMentionsComponent(t *testing.T) {
	err := &ChannelNotFoundError{Channel: "orders", Component: "billing"}
	if !strings.Contains(err.Error(), `"billing"`) {
		t.Fatalf("expected component in message, got %q", err.Error())
	}
}

func TestAmbiguousChannelBindingFormatting(t *testing.T) {
	err := &AmbiguousChannelBindingError{Handler: "uppercase", Channel: "input", Reason: "conflicting declarations"}
	want := `flowbind: ambiguous channel binding on handler "uppercase" (channel "input"): conflicting declarations`
	if err.Error() != want {
		t.Fatalf("expected %q, got %q", want, err.Error())
	}
}
